package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		userFlag string
		page     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the statement import audit log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", userFlag, err)
			}

			imports, err := a.imports.ImportHistory(cmd.Context(), userID, page)
			if err != nil {
				return err
			}
			if len(imports) == 0 {
				fmt.Println("No imports found.")
				return nil
			}

			for _, imp := range imports {
				fmt.Printf("%s  %-3s  %-17s  detected=%-4d imported=%-4d skipped=%-4d %s\n",
					imp.CreatedAt.Format("2006-01-02 15:04"),
					imp.SourceType, imp.Status,
					imp.RowsDetected, imp.RowsImported, imp.RowsSkipped,
					imp.Filename,
				)
				if imp.Notes != "" {
					fmt.Printf("    %s\n", imp.Notes)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner user id (required)")
	cmd.Flags().IntVar(&page, "page", 1, "history page (30 records per page)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newFixFutureDatesCommand(a *app) *cobra.Command {
	var (
		userFlag  string
		daysAhead int
	)

	cmd := &cobra.Command{
		Use:   "fix-future-dates",
		Short: "Re-date transactions that landed in the future",
		Long: "Yearless statement dates occasionally resolve a year too far ahead. " +
			"This moves transactions dated beyond the grace window back one year.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", userFlag, err)
			}

			n, err := a.imports.ShiftFutureDates(cmd.Context(), userID, daysAhead)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %d transactions.\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner user id (required)")
	cmd.Flags().IntVar(&daysAhead, "days-ahead", 7, "grace window in days before a date counts as future")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
