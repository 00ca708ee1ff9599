package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/service"
)

func newCSVCommand(a *app) *cobra.Command {
	var (
		userFlag       string
		accountFlag    string
		noHeader       bool
		allowDuplicate bool
	)

	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import a CSV statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, accountID, err := parseOwnerFlags(userFlag, accountFlag)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Import.ExtractTimeout)
			defer cancel()
			res, err := a.imports.ImportCSV(ctx, userID, accountID, filepath.Base(args[0]), data, service.CSVOptions{
				HasHeader:      !noHeader,
				AllowDuplicate: allowDuplicate,
			})
			if errors.Is(err, service.ErrDuplicateFile) {
				return fmt.Errorf("this statement file was already imported; pass --allow-duplicate to re-process it")
			}
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d of %d rows (%d duplicates skipped).\n", res.Imported, res.RowsDetected, res.Duplicates)
			for _, rowErr := range res.RowErrors {
				fmt.Printf("  %s\n", rowErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner user id (required)")
	cmd.Flags().StringVar(&accountFlag, "account", "", "target account id (required)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "read columns positionally instead of by header name")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "re-process a file that was imported before")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newPDFCommand(a *app) *cobra.Command {
	var (
		userFlag       string
		accountFlag    string
		statementDate  string
		allowDuplicate bool
		commit         bool
	)

	cmd := &cobra.Command{
		Use:   "pdf <file>",
		Short: "Extract transactions from a PDF statement",
		Long: "Extracts transaction candidates from a PDF statement and prints them " +
			"for review. Pass --commit to write the candidates to the ledger.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, accountID, err := parseOwnerFlags(userFlag, accountFlag)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			opts := service.PDFOptions{AllowDuplicate: allowDuplicate}
			if statementDate != "" {
				d, err := time.Parse("2006-01-02", statementDate)
				if err != nil {
					return fmt.Errorf("invalid --statement-date %q: use YYYY-MM-DD", statementDate)
				}
				opts.StatementDate = &d
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Import.ExtractTimeout)
			defer cancel()
			review, err := a.imports.ImportPDF(ctx, userID, accountID, filepath.Base(args[0]), data, opts)
			if errors.Is(err, service.ErrDuplicateFile) {
				return fmt.Errorf("this statement file was already imported; pass --allow-duplicate to re-process it")
			}
			if err != nil {
				return err
			}

			for _, warning := range review.Warnings {
				fmt.Printf("warning: %s\n", warning)
			}
			for page := 1; ; page++ {
				preview, err := a.imports.PreviewPage(userID, page)
				if err != nil {
					return err
				}
				for i, row := range preview.Rows {
					fmt.Printf("%4d  %s  %-10s %9s  %-14s %s\n",
						preview.PageStart+i, row.Date, row.Kind, row.Amount, row.Category, row.Title)
				}
				if page >= preview.TotalPages {
					break
				}
			}

			if !commit {
				fmt.Printf("Detected %d transactions. Re-run with --commit to import them.\n", len(review.Rows))
				return a.imports.CancelReview(userID)
			}

			res, err := a.imports.CommitReview(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d of %d rows (%d duplicates skipped).\n", res.Imported, res.RowsDetected, res.Duplicates)
			for _, rowErr := range res.RowErrors {
				fmt.Printf("  %s\n", rowErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner user id (required)")
	cmd.Flags().StringVar(&accountFlag, "account", "", "target account id (required)")
	cmd.Flags().StringVar(&statementDate, "statement-date", "", "statement date (YYYY-MM-DD) used to anchor yearless dates")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "re-process a file that was imported before")
	cmd.Flags().BoolVar(&commit, "commit", false, "write the detected transactions to the ledger")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func parseOwnerFlags(userFlag, accountFlag string) (uuid.UUID, uuid.UUID, error) {
	userID, err := uuid.Parse(userFlag)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --user %q: %w", userFlag, err)
	}
	accountID, err := uuid.Parse(accountFlag)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --account %q: %w", accountFlag, err)
	}
	return userID, accountID, nil
}
