// importctl imports bank and card statements into the ledger from the
// command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/account"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/categorization"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/extractor"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/parser"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/service"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/session"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
	"github.com/ledgerkeep/ledgerkeep/pkg/config"
	"github.com/ledgerkeep/ledgerkeep/pkg/db"
)

// app carries the wired dependencies shared by all subcommands.
type app struct {
	cfg     *config.Config
	db      *db.DB
	imports *service.Service
	logger  *slog.Logger
}

func (a *app) setup(*cobra.Command, []string) error {
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	database, err := db.New(db.Config{DSN: cfg.Database.DSN(), MaxConns: 5}, a.logger)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(); err != nil {
		database.Close()
		return err
	}
	a.db = database

	ext := extractor.New(extractor.Config{
		Pdftotext:     cfg.Import.PdftotextBin,
		Mutool:        cfg.Import.MutoolBin,
		Pdftoppm:      cfg.Import.PdftoppmBin,
		Tesseract:     cfg.Import.TesseractBin,
		TesseractLang: cfg.Import.TesseractLang,
		DPI:           cfg.Import.OCRDPI,
		MaxPages:      cfg.Import.OCRMaxPages,
	}, a.logger)

	a.imports = service.New(
		ledger.NewPostgresRepository(database.Pool),
		account.NewPostgresRepository(database.Pool),
		ext,
		parser.NewStatementParser(categorization.NewGuesser()),
		session.NewStore(),
		a.logger,
	)
	return nil
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.db != nil {
		a.db.Close()
	}
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:               "importctl",
		Short:             "Import bank and card statements into the ledger",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.AddCommand(
		newCSVCommand(a),
		newPDFCommand(a),
		newHistoryCommand(a),
		newFixFutureDatesCommand(a),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
