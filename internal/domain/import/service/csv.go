package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/categorization"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/normalizer"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/parser"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
)

// CSVOptions tunes a CSV statement import.
type CSVOptions struct {
	// HasHeader marks the first line as column names; without it columns are
	// read positionally.
	HasHeader bool
	// AllowDuplicate re-processes a file whose bytes were imported before.
	AllowDuplicate bool
}

// CSVResult summarizes a committed CSV import.
type CSVResult struct {
	RowsDetected int
	Imported     int
	Duplicates   int
	RowErrors    []string
	Audit        *ledger.StatementImport
}

// ImportCSV parses, normalizes, and commits a CSV statement in one step.
// Rows that fail normalization are reported in RowErrors and counted as
// skipped on the audit; they never abort the import.
func (s *Service) ImportCSV(
	ctx context.Context,
	userID, accountID uuid.UUID,
	filename string,
	data []byte,
	opts CSVOptions,
) (*CSVResult, error) {
	hash := fileHash(data)
	statementDate := normalizer.StatementDateFromFilename(filename)

	if err := s.blockDuplicate(ctx, userID, &accountID, ledger.SourceCSV, filename, hash, statementDate, opts.AllowDuplicate); err != nil {
		return nil, err
	}

	rows, err := parser.ParseCSV(data, opts.HasHeader)
	if err != nil {
		return nil, err
	}

	var expenses []*ledger.Expense
	var rowErrors []string
	for i, row := range rows {
		rowNum := i + 2 // 1-indexed plus the header line
		exp, err := s.normalizeCSVRow(ctx, userID, accountID, row)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		expenses = append(expenses, exp)
	}

	audit := &ledger.StatementImport{
		UserID:        userID,
		AccountID:     &accountID,
		SourceType:    ledger.SourceCSV,
		Status:        ledger.StatusImported,
		Filename:      filename,
		FileHash:      hash,
		StatementDate: statementDate,
		RowsDetected:  len(rows),
		RowsSkipped:   len(rowErrors),
		Notes:         joinNotes(rowErrors),
	}

	inserted, duplicates, err := s.ledger.CommitImport(ctx, expenses, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to commit CSV import: %w", err)
	}

	observeCommit(string(ledger.SourceCSV), inserted, duplicates, len(rowErrors))
	s.logger.Info("csv statement imported",
		"user_id", userID,
		"filename", filename,
		"rows_detected", len(rows),
		"rows_imported", inserted,
		"rows_skipped", audit.RowsSkipped,
	)

	return &CSVResult{
		RowsDetected: len(rows),
		Imported:     inserted,
		Duplicates:   duplicates,
		RowErrors:    rowErrors,
		Audit:        audit,
	}, nil
}

// normalizeCSVRow validates one raw row into a ledger expense. The returned
// error is user-facing row feedback, except account lookups, which surface as
// repository failures through the context error path.
func (s *Service) normalizeCSVRow(ctx context.Context, userID, accountID uuid.UUID, row parser.CSVRow) (*ledger.Expense, error) {
	txDate, err := normalizer.ParseDate(strings.TrimSpace(row.Date))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(row.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	signed, err := normalizer.ParseSignedAmount(row.Amount)
	if err != nil {
		return nil, err
	}

	kind, kindErr := ledger.ParseKind(strings.TrimSpace(row.Type))
	if kindErr != nil {
		// No usable transaction_type column; fall back to the sign.
		kind = ledger.KindForAmount(signed)
	}

	category := strings.TrimSpace(row.Category)
	if category == "" {
		category = categorization.Uncategorized
	}

	rowAccountID := accountID
	if name := strings.TrimSpace(row.Account); name != "" {
		acct, err := s.accounts.GetOrCreateByName(ctx, userID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve account %q: %w", name, err)
		}
		rowAccountID = acct.ID
	}

	return &ledger.Expense{
		UserID:    userID,
		AccountID: &rowAccountID,
		Title:     title,
		Amount:    signed.Abs(),
		Category:  category,
		Kind:      kind,
		Date:      txDate,
	}, nil
}
