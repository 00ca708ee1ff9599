package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/categorization"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/normalizer"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/session"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
)

// PDFOptions tunes a PDF statement import.
type PDFOptions struct {
	// StatementDate anchors yearless transaction dates. When nil the date is
	// inferred from the filename, then falls back to today.
	StatementDate *time.Time
	// AllowDuplicate re-processes a file whose bytes were imported before.
	AllowDuplicate bool
}

// Preview is one page of a pending review.
type Preview struct {
	Filename      string
	StatementDate *time.Time
	Warnings      []string
	Method        string

	Rows       []session.ReviewRow
	Page       int
	TotalPages int
	TotalRows  int
	// PageStart and PageEnd are 1-based row positions; both are 0 for an
	// empty review.
	PageStart int
	PageEnd   int
}

// CommitResult summarizes a committed PDF review.
type CommitResult struct {
	RowsDetected int
	Imported     int
	Duplicates   int
	RowErrors    []string
	Audit        *ledger.StatementImport
}

// ImportPDF extracts transaction candidates from a PDF statement and parks
// them in a review session for the owner. Nothing is written to the ledger
// until CommitReview.
func (s *Service) ImportPDF(
	ctx context.Context,
	userID, accountID uuid.UUID,
	filename string,
	data []byte,
	opts PDFOptions,
) (*session.Review, error) {
	hash := fileHash(data)

	statementDate := opts.StatementDate
	if statementDate == nil {
		statementDate = normalizer.StatementDateFromFilename(filename)
	}
	if statementDate == nil {
		today := s.now().UTC().Truncate(24 * time.Hour)
		statementDate = &today
	}

	if err := s.blockDuplicate(ctx, userID, &accountID, ledger.SourcePDF, filename, hash, statementDate, opts.AllowDuplicate); err != nil {
		return nil, err
	}

	extracted, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w", err)
	}

	candidates := s.parser.Parse(extracted.Text, *statementDate)
	if len(candidates) == 0 {
		statementsTotal.WithLabelValues(string(ledger.SourcePDF), "empty").Inc()
		if len(extracted.Warnings) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoTransactions, strings.Join(extracted.Warnings, " | "))
		}
		return nil, ErrNoTransactions
	}

	rows := make([]session.ReviewRow, len(candidates))
	for i, c := range candidates {
		rows[i] = session.ReviewRow{
			Date:     c.Date.Format("2006-01-02"),
			Title:    c.Title,
			Amount:   c.Amount.StringFixed(2),
			Category: c.Category,
			Kind:     string(c.Kind),
			Include:  true,
		}
	}

	review := &session.Review{
		ID:            uuid.New(),
		UserID:        userID,
		AccountID:     &accountID,
		SourceType:    ledger.SourcePDF,
		Filename:      filename,
		FileHash:      hash,
		StatementDate: statementDate,
		Method:        extracted.Method,
		Warnings:      extracted.Warnings,
		Rows:          rows,
		CreatedAt:     s.now(),
	}
	s.sessions.Put(review)

	s.logger.Info("pdf statement parsed for review",
		"user_id", userID,
		"filename", filename,
		"method", extracted.Method,
		"rows_detected", len(rows),
		"warnings", len(extracted.Warnings),
	)
	return review, nil
}

func pageBounds(totalRows, page int) (clamped, totalPages, start, end int) {
	totalPages = (totalRows + PreviewPageSize - 1) / PreviewPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	clamped = page
	if clamped < 1 {
		clamped = 1
	}
	if clamped > totalPages {
		clamped = totalPages
	}
	start = (clamped - 1) * PreviewPageSize
	end = start + PreviewPageSize
	if end > totalRows {
		end = totalRows
	}
	return clamped, totalPages, start, end
}

// PreviewPage returns one page of the owner's pending review. Out-of-range
// pages clamp to the nearest valid page.
func (s *Service) PreviewPage(userID uuid.UUID, page int) (*Preview, error) {
	review, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}

	clamped, totalPages, start, end := pageBounds(len(review.Rows), page)
	preview := &Preview{
		Filename:      review.Filename,
		StatementDate: review.StatementDate,
		Warnings:      review.Warnings,
		Method:        review.Method,
		Rows:          review.Rows[start:end],
		Page:          clamped,
		TotalPages:    totalPages,
		TotalRows:     len(review.Rows),
	}
	if len(review.Rows) > 0 {
		preview.PageStart = start + 1
		preview.PageEnd = end
	}
	return preview, nil
}

// ApplyPageEdits replaces one page of review rows with the edited values.
// Values are stored as-is, so a bad date or amount is only rejected at
// commit. Kind is uppercased to match how the commit validates it.
func (s *Service) ApplyPageEdits(userID uuid.UUID, page int, edited []session.ReviewRow) error {
	return s.sessions.Update(userID, func(review *session.Review) error {
		_, _, start, end := pageBounds(len(review.Rows), page)
		if len(edited) != end-start {
			return fmt.Errorf("expected %d rows for this page, got %d", end-start, len(edited))
		}
		for i := range edited {
			row := edited[i]
			row.Kind = strings.ToUpper(strings.TrimSpace(row.Kind))
			review.Rows[start+i] = row
		}
		return nil
	})
}

// CancelReview drops the owner's pending review without writing anything.
func (s *Service) CancelReview(userID uuid.UUID) error {
	if _, err := s.sessions.Get(userID); err != nil {
		return err
	}
	s.sessions.Delete(userID)
	return nil
}

// CommitReview validates every included row of the pending review and writes
// the valid ones plus the audit record in one transaction. Rows that fail
// validation are reported and counted as skipped. The review is cleared on
// success.
func (s *Service) CommitReview(ctx context.Context, userID uuid.UUID) (*CommitResult, error) {
	review, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}

	if review.AccountID != nil {
		if _, err := s.accounts.GetByID(ctx, userID, *review.AccountID); err != nil {
			return nil, fmt.Errorf("failed to resolve review account: %w", err)
		}
	}

	var expenses []*ledger.Expense
	var rowErrors []string
	for i, row := range review.Rows {
		if !row.Include {
			continue
		}
		exp, err := validateReviewRow(userID, review.AccountID, row)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		expenses = append(expenses, exp)
	}

	audit := &ledger.StatementImport{
		UserID:        userID,
		AccountID:     review.AccountID,
		SourceType:    review.SourceType,
		Status:        ledger.StatusImported,
		Filename:      review.Filename,
		FileHash:      review.FileHash,
		StatementDate: review.StatementDate,
		RowsDetected:  len(review.Rows),
		RowsSkipped:   len(rowErrors),
		Notes:         joinNotes(rowErrors),
	}

	inserted, duplicates, err := s.ledger.CommitImport(ctx, expenses, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to commit review: %w", err)
	}
	s.sessions.Delete(userID)

	observeCommit(string(review.SourceType), inserted, duplicates, len(rowErrors))
	s.logger.Info("statement review committed",
		"user_id", userID,
		"filename", review.Filename,
		"rows_detected", len(review.Rows),
		"rows_imported", inserted,
		"rows_skipped", audit.RowsSkipped,
	)

	return &CommitResult{
		RowsDetected: len(review.Rows),
		Imported:     inserted,
		Duplicates:   duplicates,
		RowErrors:    rowErrors,
		Audit:        audit,
	}, nil
}

func validateReviewRow(userID uuid.UUID, accountID *uuid.UUID, row session.ReviewRow) (*ledger.Expense, error) {
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

	kind, err := ledger.ParseKind(row.Kind)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(row.Category)
	if category == "" {
		category = categorization.Uncategorized
	}

	return &ledger.Expense{
		UserID:    userID,
		AccountID: accountID,
		Title:     title,
		Amount:    signed.Abs(),
		Category:  category,
		Kind:      kind,
		Date:      txDate,
	}, nil
}
