// Package service orchestrates statement imports: duplicate gating, text
// extraction, candidate review, and the final ledger commit.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/account"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/extractor"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/parser"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/session"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
)

// PreviewPageSize is how many candidate rows a review page holds.
const PreviewPageSize = 100

// maxNoteErrors caps how many row errors are recorded on an audit.
const maxNoteErrors = 5

var (
	// ErrDuplicateFile means the exact file bytes were already imported and
	// the caller did not ask to override.
	ErrDuplicateFile = errors.New("statement file already imported")

	// ErrNoTransactions means extraction succeeded but no line looked like a
	// transaction.
	ErrNoTransactions = errors.New("no transactions could be extracted")

	// ErrNoReview mirrors the session store's miss for callers that only
	// import this package.
	ErrNoReview = session.ErrNoReview
)

// Extractor pulls text out of a PDF.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (extractor.Result, error)
}

// StatementParser detects transaction candidates in extracted text.
type StatementParser interface {
	Parse(text string, reference time.Time) []parser.Candidate
}

// Service wires the import pipeline together.
type Service struct {
	ledger    ledger.Repository
	accounts  account.Repository
	extractor Extractor
	parser    StatementParser
	sessions  *session.Store
	logger    *slog.Logger
	now       func() time.Time
}

func New(
	ledgerRepo ledger.Repository,
	accounts account.Repository,
	ext Extractor,
	stmtParser StatementParser,
	sessions *session.Store,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:    ledgerRepo,
		accounts:  accounts,
		extractor: ext,
		parser:    stmtParser,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}
}

func fileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func joinNotes(rowErrors []string) string {
	if len(rowErrors) == 0 {
		return ""
	}
	if len(rowErrors) > maxNoteErrors {
		rowErrors = rowErrors[:maxNoteErrors]
	}
	return strings.Join(rowErrors, " | ")
}

// blockDuplicate checks the file hash against prior imports. When a match is
// found and override is off, it records a BLOCKED_DUPLICATE audit and returns
// ErrDuplicateFile.
func (s *Service) blockDuplicate(
	ctx context.Context,
	userID uuid.UUID,
	accountID *uuid.UUID,
	sourceType ledger.SourceType,
	filename, hash string,
	statementDate *time.Time,
	allowDuplicate bool,
) error {
	existing, err := s.ledger.LatestImported(ctx, userID, hash)
	if err != nil {
		return err
	}
	if existing == nil || allowDuplicate {
		return nil
	}

	audit := &ledger.StatementImport{
		UserID:        userID,
		AccountID:     accountID,
		SourceType:    sourceType,
		Status:        ledger.StatusBlockedDuplicate,
		Filename:      filename,
		FileHash:      hash,
		StatementDate: statementDate,
		Notes: fmt.Sprintf(
			"Blocked duplicate upload. Matching file was already imported on %s.",
			existing.CreatedAt.Format("2006-01-02 15:04"),
		),
	}
	if err := s.ledger.CreateAudit(ctx, audit); err != nil {
		return err
	}

	statementsTotal.WithLabelValues(string(sourceType), "blocked_duplicate").Inc()
	s.logger.Info("blocked duplicate statement upload",
		"user_id", userID, "filename", filename, "prior_import", existing.ID)
	return ErrDuplicateFile
}

// ImportHistory returns a page of the owner's import audit log. Pages are
// 1-based and hold 30 records.
func (s *Service) ImportHistory(ctx context.Context, userID uuid.UUID, page int) ([]*ledger.StatementImport, error) {
	const pageSize = 30
	if page < 1 {
		page = 1
	}
	return s.ledger.ListImports(ctx, userID, pageSize, (page-1)*pageSize)
}

// ShiftFutureDates re-dates the owner's clearly future transactions back one
// year. daysAhead is the grace window before a date counts as future.
func (s *Service) ShiftFutureDates(ctx context.Context, userID uuid.UUID, daysAhead int) (int64, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	n, err := s.ledger.ShiftFutureDates(ctx, userID, today, daysAhead)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("shifted future-dated transactions", "user_id", userID, "rows", n)
	}
	return n, nil
}
