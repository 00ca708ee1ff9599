package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/account"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/categorization"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/extractor"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/parser"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/session"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
)

// fakeLedger is an in-memory ledger.Repository.
type fakeLedger struct {
	rows    map[string]*ledger.Expense
	audits  []*ledger.StatementImport
	shifted int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*ledger.Expense)}
}

func rowKeyString(k ledger.RowKey) string {
	acct := ""
	if k.AccountID != nil {
		acct = k.AccountID.String()
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		k.UserID, acct, k.Title, k.Amount.StringFixed(2), k.Category, k.Kind, k.Date.Format("2006-01-02"))
}

func (f *fakeLedger) Exists(_ context.Context, key ledger.RowKey) (bool, error) {
	_, ok := f.rows[rowKeyString(key)]
	return ok, nil
}

func (f *fakeLedger) CommitImport(_ context.Context, rows []*ledger.Expense, audit *ledger.StatementImport) (int, int, error) {
	inserted, duplicates := 0, 0
	for _, row := range rows {
		key := rowKeyString(row.Key())
		if _, ok := f.rows[key]; ok {
			duplicates++
			continue
		}
		row.ID = uuid.New()
		f.rows[key] = row
		inserted++
	}
	audit.RowsImported = inserted
	audit.RowsSkipped += duplicates
	audit.ID = uuid.New()
	audit.CreatedAt = time.Now()
	f.audits = append(f.audits, audit)
	return inserted, duplicates, nil
}

func (f *fakeLedger) CreateAudit(_ context.Context, audit *ledger.StatementImport) error {
	audit.ID = uuid.New()
	audit.CreatedAt = time.Now()
	f.audits = append(f.audits, audit)
	return nil
}

func (f *fakeLedger) LatestImported(_ context.Context, userID uuid.UUID, fileHash string) (*ledger.StatementImport, error) {
	var latest *ledger.StatementImport
	for _, a := range f.audits {
		if a.UserID == userID && a.FileHash == fileHash && a.Status == ledger.StatusImported {
			if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
				latest = a
			}
		}
	}
	return latest, nil
}

func (f *fakeLedger) ListImports(_ context.Context, userID uuid.UUID, limit, offset int) ([]*ledger.StatementImport, error) {
	var mine []*ledger.StatementImport
	for _, a := range f.audits {
		if a.UserID == userID {
			mine = append(mine, a)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

func (f *fakeLedger) ShiftFutureDates(_ context.Context, _ uuid.UUID, _ time.Time, _ int) (int64, error) {
	return f.shifted, nil
}

// fakeAccounts is an in-memory account.Repository.
type fakeAccounts struct {
	byID    map[uuid.UUID]*account.Account
	created []string
}

func newFakeAccounts(existing ...*account.Account) *fakeAccounts {
	f := &fakeAccounts{byID: make(map[uuid.UUID]*account.Account)}
	for _, a := range existing {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) GetByID(_ context.Context, userID, accountID uuid.UUID) (*account.Account, error) {
	a, ok := f.byID[accountID]
	if !ok || a.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeAccounts) GetOrCreateByName(_ context.Context, userID uuid.UUID, name string) (*account.Account, error) {
	for _, a := range f.byID {
		if a.UserID == userID && strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	a := &account.Account{ID: uuid.New(), UserID: userID, Name: name, Type: account.TypeOther, IsActive: true}
	f.byID[a.ID] = a
	f.created = append(f.created, name)
	return a, nil
}

func (f *fakeAccounts) ListByUser(_ context.Context, userID uuid.UUID) ([]*account.Account, error) {
	var out []*account.Account
	for _, a := range f.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeExtractor returns a canned extraction result.
type fakeExtractor struct {
	result extractor.Result
}

func (f *fakeExtractor) Extract(context.Context, []byte) (extractor.Result, error) {
	return f.result, nil
}

type fixture struct {
	svc       *Service
	ledger    *fakeLedger
	accounts  *fakeAccounts
	extractor *fakeExtractor
	userID    uuid.UUID
	accountID uuid.UUID
}

func newFixture(t *testing.T, extracted extractor.Result) *fixture {
	t.Helper()
	userID := uuid.New()
	acct := &account.Account{ID: uuid.New(), UserID: userID, Name: "Checking", Type: account.TypeChecking, IsActive: true}

	repo := newFakeLedger()
	accounts := newFakeAccounts(acct)
	ext := &fakeExtractor{result: extracted}
	svc := New(repo, accounts, ext, parser.NewStatementParser(categorization.NewGuesser()), session.NewStore(), nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, ledger: repo, accounts: accounts, extractor: ext, userID: userID, accountID: acct.ID}
}

func TestImportCSV_HappyPath(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	data := []byte("date,title,amount,category,transaction_type,account\n" +
		"2025-03-14,Coffee Shop,-4.50,,,\n" +
		"2025-03-15,Paycheck,2500.00,,INCOME,\n")

	res, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "statement_20250315.csv", data, CSVOptions{HasHeader: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.RowsDetected)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Duplicates)
	assert.Empty(t, res.RowErrors)

	require.NotNil(t, res.Audit)
	assert.Equal(t, ledger.SourceCSV, res.Audit.SourceType)
	assert.Equal(t, ledger.StatusImported, res.Audit.Status)
	require.NotNil(t, res.Audit.StatementDate)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *res.Audit.StatementDate)

	// Negative amount without a type column lands as an expense.
	var kinds []ledger.TransactionKind
	for _, row := range f.ledger.rows {
		kinds = append(kinds, row.Kind)
	}
	assert.ElementsMatch(t, []ledger.TransactionKind{ledger.KindExpense, ledger.KindIncome}, kinds)
}

func TestImportCSV_RowErrorsAreSkippedNotFatal(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	data := []byte("date,title,amount,category,transaction_type,account\n" +
		"not-a-date,Coffee Shop,4.50,,,\n" +
		"2025-03-14,,4.50,,,\n" +
		"2025-03-15,Valid Row,4.50,,,\n")

	res, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "rows.csv", data, CSVOptions{HasHeader: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.RowErrors, 2)
	assert.Contains(t, res.RowErrors[0], "Row 2:")
	assert.Contains(t, res.RowErrors[1], "Row 3:")
	assert.Contains(t, res.RowErrors[1], "title is required")
	assert.Equal(t, 2, res.Audit.RowsSkipped)
	assert.Equal(t, strings.Join(res.RowErrors, " | "), res.Audit.Notes)
}

func TestImportCSV_NotesCappedAtFiveErrors(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	var b strings.Builder
	b.WriteString("date,title,amount,category,transaction_type,account\n")
	for i := 0; i < 7; i++ {
		b.WriteString("bad-date,Title,4.50,,,\n")
	}

	res, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "bad.csv", []byte(b.String()), CSVOptions{HasHeader: true})
	require.NoError(t, err)
	assert.Len(t, res.RowErrors, 7)
	assert.Equal(t, 5, strings.Count(res.Audit.Notes, "Row "))
}

func TestImportCSV_PerRowAccountAutoCreate(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	data := []byte("date,title,amount,category,transaction_type,account\n" +
		"2025-03-14,Coffee Shop,4.50,,,Visa Rewards\n" +
		"2025-03-15,Tea House,3.00,,,checking\n")

	res, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "multi.csv", data, CSVOptions{HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	// "checking" matched the existing account case-insensitively; only the
	// unknown name was created.
	assert.Equal(t, []string{"Visa Rewards"}, f.accounts.created)
}

func TestImportCSV_DuplicateFileBlocked(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	data := []byte("date,title,amount,category,transaction_type,account\n2025-03-14,Coffee Shop,4.50,,,\n")

	_, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "same.csv", data, CSVOptions{HasHeader: true})
	require.NoError(t, err)

	_, err = f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "same.csv", data, CSVOptions{HasHeader: true})
	assert.ErrorIs(t, err, ErrDuplicateFile)

	// The block itself leaves an audit trail.
	last := f.ledger.audits[len(f.ledger.audits)-1]
	assert.Equal(t, ledger.StatusBlockedDuplicate, last.Status)
	assert.Contains(t, last.Notes, "Blocked duplicate upload")
}

func TestImportCSV_DuplicateFileOverride(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	data := []byte("date,title,amount,category,transaction_type,account\n2025-03-14,Coffee Shop,4.50,,,\n")

	first, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "same.csv", data, CSVOptions{HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	second, err := f.svc.ImportCSV(context.Background(), f.userID, f.accountID, "same.csv", data, CSVOptions{HasHeader: true, AllowDuplicate: true})
	require.NoError(t, err)
	// File passes the gate, but the rows themselves are still duplicates.
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Duplicates)
}

func TestImportPDF_CreatesReview(t *testing.T) {
	f := newFixture(t, extractor.Result{
		Text:   "03/14 COFFEE SHOP -4.50\n03/15 ACME PAYROLL 2500.00\n",
		Method: extractor.MethodPdftotext,
	})

	review, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "statement_20250401.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)

	require.Len(t, review.Rows, 2)
	assert.Equal(t, "2025-03-14", review.Rows[0].Date)
	assert.Equal(t, "COFFEE SHOP", review.Rows[0].Title)
	assert.Equal(t, "4.50", review.Rows[0].Amount)
	assert.Equal(t, "EXPENSE", review.Rows[0].Kind)
	assert.True(t, review.Rows[0].Include)
	assert.Equal(t, "INCOME", review.Rows[1].Kind)
	assert.Equal(t, "Income", review.Rows[1].Category)

	// Statement date came from the filename.
	require.NotNil(t, review.StatementDate)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *review.StatementDate)

	// Nothing hits the ledger before commit.
	assert.Empty(t, f.ledger.rows)
	assert.Empty(t, f.ledger.audits)
}

func TestImportPDF_OCRWarningCarriesThrough(t *testing.T) {
	f := newFixture(t, extractor.Result{
		Text:     "03/14 COFFEE SHOP 4.50\n",
		Method:   extractor.MethodOCR,
		Warnings: []string{extractor.OCRWarning},
	})

	review, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "scan.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)
	assert.Equal(t, extractor.MethodOCR, review.Method)
	assert.Contains(t, review.Warnings, extractor.OCRWarning)
}

func TestImportPDF_NoTransactions(t *testing.T) {
	f := newFixture(t, extractor.Result{
		Text:     "ACCOUNT SUMMARY\nTHANK YOU FOR BANKING WITH US\n",
		Method:   extractor.MethodPdftotext,
		Warnings: []string{"pdftotext extraction issue: exit status 1"},
	})

	_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "empty.pdf", []byte("%PDF"), PDFOptions{})
	assert.ErrorIs(t, err, ErrNoTransactions)
	assert.Contains(t, err.Error(), "pdftotext extraction issue")
}

func TestImportPDF_ExplicitStatementDateAnchorsYearlessDates(t *testing.T) {
	f := newFixture(t, extractor.Result{
		Text:   "12/24 TOY STORE 31.00\n",
		Method: extractor.MethodPdftotext,
	})

	anchor := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	review, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "dec.pdf", []byte("%PDF"), PDFOptions{StatementDate: &anchor})
	require.NoError(t, err)
	require.Len(t, review.Rows, 1)
	assert.Equal(t, "2022-12-24", review.Rows[0].Date)
}

func manyRowsText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "03/14 MERCHANT NUMBER %04d 4.50\n", i)
	}
	return b.String()
}

func TestPreviewPage_Pagination(t *testing.T) {
	f := newFixture(t, extractor.Result{Text: manyRowsText(250), Method: extractor.MethodPdftotext})

	_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "big.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)

	page1, err := f.svc.PreviewPage(f.userID, 1)
	require.NoError(t, err)
	assert.Equal(t, 250, page1.TotalRows)
	assert.Equal(t, 3, page1.TotalPages)
	assert.Len(t, page1.Rows, 100)
	assert.Equal(t, 1, page1.PageStart)
	assert.Equal(t, 100, page1.PageEnd)

	page3, err := f.svc.PreviewPage(f.userID, 3)
	require.NoError(t, err)
	assert.Len(t, page3.Rows, 50)
	assert.Equal(t, 201, page3.PageStart)
	assert.Equal(t, 250, page3.PageEnd)

	// Out-of-range pages clamp instead of failing.
	clampedHigh, err := f.svc.PreviewPage(f.userID, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, clampedHigh.Page)
	clampedLow, err := f.svc.PreviewPage(f.userID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, clampedLow.Page)
}

func TestPreviewPage_NoReview(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	_, err := f.svc.PreviewPage(f.userID, 1)
	assert.ErrorIs(t, err, ErrNoReview)
}

func TestApplyPageEdits(t *testing.T) {
	f := newFixture(t, extractor.Result{Text: manyRowsText(150), Method: extractor.MethodPdftotext})
	_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "big.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)

	page2, err := f.svc.PreviewPage(f.userID, 2)
	require.NoError(t, err)
	edited := append([]session.ReviewRow(nil), page2.Rows...)
	edited[0].Title = "EDITED TITLE"
	edited[0].Kind = "income" // normalized to upper case on save
	edited[1].Include = false

	require.NoError(t, f.svc.ApplyPageEdits(f.userID, 2, edited))

	again, err := f.svc.PreviewPage(f.userID, 2)
	require.NoError(t, err)
	assert.Equal(t, "EDITED TITLE", again.Rows[0].Title)
	assert.Equal(t, "INCOME", again.Rows[0].Kind)
	assert.False(t, again.Rows[1].Include)

	// Page one is untouched.
	page1, err := f.svc.PreviewPage(f.userID, 1)
	require.NoError(t, err)
	assert.NotEqual(t, "EDITED TITLE", page1.Rows[0].Title)
}

func TestApplyPageEdits_RowCountMismatch(t *testing.T) {
	f := newFixture(t, extractor.Result{Text: manyRowsText(10), Method: extractor.MethodPdftotext})
	_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "small.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)

	err = f.svc.ApplyPageEdits(f.userID, 1, []session.ReviewRow{{Title: "ONLY ONE"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 10 rows")
}

func TestCommitReview(t *testing.T) {
	f := newFixture(t, extractor.Result{
		Text:   "03/14 COFFEE SHOP -4.50\n03/15 GROCERY MART -52.10\n03/16 BAD ROW 9.99\n",
		Method: extractor.MethodPdftotext,
	})
	_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "stmt.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)

	page, err := f.svc.PreviewPage(f.userID, 1)
	require.NoError(t, err)
	edited := append([]session.ReviewRow(nil), page.Rows...)
	edited[1].Include = false      // excluded rows never hit the ledger
	edited[2].Amount = "not-money" // fails validation at commit
	require.NoError(t, f.svc.ApplyPageEdits(f.userID, 1, edited))

	res, err := f.svc.CommitReview(context.Background(), f.userID)
	require.NoError(t, err)

	assert.Equal(t, 3, res.RowsDetected)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.RowErrors, 1)
	assert.Contains(t, res.RowErrors[0], "Row 3:")
	assert.Equal(t, 1, res.Audit.RowsSkipped)
	assert.Equal(t, ledger.SourcePDF, res.Audit.SourceType)

	// The review is gone after a successful commit.
	_, err = f.svc.PreviewPage(f.userID, 1)
	assert.ErrorIs(t, err, ErrNoReview)
}

func TestCommitReview_SkipsRowDuplicates(t *testing.T) {
	f := newFixture(t, extractor.Result{
		Text:   "03/14 COFFEE SHOP -4.50\n",
		Method: extractor.MethodPdftotext,
	})

	for i := 0; i < 2; i++ {
		_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, fmt.Sprintf("stmt-%d.pdf", i), []byte(fmt.Sprintf("%%PDF-%d", i)), PDFOptions{})
		require.NoError(t, err)
		res, err := f.svc.CommitReview(context.Background(), f.userID)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, 1, res.Imported)
		} else {
			assert.Equal(t, 0, res.Imported)
			assert.Equal(t, 1, res.Duplicates)
			assert.Equal(t, 1, res.Audit.RowsSkipped)
		}
	}
}

func TestCommitReview_NoReview(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	_, err := f.svc.CommitReview(context.Background(), f.userID)
	assert.ErrorIs(t, err, ErrNoReview)
}

func TestCancelReview(t *testing.T) {
	f := newFixture(t, extractor.Result{Text: "03/14 COFFEE SHOP 4.50\n", Method: extractor.MethodPdftotext})
	_, err := f.svc.ImportPDF(context.Background(), f.userID, f.accountID, "stmt.pdf", []byte("%PDF"), PDFOptions{})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReview(f.userID))
	_, err = f.svc.PreviewPage(f.userID, 1)
	assert.ErrorIs(t, err, ErrNoReview)
	assert.Empty(t, f.ledger.rows)

	assert.ErrorIs(t, f.svc.CancelReview(f.userID), ErrNoReview)
}

func TestImportHistory_Pagination(t *testing.T) {
	f := newFixture(t, extractor.Result{})
	for i := 0; i < 35; i++ {
		f.ledger.audits = append(f.ledger.audits, &ledger.StatementImport{
			ID:        uuid.New(),
			UserID:    f.userID,
			Status:    ledger.StatusImported,
			FileHash:  fmt.Sprintf("hash-%d", i),
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		})
	}

	page1, err := f.svc.ImportHistory(context.Background(), f.userID, 1)
	require.NoError(t, err)
	assert.Len(t, page1, 30)
	assert.Equal(t, "hash-34", page1[0].FileHash)

	page2, err := f.svc.ImportHistory(context.Background(), f.userID, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
}
