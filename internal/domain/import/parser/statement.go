// Package parser turns extracted statement text and uploaded CSV files into
// transaction candidates.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkeep/ledgerkeep/internal/domain/import/normalizer"
	"github.com/ledgerkeep/ledgerkeep/internal/domain/ledger"
)

const (
	maxTitleLen    = 255
	maxCategoryLen = 100

	// A transaction line starts with its date; tokens deeper into the line
	// are usually posting dates or reference numbers.
	maxDateOffset = 4
)

var (
	dateTokenRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	// Matched tokens adjacent to another digit are fragments of a longer
	// number (account or reference ids) and get filtered out after the scan.
	amountTokenRe = regexp.MustCompile(`-?\$?\(?\d[\d,]*\.\d{2}\)?`)
)

// Candidate is one auto-detected transaction from a statement.
type Candidate struct {
	Date     time.Time
	Title    string
	Amount   decimal.Decimal // absolute value
	Category string
	Kind     ledger.TransactionKind
}

// Categorizer assigns a category to a transaction description.
type Categorizer interface {
	Guess(description string) string
}

// StatementParser scans statement text line by line for transactions.
type StatementParser struct {
	categorize Categorizer
}

func NewStatementParser(categorize Categorizer) *StatementParser {
	return &StatementParser{categorize: categorize}
}

// Parse walks the text and keeps every line that opens with a date token and
// carries at least one amount token. Yearless dates resolve against the
// reference date. Lines that repeat an already-seen date, title, and amount
// are dropped.
func (p *StatementParser) Parse(text string, reference time.Time) []Candidate {
	var candidates []Candidate
	seen := make(map[string]struct{})

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.Join(strings.Fields(rawLine), " ")
		if line == "" {
			continue
		}

		dateMatch := dateTokenRe.FindStringSubmatchIndex(line)
		if dateMatch == nil || dateMatch[0] > maxDateOffset {
			continue
		}

		amounts := findAmountTokens(line)
		if len(amounts) == 0 {
			continue
		}
		// When a running balance is present the amount is usually the
		// second-to-last token.
		chosen := amounts[len(amounts)-1]
		if len(amounts) >= 2 {
			chosen = amounts[len(amounts)-2]
		}

		tok := dateTokenAt(line, dateMatch)
		txDate, err := normalizer.ResolveDateToken(tok, reference)
		if err != nil {
			continue
		}
		signed, err := normalizer.ParseSignedAmount(line[chosen[0]:chosen[1]])
		if err != nil {
			continue
		}

		if chosen[0] < dateMatch[1] {
			continue
		}
		title := strings.Trim(line[dateMatch[1]:chosen[0]], " -")
		if len(title) < 2 {
			continue
		}

		kind := ledger.KindForAmount(signed)
		amount := signed.Abs()
		category := p.categorize.Guess(title)

		sig := txDate.Format("2006-01-02") + "|" + strings.ToLower(title) + "|" + amount.StringFixed(2)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}

		candidates = append(candidates, Candidate{
			Date:     txDate,
			Title:    truncateRunes(title, maxTitleLen),
			Amount:   amount,
			Category: truncateRunes(category, maxCategoryLen),
			Kind:     kind,
		})
	}
	return candidates
}

// findAmountTokens returns the [start, end) spans of money-like tokens,
// skipping any span that touches a neighboring digit.
func findAmountTokens(line string) [][]int {
	var spans [][]int
	for _, span := range amountTokenRe.FindAllStringIndex(line, -1) {
		if span[0] > 0 && isDigit(line[span[0]-1]) {
			continue
		}
		if span[1] < len(line) && isDigit(line[span[1]]) {
			continue
		}
		spans = append(spans, span)
	}
	return spans
}

func dateTokenAt(line string, match []int) normalizer.DateToken {
	month, _ := strconv.Atoi(line[match[2]:match[3]])
	day, _ := strconv.Atoi(line[match[4]:match[5]])
	tok := normalizer.DateToken{Month: month, Day: day}
	if match[6] >= 0 {
		tok.Year, _ = strconv.Atoi(line[match[6]:match[7]])
		tok.HasYear = true
	}
	return tok
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
