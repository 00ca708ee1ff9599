package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
)

// CSVRow is a raw statement row as uploaded. Values stay unparsed so the
// caller can report per-row normalization errors with the original text.
type CSVRow struct {
	Date     string `csv:"date"`
	Title    string `csv:"title"`
	Amount   string `csv:"amount"`
	Category string `csv:"category"`
	Type     string `csv:"transaction_type"`
	Account  string `csv:"account"`
}

var canonicalHeader = []byte("date,title,amount,category,transaction_type,account\n")

// ParseCSV decodes an uploaded CSV statement. Files with a header row match
// columns by name (case-insensitive); headerless files are read positionally
// as date, title, amount, category, transaction_type, account.
func ParseCSV(data []byte, hasHeader bool) ([]CSVRow, error) {
	data = normalizeCSVBytes(data)
	if hasHeader {
		data = lowercaseHeaderLine(data)
	} else {
		data = append(append([]byte{}, canonicalHeader...), data...)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []CSVRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}

func lowercaseHeaderLine(data []byte) []byte {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return bytes.ToLower(data)
	}
	out := make([]byte, 0, len(data))
	out = append(out, bytes.ToLower(data[:idx])...)
	out = append(out, data[idx:]...)
	return out
}

func normalizeCSVBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
