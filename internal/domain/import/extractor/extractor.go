// Package extractor pulls plain text out of statement PDFs using external
// tools, falling back from text extraction to OCR for scanned documents.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

const (
	MethodPdftotext = "pdftotext"
	MethodMutool    = "mutool"
	MethodOCR       = "ocr"
)

// OCRWarning marks rows that came through the rasterize-and-OCR path so the
// review screen can prompt for closer checking.
const OCRWarning = "Imported using OCR fallback."

// NoTextWarning is surfaced when every strategy came back empty.
const NoTextWarning = "No selectable text found in PDF. This is likely a scanned statement and may require local OCR setup."

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Mutool    string // if empty -> "mutool"
	Pdftoppm  string // if empty -> "pdftoppm"
	Tesseract string // if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 250
	MaxPages      int    // 0 = no limit
}

// Result is the outcome of a full extraction attempt. Text may be empty with
// err == nil when no strategy produced anything; Warnings explains why.
type Result struct {
	Text     string
	Method   string
	Warnings []string
}

type Extractor struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Mutool == "" {
		cfg.Mutool = "mutool"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 250
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, lookPath: exec.LookPath, logger: logger}
}

// Extract writes the PDF bytes to a scratch file and walks the strategy
// chain: pdftotext, then mutool, then rasterize-and-OCR. The first strategy
// that yields non-blank text wins. Tool failures become warnings, never
// errors; only an unusable scratch file or a dead context is fatal.
func (e *Extractor) Extract(ctx context.Context, pdf []byte) (Result, error) {
	var res Result

	tmp, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return res, fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := tmp.Write(pdf); err != nil {
		_ = tmp.Close()
		return res, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("failed to write scratch file: %w", err)
	}

	type strategy struct {
		method string
		run    func(context.Context, string) (string, []string)
	}
	strategies := []strategy{
		{MethodPdftotext, e.pdftotext},
		{MethodMutool, e.mutool},
		{MethodOCR, e.ocr},
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, warns := s.run(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
		if strings.TrimSpace(text) == "" {
			continue
		}
		res.Text = text
		res.Method = s.method
		if s.method == MethodOCR {
			res.Warnings = append(res.Warnings, OCRWarning)
		}
		e.logger.Debug("pdf text extracted", "method", s.method, "bytes", len(text))
		return res, nil
	}

	res.Warnings = append(res.Warnings, NoTextWarning)
	return res, nil
}

func (e *Extractor) available(name string) bool {
	_, err := e.lookPath(name)
	return err == nil
}

func (e *Extractor) pdftotext(ctx context.Context, path string) (string, []string) {
	if !e.available(e.cfg.Pdftotext) {
		return "", []string{"pdftotext is not installed."}
	}
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", []string{fmt.Sprintf("pdftotext extraction issue: %v", err)}
	}
	return string(out), nil
}

func (e *Extractor) mutool(ctx context.Context, path string) (string, []string) {
	if !e.available(e.cfg.Mutool) {
		return "", []string{"mutool is not installed."}
	}
	out, _, err := e.runner.Run(ctx, e.cfg.Mutool, "draw", "-F", "text", "-o", "-", path)
	if err != nil {
		return "", []string{fmt.Sprintf("mutool extraction issue: %v", err)}
	}
	return string(out), nil
}

func (e *Extractor) ocr(ctx context.Context, path string) (string, []string) {
	if !e.available(e.cfg.Pdftoppm) || !e.available(e.cfg.Tesseract) {
		return "", []string{"OCR fallback unavailable. Install pdftoppm and tesseract to improve scanned PDF support."}
	}

	tmpDir, err := os.MkdirTemp("", "statement-ocr-*")
	if err != nil {
		return "", []string{fmt.Sprintf("OCR extraction issue: %v", err)}
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", []string{fmt.Sprintf("OCR extraction issue: %v (%s)", err, truncate(string(errb), 512))}
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		return "", []string{"OCR extraction issue: pdftoppm produced no images"}
	}

	var b strings.Builder
	var warns []string
	for _, page := range pages {
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, page, "stdout", "-l", e.cfg.TesseractLang)
		if err != nil {
			warns = append(warns, fmt.Sprintf("OCR extraction issue: %v (%s)", err, truncate(string(errb), 512)))
			continue
		}
		if strings.TrimSpace(string(out)) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.Write(out)
	}
	return b.String(), warns
}
