// Package importer reads prose from local files for the conversion dialog.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/ledongthuc/pdf"

	"github.com/csheth/chapterdesk/internal/textstats"
)

const maxImportBytes = 8 << 20

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrTooLarge    = errors.New("file too large to import")
	ErrNoText      = errors.New("file contains no text")
)

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v]+`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// Format is the source kind of an imported document.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// Document is the text pulled out of a file.
type Document struct {
	Path   string
	Name   string
	Format Format
	Size   int64
	Text   string
}

// Summary is a one-line description for the status bar.
func (d Document) Summary() string {
	return fmt.Sprintf("%s · %s · %s words", d.Name, humanize.Bytes(uint64(d.Size)), humanize.Comma(int64(textstats.Words(d.Text))))
}

// Supported reports whether path has an importable extension.
func Supported(path string) bool {
	_, ok := formatFor(path)
	return ok
}

func formatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return FormatText, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}

// Load reads path and returns its prose with paragraph breaks kept as blank
// lines.
func Load(path string) (Document, error) {
	path = expandHome(strings.TrimSpace(path))
	format, ok := formatFor(path)
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxImportBytes {
		return Document{}, fmt.Errorf("%w (%s, limit %s)", ErrTooLarge, humanize.Bytes(uint64(info.Size())), humanize.Bytes(maxImportBytes))
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = pdfText(path)
	default:
		text, err = plainText(path)
	}
	if err != nil {
		return Document{}, err
	}
	text = normalize(text)
	if text == "" {
		return Document{}, ErrNoText
	}
	return Document{Path: path, Name: filepath.Base(path), Format: format, Size: info.Size(), Text: text}, nil
}

func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(path))
	}
	return string(data), nil
}

func pdfText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	text = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
