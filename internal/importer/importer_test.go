package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPlainTextKeepsParagraphs(t *testing.T) {
	path := writeFile(t, "draft.txt", "\ufeffFirst   line\r\ncontinues.\r\n\r\n\r\n\r\nSecond\tparagraph.  \n")
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := "First line\ncontinues.\n\nSecond paragraph."
	if doc.Text != want {
		t.Fatalf("unexpected text %q", doc.Text)
	}
	if doc.Format != FormatText || doc.Name != "draft.txt" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !strings.Contains(doc.Summary(), "draft.txt") || !strings.Contains(doc.Summary(), "5 words") {
		t.Fatalf("unexpected summary %q", doc.Summary())
	}
}

func TestLoadMarkdown(t *testing.T) {
	doc, err := Load(writeFile(t, "scene.MD", "# Night\n\nMara: Who's there?"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Format != FormatMarkdown || !strings.HasPrefix(doc.Text, "# Night") {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestLoadRejections(t *testing.T) {
	cases := []struct {
		name string
		path func(t *testing.T) string
		err  error
	}{
		{name: "unsupported", path: func(t *testing.T) string { return writeFile(t, "book.epub", "x") }, err: ErrUnsupported},
		{name: "blank", path: func(t *testing.T) string { return writeFile(t, "blank.txt", " \n\n \t") }, err: ErrNoText},
		{name: "too large", path: func(t *testing.T) string {
			return writeFile(t, "huge.txt", strings.Repeat("a", maxImportBytes+1))
		}, err: ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.path(t)); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestLoadReportsBrokenPDF(t *testing.T) {
	_, err := Load(writeFile(t, "broken.pdf", "not really a pdf"))
	if err == nil || !strings.Contains(err.Error(), "pdf") {
		t.Fatalf("expected pdf error, got %v", err)
	}
}

func TestLoadRejectsInvalidUTF8(t *testing.T) {
	if _, err := Load(writeFile(t, "latin1.txt", "caf\xe9")); err == nil {
		t.Fatalf("expected utf-8 error")
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{"a.txt": true, "b.markdown": true, "c.PDF": true, "d.docx": false, "e": false} {
		if got := Supported(path); got != want {
			t.Fatalf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
