package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx/packager"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/ledongthuc/pdf"

	"github.com/meikuraledutech/storygraph"
)

// ErrUnsupportedFormat is returned for documents other than .txt, .docx and
// .pdf.
var ErrUnsupportedFormat = errors.New("media: unsupported document format")

// ReadDoc returns the text of a cached .txt, .docx or .pdf file.
func (s *Store) ReadDoc(name string) (string, error) {
	data, err := s.ReadFile(name)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return string(data), nil
	case ".docx":
		return docxToText(data)
	case ".pdf":
		return pdfToText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ReadText concatenates the text of files, one document per block. It
// satisfies storygraph.DocReader.
func (s *Store) ReadText(ctx context.Context, files []storygraph.FileRef) (string, error) {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := f.ServerName
		if name == "" {
			name = NameFromURL(f.URL)
		}
		text, err := s.ReadDoc(name)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// docxToText returns the text of the body paragraphs, one per line. Tabs
// and line breaks inside a run are kept; drawings and text boxes anchored in
// a run are skipped without cutting the paragraph short.
func docxToText(data []byte) (string, error) {
	doc, err := packager.Unpack(&data)
	if err != nil {
		return "", fmt.Errorf("media: open docx: %w", err)
	}
	if doc.Document == nil || doc.Document.Body == nil {
		return "", nil
	}
	lines := make([]string, 0, len(doc.Document.Body.Children))
	for _, child := range doc.Document.Body.Children {
		if child.Para == nil {
			continue
		}
		lines = append(lines, paragraphText(child.Para.GetCT()))
	}
	return strings.Join(lines, "\n"), nil
}

func paragraphText(p *ctypes.Paragraph) string {
	var b strings.Builder
	for _, child := range p.Children {
		if child.Run == nil {
			continue
		}
		for _, rc := range child.Run.Children {
			switch {
			case rc.Text != nil:
				b.WriteString(rc.Text.Text)
			case rc.Tab != nil:
				b.WriteByte('\t')
			case rc.Break != nil, rc.CarrRtn != nil:
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// pdfToText returns the plain text of every page, one line break between
// pages. Pages without content are skipped.
func pdfToText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("media: open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("media: pdf page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
