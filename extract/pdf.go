package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// PDFText extracts the plain text stream of every page.
type PDFText struct{}

func (PDFText) Name() string { return "pdf-text" }

func (PDFText) Extract(ctx context.Context, data []byte) (*Result, error) {
	return readPDF(ctx, data, func(p pdf.Page, fonts map[string]*pdf.Font) (string, error) {
		return p.GetPlainText(fonts)
	})
}

// PDFRows rebuilds each page line by line from positioned text runs. It
// recovers text from layouts where the content stream order is scrambled,
// such as tables.
type PDFRows struct{}

func (PDFRows) Name() string { return "pdf-rows" }

func (PDFRows) Extract(ctx context.Context, data []byte) (*Result, error) {
	return readPDF(ctx, data, func(p pdf.Page, _ map[string]*pdf.Font) (string, error) {
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, t := range row.Content {
				if s := strings.TrimSpace(t.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) > 0 {
				sb.WriteString(strings.Join(words, " "))
				sb.WriteByte('\n')
			}
		}
		return sb.String(), nil
	})
}

type pageReader func(p pdf.Page, fonts map[string]*pdf.Font) (string, error)

// readPDF applies read to every page and joins pages with blank lines.
// The parser panics on some malformed input; that is reported as an error.
func readPDF(ctx context.Context, data []byte, read pageReader) (res *Result, err error) {
	if !mimetype.Detect(data).Is("application/pdf") {
		return nil, ErrUnsupported
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := read(page, fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	text := strings.Join(pages, "\n\n")
	if text == "" {
		return nil, ErrEmptyText
	}
	return &Result{Text: text, Pages: numPages}, nil
}
