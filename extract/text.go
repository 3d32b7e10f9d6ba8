package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// PlainText accepts UTF-8 text documents, markdown included, as-is.
type PlainText struct{}

func (PlainText) Name() string { return "plain-text" }

func (PlainText) Extract(_ context.Context, data []byte) (*Result, error) {
	if !isText(data) {
		return nil, ErrUnsupported
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if text == "" {
		return nil, ErrEmptyText
	}
	return &Result{Text: text, Pages: 1}, nil
}

func isText(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
