// Package extract turns uploaded document bytes into text.
//
// Extractors are tried in order by a Chain; the first one that produces
// enough text wins and every failure along the way is kept for diagnostics.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

var (
	// ErrNoExtractor is returned when every extractor in a chain failed.
	ErrNoExtractor = errors.New("no extractor could read the document")

	// ErrEmptyText is returned by an extractor that ran but found no text.
	ErrEmptyText = errors.New("document contains no text")

	// ErrUnsupported is returned by an extractor that does not handle the
	// document's format.
	ErrUnsupported = errors.New("unsupported document format")

	// ErrEmptyChain is returned when a chain is built without extractors.
	ErrEmptyChain = errors.New("extractor chain is empty")
)

// DefaultMinChars is the amount of non-space text below which a chain keeps
// trying later extractors before settling for the thin result.
const DefaultMinChars = 100

// Result is the text extracted from one document.
type Result struct {
	Text      string
	Pages     int
	Extractor string
}

// Extractor reads one document format.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, data []byte) (*Result, error)
}

// Attempt records one extractor's failure inside a ChainError.
type Attempt struct {
	Extractor string
	Err       error
}

// ChainError lists the failure of every extractor in a chain.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Extractor, a.Err)
	}
	return fmt.Sprintf("%v (%s)", ErrNoExtractor, strings.Join(parts, "; "))
}

// Unwrap exposes ErrNoExtractor and each attempt's error to errors.Is.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, ErrNoExtractor)
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Chain tries extractors in order.
type Chain struct {
	extractors []Extractor
	minChars   int
	logger     *slog.Logger
}

var _ Extractor = (*Chain)(nil)

// Option configures a Chain.
type Option func(*Chain) error

// WithMinChars sets the non-space character count a result needs to end
// the chain early. Zero accepts the first non-empty result.
func WithMinChars(n int) Option {
	return func(c *Chain) error {
		if n < 0 {
			return fmt.Errorf("min chars cannot be negative: %d", n)
		}
		c.minChars = n
		return nil
	}
}

// WithLogger sets the chain's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger.With("component", "extract")
		return nil
	}
}

// NewChain builds a chain over extractors, tried in the given order.
func NewChain(extractors []Extractor, opts ...Option) (*Chain, error) {
	if len(extractors) == 0 {
		return nil, ErrEmptyChain
	}
	c := &Chain{
		extractors: extractors,
		minChars:   DefaultMinChars,
		logger:     slog.Default().With("component", "extract"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultChain tries PDF plain text, then PDF rows, then plain text.
func DefaultChain(opts ...Option) (*Chain, error) {
	return NewChain([]Extractor{PDFText{}, PDFRows{}, PlainText{}}, opts...)
}

func (c *Chain) Name() string { return "chain" }

// Extract returns the first result with at least minChars of text. When
// every extractor either fails or comes up short, the longest short result
// is returned; with no result at all the error is a *ChainError.
func (c *Chain) Extract(ctx context.Context, data []byte) (*Result, error) {
	var (
		attempts []Attempt
		best     *Result
		bestLen  int
	)
	for _, ex := range c.extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := ex.Extract(ctx, data)
		if err == nil && strings.TrimSpace(res.Text) == "" {
			err = ErrEmptyText
		}
		if err != nil {
			if !errors.Is(err, ErrUnsupported) {
				c.logger.Debug("extractor failed", "extractor", ex.Name(), "error", err)
			}
			attempts = append(attempts, Attempt{Extractor: ex.Name(), Err: err})
			continue
		}

		res.Extractor = ex.Name()
		n := visibleChars(res.Text)
		if n >= c.minChars {
			return res, nil
		}
		c.logger.Debug("extractor found little text, trying next", "extractor", ex.Name(), "chars", n)
		if best == nil || n > bestLen {
			best, bestLen = res, n
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, &ChainError{Attempts: attempts}
}

func visibleChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
