// Package segment splits extracted document text into chunks for embedding.
//
// Segmentation runs in two passes. The structural pass cuts markdown at
// headings so each unit is one section; tables stay inside their section.
// The size pass re-splits any section longer than MaxSectionWords into
// overlapping, sentence-bounded windows of at most ChunkTokens model tokens.
// Model tokens are estimated from whitespace words with TokensPerWord;
// the Tokens field of a Segment is its word count.
package segment

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	DefaultMaxSectionWords = 800
	DefaultChunkTokens     = 1024
	DefaultOverlapTokens   = 200

	// DefaultTokensPerWord is the usual ratio for English text under the
	// OpenAI tokenizers, about 0.75 words per token.
	DefaultTokensPerWord = 4.0 / 3.0
)

// ErrInvalidConfig is returned for thresholds that cannot produce windows.
var ErrInvalidConfig = errors.New("invalid segmentation config")

// Config holds the size thresholds. Identical text and identical
// thresholds always produce identical segments.
type Config struct {
	MaxSectionWords int
	ChunkTokens     int
	OverlapTokens   int

	// TokensPerWord converts ChunkTokens and OverlapTokens into word
	// budgets. Zero counts every word as one token.
	TokensPerWord float64
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		MaxSectionWords: DefaultMaxSectionWords,
		ChunkTokens:     DefaultChunkTokens,
		OverlapTokens:   DefaultOverlapTokens,
		TokensPerWord:   DefaultTokensPerWord,
	}
}

// Validate checks that windows can make progress.
func (c Config) Validate() error {
	switch {
	case c.MaxSectionWords <= 0:
		return fmt.Errorf("%w: max section words must be positive", ErrInvalidConfig)
	case c.ChunkTokens <= 0:
		return fmt.Errorf("%w: chunk tokens must be positive", ErrInvalidConfig)
	case c.OverlapTokens < 0 || c.OverlapTokens >= c.ChunkTokens:
		return fmt.Errorf("%w: overlap must be in [0, chunk tokens)", ErrInvalidConfig)
	case c.TokensPerWord < 0:
		return fmt.Errorf("%w: tokens per word must not be negative", ErrInvalidConfig)
	case c.windowWords() < 1:
		return fmt.Errorf("%w: chunk tokens hold less than one word", ErrInvalidConfig)
	}
	return nil
}

func (c Config) ratio() float64 {
	if c.TokensPerWord == 0 {
		return 1
	}
	return c.TokensPerWord
}

// windowWords is the word budget of one window.
func (c Config) windowWords() int {
	return int(math.Floor(float64(c.ChunkTokens) / c.ratio()))
}

// overlapWords is the word budget carried into the next window. It stays
// below windowWords so every window advances.
func (c Config) overlapWords() int {
	return min(int(math.Floor(float64(c.OverlapTokens)/c.ratio())), c.windowWords()-1)
}

// Segment is one chunk of text ready for embedding.
type Segment struct {
	Index  int
	Text   string
	Tokens int
}

// Segmenter is safe for concurrent use.
type Segmenter struct {
	cfg          Config
	windowWords  int
	overlapWords int
}

// New returns a Segmenter for cfg.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		cfg:          cfg,
		windowWords:  cfg.windowWords(),
		overlapWords: cfg.overlapWords(),
	}, nil
}

// Config returns the thresholds in use.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Split runs both passes and indexes the flattened output from zero.
// Blank input yields no segments.
func (s *Segmenter) Split(text string) []Segment {
	var out []Segment
	for _, section := range Sections(text) {
		units := []string{section}
		if CountTokens(section) > s.cfg.MaxSectionWords {
			units = s.window(section)
		}
		for _, unit := range units {
			unit = strings.TrimSpace(unit)
			if unit == "" {
				continue
			}
			out = append(out, Segment{
				Index:  len(out),
				Text:   unit,
				Tokens: CountTokens(unit),
			})
		}
	}
	return out
}

// CountTokens returns the whitespace word count of s.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}
