package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tenWordSentences returns n sentences of exactly ten words, grouped ten per
// paragraph.
func tenWordSentences(word string, n int) string {
	var paras []string
	var current []string
	for i := 0; i < n; i++ {
		current = append(current, fmt.Sprintf("%s sentence %d has exactly ten words in it today.", word, i))
		if len(current) == 10 {
			paras = append(paras, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		paras = append(paras, strings.Join(current, " "))
	}
	return strings.Join(paras, "\n\n")
}

// reportText has five sections; Notes alone exceeds the section ceiling.
func reportText() string {
	return strings.Join([]string{
		"# Intro\n\nThis report covers the fiscal year.",
		"## Revenue\n\nRevenue grew by twelve percent.\n\n| Quarter | Revenue |\n|---|---|\n| Q1 | 10 |\n| Q2 | 12 |",
		"## Notes\n\n" + tenWordSentences("Notes", 150),
		"## Risks\n\nCurrency exposure remains the main risk.",
		"## Outlook\n\nWe expect steady growth next year.",
	}, "\n\n")
}

func newDefault(t *testing.T) *Segmenter {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestSections(t *testing.T) {
	t.Run("no headings", func(t *testing.T) {
		assert.Equal(t, []string{"plain text only"}, Sections("plain text only"))
	})

	t.Run("blank", func(t *testing.T) {
		assert.Empty(t, Sections("  \n\n "))
	})

	t.Run("preamble and nested levels", func(t *testing.T) {
		got := Sections("Preamble text.\n\n# A\n\nbody a\n\n## B\n\nbody b")
		assert.Equal(t, []string{"Preamble text.\n\n", "# A\n\nbody a\n\n", "## B\n\nbody b"}, got)
	})

	t.Run("heading in code block does not cut", func(t *testing.T) {
		got := Sections("# A\n\n```\n# not a heading\n```\n\n# B\n\nx")
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "# not a heading")
		assert.True(t, strings.HasPrefix(got[1], "# B"))
	})

	t.Run("table stays in its section", func(t *testing.T) {
		got := Sections("# Data\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n# Next\n\ntext")
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "| a | b |\n|---|---|\n| 1 | 2 |")
	})

	t.Run("setext heading", func(t *testing.T) {
		got := Sections("intro\n\nTitle\n=====\n\ntext")
		assert.Equal(t, []string{"intro\n\n", "Title\n=====\n\ntext"}, got)
	})
}

func TestSplitReportScenario(t *testing.T) {
	s := newDefault(t)
	segments := s.Split(reportText())

	require.Len(t, segments, 7)
	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
		assert.NotEmpty(t, strings.TrimSpace(seg.Text))
		assert.Equal(t, CountTokens(seg.Text), seg.Tokens)
		assert.LessOrEqual(t, seg.Tokens, DefaultChunkTokens)
	}

	assert.True(t, strings.HasPrefix(segments[0].Text, "# Intro"))
	assert.True(t, strings.HasPrefix(segments[1].Text, "## Revenue"))
	assert.Contains(t, segments[1].Text, "| Q2 | 12 |")
	assert.True(t, strings.HasPrefix(segments[2].Text, "## Notes"))
	assert.True(t, strings.HasPrefix(segments[5].Text, "## Risks"))
	assert.True(t, strings.HasPrefix(segments[6].Text, "## Outlook"))

	// 1024 model tokens hold 768 words; windows overlap by fifteen sentences.
	assert.Equal(t, 762, segments[2].Tokens)
	assert.True(t, strings.HasSuffix(segments[2].Text, "Notes sentence 75 has exactly ten words in it today."))
	assert.True(t, strings.HasPrefix(segments[3].Text, "Notes sentence 61 has"))
	assert.True(t, strings.HasPrefix(segments[4].Text, "Notes sentence 122 has"))
	assert.True(t, strings.HasSuffix(segments[4].Text, "Notes sentence 149 has exactly ten words in it today."))
}

func TestSplitDeterministic(t *testing.T) {
	s := newDefault(t)
	text := reportText()
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestSplitShortTextWithoutHeadings(t *testing.T) {
	s := newDefault(t)
	segments := s.Split("Just a short note.\n\nWith two paragraphs.")
	require.Len(t, segments, 1)
	assert.Equal(t, "Just a short note.\n\nWith two paragraphs.", segments[0].Text)
	assert.Equal(t, 7, segments[0].Tokens)
}

func TestSplitLongTextWithoutHeadings(t *testing.T) {
	s := newDefault(t)
	segments := s.Split(tenWordSentences("Body", 120))
	require.Len(t, segments, 2)
	assert.True(t, strings.HasPrefix(segments[1].Text, "Body sentence 61 has"))
}

func TestSplitSectionJustOverCeiling(t *testing.T) {
	s := newDefault(t)
	var sentences []string
	for i := 0; i < 82; i++ {
		sentences = append(sentences, fmt.Sprintf("Line %d of the notes holds eleven words for this test.", i))
	}
	text := "# Notes\n\n" + strings.Join(sentences, " ")
	require.Equal(t, 904, CountTokens(text))

	segments := s.Split(text)
	require.Len(t, segments, 2)
	for _, seg := range segments {
		assert.LessOrEqual(t, seg.Tokens, 768)
	}
	assert.True(t, strings.HasPrefix(segments[0].Text, "# Notes"))
	assert.True(t, strings.HasSuffix(segments[1].Text, "Line 81 of the notes holds eleven words for this test."))
}

func TestTokensPerWord(t *testing.T) {
	cfg := Config{MaxSectionWords: 10, ChunkTokens: 8, OverlapTokens: 4, TokensPerWord: 2}
	s, err := New(cfg)
	require.NoError(t, err)

	segments := s.Split("one two three four five six seven eight nine ten eleven twelve")
	require.NotEmpty(t, segments)
	for _, seg := range segments {
		assert.LessOrEqual(t, seg.Tokens, 4)
	}

	_, err = New(Config{MaxSectionWords: 10, ChunkTokens: 1, OverlapTokens: 0, TokensPerWord: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{MaxSectionWords: 10, ChunkTokens: 8, OverlapTokens: 0, TokensPerWord: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplitBlank(t *testing.T) {
	s := newDefault(t)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split(" \n\t\n"))
}

func TestWindowOverlap(t *testing.T) {
	s, err := New(Config{MaxSectionWords: 10, ChunkTokens: 8, OverlapTokens: 3})
	require.NoError(t, err)

	segments := s.Split("One two three. Four five six. Seven eight nine. Ten eleven twelve.")
	require.Len(t, segments, 3)
	assert.Equal(t, "One two three. Four five six.", segments[0].Text)
	assert.Equal(t, "Four five six. Seven eight nine.", segments[1].Text)
	assert.Equal(t, "Seven eight nine. Ten eleven twelve.", segments[2].Text)
}

func TestOversizedSentenceFallsBackToWords(t *testing.T) {
	s, err := New(Config{MaxSectionWords: 10, ChunkTokens: 4, OverlapTokens: 1})
	require.NoError(t, err)

	segments := s.Split("a b c d e f g h i j k")
	require.Len(t, segments, 3)
	assert.Equal(t, "a b c d", segments[0].Text)
	assert.Equal(t, "e f g h", segments[1].Text)
	assert.Equal(t, "i j k", segments[2].Text)
}

func TestOversizedSentenceSplitsOnClauses(t *testing.T) {
	s, err := New(Config{MaxSectionWords: 5, ChunkTokens: 4, OverlapTokens: 0})
	require.NoError(t, err)

	segments := s.Split("first part here, second part here; third part")
	require.Len(t, segments, 3)
	assert.Equal(t, "first part here,", segments[0].Text)
	assert.Equal(t, "second part here;", segments[1].Text)
	assert.Equal(t, "third part", segments[2].Text)
}

func TestTableIsAtomicInWindows(t *testing.T) {
	s, err := New(Config{MaxSectionWords: 20, ChunkTokens: 15, OverlapTokens: 4})
	require.NoError(t, err)

	table := "| a | b |\n|---|---|\n| 1 | 2 |"
	text := "# Data\n\nIntro sentence one here. Another sentence follows now.\n\n" + table +
		"\n\nClosing words are here. Final line of text."

	segments := s.Split(text)
	require.Len(t, segments, 3)
	found := false
	for _, seg := range segments {
		if strings.Contains(seg.Text, table) {
			found = true
		}
		assert.LessOrEqual(t, seg.Tokens, 15)
	}
	assert.True(t, found, "table must appear whole in one segment")
}

func TestSentences(t *testing.T) {
	got := sentences(`He said "stop." Then left! Why? Version 1.2 shipped.`)
	assert.Equal(t, []string{`He said "stop."`, "Then left!", "Why?", "Version 1.2 shipped."}, got)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{MaxSectionWords: 0, ChunkTokens: 10, OverlapTokens: 1},
		{MaxSectionWords: 10, ChunkTokens: 0, OverlapTokens: 0},
		{MaxSectionWords: 10, ChunkTokens: 10, OverlapTokens: 10},
		{MaxSectionWords: 10, ChunkTokens: 10, OverlapTokens: -1},
	}
	for _, cfg := range bad {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}
