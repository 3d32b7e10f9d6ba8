package segment

import (
	"strings"
	"unicode"
)

// piece is an unsplittable run of text inside a section: a sentence, a
// sentence fragment, or a whole table. paraEnd marks the last piece of a
// paragraph so windows keep paragraph breaks.
type piece struct {
	text    string
	tokens  int
	paraEnd bool
}

// window splits an oversized section into overlapping windows of at most
// windowWords words. Each window starts on a piece boundary and repeats up
// to overlapWords words from the end of the previous one.
func (s *Segmenter) window(section string) []string {
	pieces := s.pieces(section)
	if len(pieces) == 0 {
		return nil
	}

	var windows []string
	start := 0
	for {
		end, size := start, 0
		for end < len(pieces) && (end == start || size+pieces[end].tokens <= s.windowWords) {
			size += pieces[end].tokens
			end++
		}
		windows = append(windows, joinPieces(pieces[start:end]))
		if end == len(pieces) {
			return windows
		}

		// The overlap must leave room for pieces[end] so every window advances.
		next, overlap := end, 0
		for next-1 > start &&
			overlap+pieces[next-1].tokens <= s.overlapWords &&
			overlap+pieces[next-1].tokens+pieces[end].tokens <= s.windowWords {
			next--
			overlap += pieces[next].tokens
		}
		start = next
	}
}

func joinPieces(pieces []piece) string {
	var sb strings.Builder
	for i, p := range pieces {
		if i > 0 {
			if pieces[i-1].paraEnd {
				sb.WriteString("\n\n")
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(p.text)
	}
	return sb.String()
}

// pieces breaks a section into paragraphs, then sentences. Tables are kept
// whole unless they alone exceed a window, in which case they break between
// rows. Sentences longer than a window fall back to clauses, then words.
func (s *Segmenter) pieces(section string) []piece {
	var out []piece
	for _, para := range paragraphs(section) {
		var parts []string
		if isTable(para) {
			parts = s.tableParts(para)
		} else {
			for _, sentence := range sentences(para) {
				parts = append(parts, s.fit(sentence)...)
			}
		}
		for _, part := range parts {
			if n := CountTokens(part); n > 0 {
				out = append(out, piece{text: part, tokens: n})
			}
		}
		if len(out) > 0 {
			out[len(out)-1].paraEnd = true
		}
	}
	return out
}

// paragraphs splits on blank lines.
func paragraphs(text string) []string {
	var (
		out     []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}

func isTable(para string) bool {
	for _, line := range strings.Split(para, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			return false
		}
	}
	return true
}

func (s *Segmenter) tableParts(table string) []string {
	if CountTokens(table) <= s.windowWords {
		return []string{table}
	}
	var (
		out     []string
		current []string
		size    int
	)
	for _, row := range strings.Split(table, "\n") {
		n := CountTokens(row)
		if len(current) > 0 && size+n > s.windowWords {
			out = append(out, strings.Join(current, "\n"))
			current, size = nil, 0
		}
		current = append(current, row)
		size += n
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, "\n"))
	}
	return out
}

// sentences splits after terminal punctuation followed by whitespace.
// Closing quotes and brackets stay with their sentence.
func sentences(para string) []string {
	return splitAfter(para, func(r rune) bool { return r == '.' || r == '!' || r == '?' })
}

func clauses(sentence string) []string {
	return splitAfter(sentence, func(r rune) bool { return r == ',' || r == ';' || r == ':' })
}

func splitAfter(text string, isBoundary func(rune) bool) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isBoundary(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && strings.ContainsRune(`"')]”’`, runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			out = append(out, part)
		}
		start = end
		i = end - 1
	}
	if part := strings.TrimSpace(string(runes[start:])); part != "" {
		out = append(out, part)
	}
	return out
}

// fit returns sentence unchanged when it fits a window, otherwise clause
// groups, and as a last resort fixed-size word runs.
func (s *Segmenter) fit(sentence string) []string {
	limit := s.windowWords
	if CountTokens(sentence) <= limit {
		return []string{sentence}
	}

	var (
		out   []string
		group []string
		size  int
	)
	flush := func() {
		if len(group) > 0 {
			out = append(out, strings.Join(group, " "))
			group, size = nil, 0
		}
	}
	for _, clause := range clauses(sentence) {
		n := CountTokens(clause)
		if n > limit {
			flush()
			words := strings.Fields(clause)
			for i := 0; i < len(words); i += limit {
				out = append(out, strings.Join(words[i:min(i+limit, len(words))], " "))
			}
			continue
		}
		if size+n > limit {
			flush()
		}
		group = append(group, clause)
		size += n
	}
	flush()
	return out
}
