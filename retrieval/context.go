package retrieval

import (
	"fmt"
	"strings"
)

const (
	// NoContext is the context handed to the model when nothing was retrieved.
	NoContext = "No relevant information found."

	contextSeparator = "\n\n---\n\n"
)

// BuildContext formats results as source-annotated blocks joined by a
// separator line. Blocks are added in order while the total stays within
// maxChars; the first block is always kept. maxChars <= 0 means no bound.
func BuildContext(results []Result, maxChars int) string {
	if len(results) == 0 {
		return NoContext
	}

	var b strings.Builder
	for i, r := range results {
		block := fmt.Sprintf("[Source: %s, Chunk %d]\n%s", r.Filename, r.Index, r.Text)
		if i > 0 {
			if maxChars > 0 && b.Len()+len(contextSeparator)+len(block) > maxChars {
				break
			}
			b.WriteString(contextSeparator)
		}
		b.WriteString(block)
	}
	return b.String()
}

// Preview returns the first n runes of text, followed by "..." when cut.
func Preview(text string, n int) string {
	count := 0
	for i := range text {
		if count == n {
			return text[:i] + "..."
		}
		count++
	}
	return text
}
