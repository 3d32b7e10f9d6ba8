package segment

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Sections cuts text at every heading that sits directly under the
// document root. Each section keeps its heading line; text before the first
// heading is its own section. Headings inside code blocks, lists or quotes
// do not cut. Without headings the whole text is one section.
func Sections(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	src := []byte(text)
	doc := markdown.Parser().Parse(gmtext.NewReader(src))

	var cuts []int
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() != ast.KindHeading {
			continue
		}
		lines := n.Lines()
		if lines == nil || lines.Len() == 0 {
			continue
		}
		start := lineStart(src, lines.At(0).Start)
		if len(cuts) == 0 || start > cuts[len(cuts)-1] {
			cuts = append(cuts, start)
		}
	}

	if len(cuts) == 0 {
		return []string{text}
	}

	sections := make([]string, 0, len(cuts)+1)
	if pre := text[:cuts[0]]; strings.TrimSpace(pre) != "" {
		sections = append(sections, pre)
	}
	for i, start := range cuts {
		end := len(text)
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		if section := text[start:end]; strings.TrimSpace(section) != "" {
			sections = append(sections, section)
		}
	}
	return sections
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}
