package cli

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// firstLineRune is the rune standing for the first distinct line. Runes
// from here up are valid and never surrogates.
const firstLineRune = 0x10000

// lineDiff renders a line-oriented diff of want and got. Unchanged lines
// are prefixed with two spaces, removed lines with "- " and added lines
// with "+ ".
func lineDiff(want, got string) string {
	var lines []string
	index := map[string]rune{}
	encode := func(s string) []rune {
		var out []rune
		for _, line := range splitLines(s) {
			r, ok := index[line]
			if !ok {
				r = rune(firstLineRune + len(lines))
				index[line] = r
				lines = append(lines, line)
			}
			out = append(out, r)
		}
		return out
	}
	a, b := encode(want), encode(got)

	dmp := diffmatchpatch.New()
	var out strings.Builder
	for _, d := range dmp.DiffMainRunes(a, b, false) {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, r := range d.Text {
			line := lines[r-firstLineRune]
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
