// Package diff renders line oriented differences between two documents.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	maxLines        = 10000
	truncateMessage = "... (diff truncated, exceeds 10,000 lines) ..."
)

// Unified renders the changes from base to derived in unified format with
// the whole document as a single hunk. Identical documents render as an
// empty string.
func Unified(base, derived []byte, baseLabel, derivedLabel string) string {
	if bytes.Equal(base, derived) {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(base), string(derived))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var buf strings.Builder
	fmt.Fprintf(&buf, "--- %s\n", baseLabel)
	fmt.Fprintf(&buf, "+++ %s\n", derivedLabel)
	fmt.Fprintf(&buf, "@@ -1,%d +1,%d @@\n", countLines(base), countLines(derived))

	written := 3
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range splitLines(d.Text) {
			if written >= maxLines {
				buf.WriteString(truncateMessage)
				buf.WriteString("\n")
				return buf.String()
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
			buf.WriteString("\n")
			written++
		}
	}
	return buf.String()
}

// splitLines splits text on newlines, dropping the empty element that
// follows a trailing newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func countLines(doc []byte) int {
	return len(splitLines(string(doc)))
}
