// Package report merges per-segment critiques into a single Markdown report
// and exports it together with a CSV summary.
package report

import (
	"fmt"
	"strings"

	"github.com/abdulachik/kfa/internal/chunker"
)

// Title is the first line of every report.
const Title = "# Keynote KFA Report"

// Result pairs a segment with the analysis produced for it.
type Result struct {
	Segment  chunker.Segment
	Analysis string
}

// Merge concatenates results in the order given. Each segment gets a
// section header, its source text as a blockquote and its analysis verbatim.
// Results are never re-sorted or deduplicated.
func Merge(results []Result) string {
	var b strings.Builder
	b.WriteString(Title)
	b.WriteString("\n")

	for _, r := range results {
		fmt.Fprintf(&b, "\n## Scene %d\n", r.Segment.Index)
		b.WriteString("> ")
		b.WriteString(strings.ReplaceAll(r.Segment.Text, "\n", "\n> "))
		b.WriteString("\n\n")
		b.WriteString(r.Analysis)
		b.WriteString("\n")
	}

	return b.String()
}
