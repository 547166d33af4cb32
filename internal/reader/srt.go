package reader

import (
	"strings"
	"unicode"
)

// ParseSRT converts subtitle text to prose. Cue numbers and timestamp lines
// are dropped, blank lines are kept as paragraph breaks and runs of blank
// lines collapse to one.
func ParseSRT(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case s == "":
			out = append(out, "")
		case isDigits(s), strings.Contains(s, "-->"):
			continue
		default:
			out = append(out, s)
		}
	}

	text := strings.Join(out, "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
