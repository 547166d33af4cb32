// Package reader extracts plain text from keynote source files.
package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Format identifies how a source file is decoded.
type Format string

// Supported formats.
const (
	FormatAuto     Format = "auto"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatDocx     Format = "docx"
	FormatSRT      Format = "srt"
)

// ErrUnsupportedFormat is returned for an explicit format that is not recognized.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Document is the text of a source file together with the format it was read as.
type Document struct {
	Path    string
	Format  Format
	Content string
}

// ParseFormat validates a format name. An empty name means auto.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatText, FormatMarkdown, FormatDocx, FormatSRT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// DetectFormat infers a format from the file extension. Unknown extensions
// are read as plain text.
func DetectFormat(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "md", "markdown":
		return FormatMarkdown
	case "docx":
		return FormatDocx
	case "srt":
		return FormatSRT
	default:
		return FormatText
	}
}

// Read loads the file at path using the format hint.
func Read(path, hint string) (Document, error) {
	format, err := ParseFormat(hint)
	if err != nil {
		return Document{}, err
	}
	if format == FormatAuto {
		format = DetectFormat(path)
	}

	var content string
	switch format {
	case FormatText, FormatMarkdown:
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		content = string(data)
	case FormatSRT:
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		content = ParseSRT(cleanText(string(data)))
	case FormatDocx:
		content, err = readDocx(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return Document{
		Path:    path,
		Format:  format,
		Content: cleanText(content),
	}, nil
}

// cleanText drops invalid UTF-8 and a leading byte order mark, and
// normalizes to NFC.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimPrefix(s, "\ufeff")
	return norm.NFC.String(s)
}
