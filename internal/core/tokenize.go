package core

// tokenize.go splits raw upload text into lines and comma-separated fields.
//
// There is deliberately no quote or escape handling: a field containing a
// literal comma shifts every following column of that row. Files are expected
// in UTF-8; invalid bytes are replaced with U+FFFD rather than rejected.

import (
	"strings"
	"unicode/utf8"
)

const utf8BOM = "\uFEFF"

// Tokenize returns the non-empty lines of raw, each split on ','.
// The first returned line is the header. Fewer than two non-empty lines
// yields an *EmptyFileError.
func Tokenize(raw string) ([][]string, error) {
	raw = strings.TrimPrefix(sanitizeUTF8(raw), utf8BOM)

	var lines [][]string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.Split(line, ","))
	}

	if len(lines) < 2 {
		return nil, &EmptyFileError{Lines: len(lines)}
	}
	return lines, nil
}

// sanitizeUTF8 replaces every invalid byte with the replacement character.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}
