package hls

import (
	"strings"
)

// Line is one meaningful input line: either a decoded directive or a URI.
type Line struct {
	// Number is the 1-based line number in the input.
	Number int
	// Tag is set for directive lines.
	Tag Tag
	// URI is set for URI lines.
	URI string
}

// LineScanner walks the lines of a playlist document. Blank lines and
// comments are skipped; directives are decoded as they are reached.
//
//	s := hls.NewLineScanner(text)
//	for s.Scan() {
//		line := s.Line()
//		...
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
type LineScanner struct {
	input  string
	rest   string
	number int
	line   Line
	err    error
}

// NewLineScanner returns a scanner positioned before the first line of input.
func NewLineScanner(input string) *LineScanner {
	return &LineScanner{input: input, rest: input}
}

// Scan advances to the next directive or URI line. It returns false at the
// end of input or after a directive fails to decode.
func (s *LineScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.rest != "" {
		var raw string
		raw, s.rest, _ = strings.Cut(s.rest, "\n")
		s.number++

		text := strings.TrimSpace(raw)
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, directivePrefix) && len(text) > len(directivePrefix):
			name, params, hasParams := strings.Cut(text[1:], ":")
			t, err := parseTag(name, params, hasParams)
			if err != nil {
				s.err = atLine(err, s.number)
				return false
			}
			s.line = Line{Number: s.number, Tag: t}
			return true
		case strings.HasPrefix(text, "#"):
			continue
		default:
			s.line = Line{Number: s.number, URI: text}
			return true
		}
	}
	return false
}

// Line returns the line produced by the last successful Scan.
func (s *LineScanner) Line() Line {
	return s.line
}

// Err returns the first decoding error, if any.
func (s *LineScanner) Err() error {
	return s.err
}

// Reset rewinds the scanner to the start of its input.
func (s *LineScanner) Reset() {
	s.rest = s.input
	s.number = 0
	s.line = Line{}
	s.err = nil
}
