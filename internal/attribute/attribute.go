// Package attribute decodes HLS attribute lists (NAME=VALUE,NAME="VALUE",...).
package attribute

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is wrapped by every error returned from this package.
var ErrSyntax = errors.New("attribute list syntax error")

// Pair is one NAME=VALUE entry of an attribute list.
// Quoted values keep their surrounding double quotes.
type Pair struct {
	Name  string
	Value string
}

// Quoted reports whether the raw value is a quoted-string.
func (p Pair) Quoted() bool {
	return len(p.Value) >= 2 && p.Value[0] == '"' && p.Value[len(p.Value)-1] == '"'
}

// Scanner walks an attribute list one pair at a time.
// Commas inside double quotes do not split pairs.
type Scanner struct {
	input string
	rest  string
	pair  Pair
	err   error
	count int
}

// NewScanner returns a Scanner over the given attribute list.
func NewScanner(input string) *Scanner {
	return &Scanner{input: input, rest: input}
}

// Scan advances to the next pair. It returns false at the end of the list or
// on the first error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if s.count == 0 && strings.TrimSpace(s.input) == "" {
		s.err = fmt.Errorf("%w: empty attribute list", ErrSyntax)
		return false
	}
	if s.rest == "" && s.count > 0 {
		return false
	}

	end, err := nextComma(s.rest)
	if err != nil {
		s.err = err
		return false
	}

	field := s.rest[:end]
	if end < len(s.rest) {
		s.rest = s.rest[end+1:]
		if s.rest == "" {
			s.err = fmt.Errorf("%w: trailing comma in %q", ErrSyntax, s.input)
			return false
		}
	} else {
		s.rest = ""
	}

	name, value, ok := strings.Cut(field, "=")
	if !ok {
		s.err = fmt.Errorf("%w: attribute %q has no value", ErrSyntax, strings.TrimSpace(field))
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		s.err = fmt.Errorf("%w: empty attribute name in %q", ErrSyntax, s.input)
		return false
	}

	s.pair = Pair{Name: name, Value: strings.TrimSpace(value)}
	s.count++
	return true
}

// Pair returns the most recent pair produced by Scan.
func (s *Scanner) Pair() Pair {
	return s.pair
}

// Err returns the first error encountered by Scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// nextComma returns the index of the first comma outside quotes, or len(s).
func nextComma(s string) (int, error) {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return i, nil
			}
		}
	}
	if inQuotes {
		return 0, fmt.Errorf("%w: unbalanced quotes in %q", ErrSyntax, s)
	}
	return len(s), nil
}

// Parse decodes the whole attribute list. At least one pair is required.
func Parse(input string) ([]Pair, error) {
	var pairs []Pair
	s := NewScanner(input)
	for s.Scan() {
		pairs = append(pairs, s.Pair())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Unquote strips the surrounding double quotes of a quoted-string value.
func Unquote(value string) (string, error) {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return "", fmt.Errorf("%w: %q is not a quoted-string", ErrSyntax, value)
	}
	inner := value[1 : len(value)-1]
	if strings.ContainsAny(inner, "\"\r\n") {
		return "", fmt.Errorf("%w: illegal character in quoted-string %q", ErrSyntax, value)
	}
	return inner, nil
}

// Quote wraps s in double quotes.
func Quote(s string) string {
	return `"` + s + `"`
}
