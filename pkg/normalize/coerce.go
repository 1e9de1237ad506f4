package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	numericRe   = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)
	thousandsRe = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)
)

// cleanNumber drops a leading plus sign and the thousands separators of a
// well formed grouping. Other commas are kept so the value fails to parse.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if thousandsRe.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	return strings.TrimPrefix(s, "+")
}

// ParseIntSigned parses integers such as "1,234", "+7" or "-3".
func ParseIntSigned(s string) (int, error) {
	c := cleanNumber(s)
	if c == "" {
		return 0, ErrEmpty
	}
	n, err := strconv.Atoi(c)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumber, s)
	}
	return n, nil
}

// ParseIntNonNegative is ParseIntSigned that rejects values below zero.
func ParseIntNonNegative(s string) (int, error) {
	n, err := ParseIntSigned(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNegative
	}
	return n, nil
}

// ParseFloatSigned parses decimals such as "2.05", "+12.3" or "1,204.5".
func ParseFloatSigned(s string) (float64, error) {
	c := cleanNumber(s)
	if c == "" {
		return 0, ErrEmpty
	}
	f, err := strconv.ParseFloat(c, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumber, s)
	}
	return f, nil
}

// ParseLast5 splits a last-5-results field into its tokens. It accepts the
// space separated form "W W L D W" and the compact form "WWLDW" that the
// site renders when the result badges sit next to each other.
func ParseLast5(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	var tokens []string
	if strings.ContainsAny(s, " \t\n") {
		tokens = strings.Fields(s)
	} else {
		for _, r := range s {
			tokens = append(tokens, string(r))
		}
	}
	if len(tokens) != 5 {
		return nil, fmt.Errorf("%w: got %d tokens", ErrBadForm, len(tokens))
	}
	for _, t := range tokens {
		switch t {
		case "W", "D", "L":
		default:
			return nil, fmt.Errorf("%w: bad token %q", ErrBadForm, t)
		}
	}
	return tokens, nil
}

// Coerce turns a raw cell into an int, a float64, nil for empty cells, or
// the trimmed string when it is not numeric.
func Coerce(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	c := cleanNumber(s)
	if !numericRe.MatchString(c) {
		return s
	}
	if n, err := strconv.Atoi(c); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(c, 64); err == nil {
		return f
	}
	return s
}
