// Package normalize turns raw extracted cells into typed, validated records.
package normalize

import (
	"sort"
	"strings"

	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/google/uuid"
)

// Meta carries the target context a raw row was scraped under.
type Meta struct {
	CompetitionID string
	SeasonID      string
}

// Func normalizes one raw row for a category.
type Func func(category string, raw map[string]string, meta Meta) (dataset.Record, error)

var registry = map[string]Func{
	CategoryResultsOverall: func(_ string, raw map[string]string, meta Meta) (dataset.Record, error) {
		rec, err := ResultsOverall(raw, meta)
		if err != nil {
			return nil, err
		}
		return rec, nil
	},
}

// Register installs fn for a category, replacing any previous one.
func Register(category string, fn Func) {
	registry[category] = fn
}

// Normalize validates raw as a record of the given category. Categories
// without a dedicated schema become StatRecords.
func Normalize(category string, raw map[string]string, meta Meta) (dataset.Record, error) {
	if fn, ok := registry[category]; ok {
		return fn(category, raw, meta)
	}
	rec, err := Stat(category, raw, meta)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Strict reports whether the category has a dedicated schema.
func Strict(category string) bool {
	_, ok := registry[category]
	return ok
}

func newID() string {
	return uuid.NewString()
}

// reader pulls typed fields out of a raw row and remembers the first failure.
type reader struct {
	raw map[string]string
	err *ValidationError
}

func (r *reader) fail(field, value string, err error) {
	if r.err == nil {
		r.err = fieldError(field, value, err)
	}
}

func (r *reader) value(field string) string {
	return strings.TrimSpace(r.raw[field])
}

func (r *reader) str(field string) string {
	v := r.value(field)
	if v == "" {
		r.fail(field, "", ErrEmpty)
	}
	return v
}

func (r *reader) optStr(field string) *string {
	v := r.value(field)
	if v == "" {
		return nil
	}
	return &v
}

func (r *reader) intNonNegative(field string) int {
	v := r.value(field)
	n, err := ParseIntNonNegative(v)
	if err != nil {
		r.fail(field, v, err)
	}
	return n
}

func (r *reader) optIntNonNegative(field string) *int {
	v := r.value(field)
	if v == "" {
		return nil
	}
	n, err := ParseIntNonNegative(v)
	if err != nil {
		r.fail(field, v, err)
		return nil
	}
	return &n
}

func (r *reader) intSigned(field string) int {
	v := r.value(field)
	n, err := ParseIntSigned(v)
	if err != nil {
		r.fail(field, v, err)
	}
	return n
}

func (r *reader) float(field string) float64 {
	v := r.value(field)
	f, err := ParseFloatSigned(v)
	if err != nil {
		r.fail(field, v, err)
	}
	return f
}

// rejectUnknown fails on the first raw key, in sorted order, that is not in
// allowed.
func rejectUnknown(raw map[string]string, allowed map[string]bool) *ValidationError {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !allowed[k] {
			return fieldError(k, raw[k], ErrUnknownField)
		}
	}
	return nil
}

func fieldSet(fields []string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
