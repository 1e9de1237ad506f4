package normalize

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseIntNonNegative(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr error
	}{
		{"1,234", 1234, nil},
		{"+7", 7, nil},
		{" 38 ", 38, nil},
		{"0", 0, nil},
		{"1,000,000", 1000000, nil},
		{"-3", 0, ErrNegative},
		{"", 0, ErrEmpty},
		{"abc", 0, ErrNotNumber},
		{"2.5", 0, ErrNotNumber},
		{"1,2,3", 0, ErrNotNumber},
		{"12,34", 0, ErrNotNumber},
		{"1234,567", 0, ErrNotNumber},
		{",123", 0, ErrNotNumber},
	}
	for _, tt := range tests {
		got, err := ParseIntNonNegative(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseIntNonNegative(%q): want error %v, got %v", tt.in, tt.wantErr, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseIntNonNegative(%q)\nwant: %d\ngot:  %d (err %v)", tt.in, tt.want, got, err)
		}
	}
}

func TestParseIntSigned(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"+40", 40},
		{"-12", -12},
		{"0", 0},
		{"1,204", 1204},
	}
	for _, tt := range tests {
		got, err := ParseIntSigned(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseIntSigned(%q)\nwant: %d\ngot:  %d (err %v)", tt.in, tt.want, got, err)
		}
	}
}

func TestParseFloatSigned(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2.32", 2.32},
		{"+41.9", 41.9},
		{"-0.45", -0.45},
		{"1,204.5", 1204.5},
	}
	for _, tt := range tests {
		got, err := ParseFloatSigned(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseFloatSigned(%q)\nwant: %v\ngot:  %v (err %v)", tt.in, tt.want, got, err)
		}
	}
	for _, in := range []string{"n/a", "12,34.5", "1,2.5"} {
		if _, err := ParseFloatSigned(in); !errors.Is(err, ErrNotNumber) {
			t.Fatalf("ParseFloatSigned(%q): expected ErrNotNumber, got %v", in, err)
		}
	}
}

func TestParseLast5(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
		ok   bool
	}{
		{"spaced", "W W L D W", []string{"W", "W", "L", "D", "W"}, true},
		{"compact", "WWLDW", []string{"W", "W", "L", "D", "W"}, true},
		{"extra whitespace", "  L  D D W W ", []string{"L", "D", "D", "W", "W"}, true},
		{"four tokens", "W W L D", nil, false},
		{"six tokens", "W W L D W W", nil, false},
		{"bad token", "W W L D X", nil, false},
		{"lower case", "w w l d w", nil, false},
		{"empty", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLast5(tt.in)
			if !tt.ok {
				if !errors.Is(err, ErrBadForm) {
					t.Fatalf("expected ErrBadForm, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected tokens\nwant: %#v\ngot:  %#v", tt.want, got)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"12", 12},
		{"1,234", 1234},
		{"-1,234", -1234},
		{"1,2,3", "1,2,3"},
		{"12,34", "12,34"},
		{"+3", 3},
		{"-0.5", -0.5},
		{"71.4", 71.4},
		{"FW,MF", "FW,MF"},
		{"25-184", "25-184"},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"ENG", "ENG"},
	}
	for _, tt := range tests {
		got := Coerce(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Coerce(%q)\nwant: %#v\ngot:  %#v", tt.in, tt.want, got)
		}
	}
}
