package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  string
		err   error
	}{
		{input: "100", want: "100.00"},
		{input: "100.5", want: "100.50"},
		{input: "0.01", want: "0.01"},
		{input: " 12.34 ", want: "12.34"},
		{input: "-3.50", want: "-3.50"},
		{input: "0", want: "0.00"},
		{input: "", err: ErrInvalidAmount},
		{input: "abc", err: ErrInvalidAmount},
		{input: "10.001", err: ErrTooManyDecimals},
		{input: "0.999", err: ErrTooManyDecimals},
	}
	for _, tc := range cases {
		value, err := Parse(tc.input)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("Parse(%q): expected %v, got %v", tc.input, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error %v", tc.input, err)
		}
		if Format(value) != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.input, Format(value), tc.want)
		}
	}
}

func TestFormatAlwaysTwoDigits(t *testing.T) {
	if got := Format(decimal.NewFromInt(7)); got != "7.00" {
		t.Fatalf("expected 7.00, got %s", got)
	}
	if got := Format(decimal.RequireFromString("7.1")); got != "7.10" {
		t.Fatalf("expected 7.10, got %s", got)
	}
}
