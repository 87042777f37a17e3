package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.004", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"12.34":   1234,
		"12.345":  1235,
		"-80.5":   -8050,
		"1000000": 100000000,
	}
	for in, want := range cases {
		d := decimal.RequireFromString(in)
		if got := Cents(d); got != want {
			t.Fatalf("Cents(%s) = %d, want %d", in, got, want)
		}
		if back := FromCents(want); !back.Equal(Round2(d)) {
			t.Fatalf("FromCents(%d) = %s, want %s", want, back, Round2(d))
		}
	}
}

func TestRequirePositive(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"0.01", nil},
		{"10.500", nil},
		{"0", ErrInvalidAmount},
		{"-3", ErrInvalidAmount},
		{"0.004", ErrSubCentAmount},
		{"12.345", ErrSubCentAmount},
	}
	for _, tc := range cases {
		err := RequirePositive(decimal.RequireFromString(tc.in))
		if !errors.Is(err, tc.want) {
			t.Fatalf("RequirePositive(%s) = %v, want %v", tc.in, err, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(decimal.NewFromInt(1), decimal.NewFromInt(3)); got.String() != "33.33" {
		t.Fatalf("Percent(1,3) = %s, want 33.33", got)
	}
	if got := Percent(decimal.NewFromInt(5), decimal.Zero); !got.IsZero() {
		t.Fatalf("Percent(5,0) = %s, want 0", got)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got, err := NormalizeCurrency(" eur "); err != nil || got != "EUR" {
		t.Fatalf("NormalizeCurrency(eur) = %q, %v", got, err)
	}
	for _, bad := range []string{"", "EU", "EURO", "ZZZ"} {
		if _, err := NormalizeCurrency(bad); err == nil {
			t.Fatalf("NormalizeCurrency(%q) expected error", bad)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("1234.5"), "USD"); got != "$1,234.50" {
		t.Fatalf("FormatAmount = %q, want $1,234.50", got)
	}
}
