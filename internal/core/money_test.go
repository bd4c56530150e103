package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"300", 30000, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"١٢", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseNonNegativeCentsAllowsZero(t *testing.T) {
	got, err := ParseNonNegativeCents("0")
	if err != nil || got != 0 {
		t.Fatalf("expected 0, got %d (err=%v)", got, err)
	}
	if _, err := ParseNonNegativeCents("-3"); err == nil {
		t.Fatalf("expected error for negative vat")
	}
}

func TestMoneyFormatting(t *testing.T) {
	cases := []struct {
		cents   int64
		str     string
		decimal string
	}{
		{30000, "300,00 €", "300.00"},
		{123450, "1 234,50 €", "1234.50"},
		{5, "0,05 €", "0.05"},
		{-250, "-2,50 €", "-2.50"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		if got := m.String(); got != tc.str {
			t.Errorf("String(%d) = %q, want %q", tc.cents, got, tc.str)
		}
		if got := m.Decimal(); got != tc.decimal {
			t.Errorf("Decimal(%d) = %q, want %q", tc.cents, got, tc.decimal)
		}
	}
}
