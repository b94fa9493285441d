package core

import "testing"

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1050, 1050},
		{12.345, 12.35},
		{12.344, 12.34},
		{0.005, 0.01},
		{-1.005, -1.01},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestFloorCents(t *testing.T) {
	if got := FloorCents(3333.3399); got != 3333.33 {
		t.Fatalf("got %v", got)
	}
	if got := FloorCents(10); got != 10 {
		t.Fatalf("got %v", got)
	}
}

func TestNonNegative(t *testing.T) {
	if got := NonNegative(-12.5); got != 0 {
		t.Fatalf("got %v", got)
	}
	if got := NonNegative(7.006); got != 7.01 {
		t.Fatalf("got %v", got)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.34", 12.34, true},
		{"12,34", 12.34, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"€ 7", 7, true},
		{"0", 0, true},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseAmount(%q) unexpected error %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error", tc.in)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestSum(t *testing.T) {
	if got := Sum(0.1, 0.2); got != 0.3 {
		t.Fatalf("got %v", got)
	}
	if got := Sum(); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestCents(t *testing.T) {
	tests := []struct {
		in    float64
		cents int64
	}{
		{0, 0},
		{1050, 105000},
		{12.345, 1235},
		{0.1 + 0.2, 30},
		{-4.5, -450},
	}
	for _, tt := range tests {
		if got := ToCents(tt.in); got != tt.cents {
			t.Errorf("ToCents(%v) = %d, want %d", tt.in, got, tt.cents)
		}
		if got := FromCents(tt.cents); got != Round2(tt.in) {
			t.Errorf("FromCents(%d) = %v, want %v", tt.cents, got, Round2(tt.in))
		}
	}
}
