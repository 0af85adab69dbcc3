package core

import (
	"math"
	"testing"
)

func TestParseRupiah(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"12500", 12500, true},
		{"12.500", 12500, true},
		{"Rp 1.250.000", 1250000, true},
		{"rp12.500", 12500, true},
		{"7.500,50", 7501, true}, // half-up rounding
		{"7500,49", 7500, true},
		{"2.5", 3, true},
		{" 0 ", 0, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"Rp", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseRupiah(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	if q, err := ParseQuantity(" 12 "); err != nil || q != 12 {
		t.Fatalf("expected 12, got %d (err=%v)", q, err)
	}
	for _, in := range []string{"0", "-3", "1.5", ""} {
		if _, err := ParseQuantity(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
	if q, err := ParseSignedQuantity("-4"); err != nil || q != -4 {
		t.Fatalf("expected -4, got %d (err=%v)", q, err)
	}
	if _, err := ParseSignedQuantity("0"); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestMulAmount(t *testing.T) {
	got, err := MulAmount(4, 12500)
	if err != nil || got != 50000 {
		t.Fatalf("expected 50000, got %d (err=%v)", got, err)
	}
	if _, err := MulAmount(math.MaxInt64, 2); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:        "Rp 0",
		500:      "Rp 500",
		12500:    "Rp 12.500",
		1250000:  "Rp 1.250.000",
		-45000:   "-Rp 45.000",
		100000:   "Rp 100.000",
		12345678: "Rp 12.345.678",
	}
	for in, want := range cases {
		if got := FormatRupiah(in); got != want {
			t.Fatalf("FormatRupiah(%d) = %q, want %q", in, got, want)
		}
	}
}
