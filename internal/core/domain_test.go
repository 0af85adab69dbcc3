package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-03-09" || d.MonthKey() != "2025-03" {
		t.Fatalf("unexpected date %s / %s", d, d.MonthKey())
	}
	if _, err := ParseDate("09/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2025, 7, 4, 23, 59, 0, 0, time.UTC)
	if got := Today(now).String(); got != "2025-07-04" {
		t.Fatalf("Today = %s", got)
	}
	if (Date{}).String() != "" {
		t.Fatalf("zero date should render empty")
	}
}

func TestLedgerValidate(t *testing.T) {
	day := NewDate(2025, 1, 1)
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"feed ok", FeedItem{Name: "Pakan", UnitPrice: 100}.Validate(), nil},
		{"feed empty name", FeedItem{Name: " "}.Validate(), ErrEmptyName},
		{"feed negative price", FeedItem{Name: "x", UnitPrice: -1}.Validate(), ErrInvalidAmount},
		{"expense ok", Expense{Name: "Pakan", Quantity: 2, Amount: 10, Date: day}.Validate(), nil},
		{"expense no date", Expense{Name: "Pakan", Quantity: 2, Amount: 10}.Validate(), ErrInvalidDate},
		{"stock zero", StockEvent{Quantity: 0, Date: day}.Validate(), ErrInvalidQuantity},
		{"stock negative ok", StockEvent{Quantity: -3, Amount: 10, Date: day}.Validate(), nil},
		{"income zero qty", Income{Quantity: 0, Date: day}.Validate(), ErrInvalidQuantity},
		{"income ok", Income{Quantity: 1, UnitPrice: 5, Total: 5, Date: day}.Validate(), nil},
		{"asset empty", Asset{}.Validate(), ErrEmptyName},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.want) || (tc.want == nil && tc.err != nil) {
			t.Fatalf("%s: got %v, want %v", tc.name, tc.err, tc.want)
		}
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ErrInvalidAmount) || IsValidation(ErrStorageFailure) {
		t.Fatalf("IsValidation misclassified errors")
	}
}
