package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultAssetID is the tenant every legacy row belongs to.
	DefaultAssetID int64 = 1

	// ChickPurchaseName labels the expense paired with a chick purchase.
	ChickPurchaseName = "Beli Anak Ayam"

	// ClearConfirmation must be typed to wipe a tenant's ledgers.
	ClearConfirmation = "HAPUS"

	DateLayout = "2006-01-02"
)

type (
	Date struct {
		time.Time
	}

	// Asset is a bookkeeping unit (a farm or a coop) that partitions every ledger.
	Asset struct {
		ID   int64
		Name string
	}

	// FeedItem is a purchasable feed type with its current unit price.
	FeedItem struct {
		ID        int64
		Name      string
		UnitPrice int64
		AssetID   int64
	}

	Expense struct {
		ID       int64
		Name     string
		Quantity int64
		Amount   int64
		Date     Date
		AssetID  int64
	}

	// StockEvent records chickens entering (positive) or leaving (negative) the flock.
	StockEvent struct {
		ID       int64
		Quantity int64
		Amount   int64
		Date     Date
		AssetID  int64
	}

	Income struct {
		ID        int64
		Quantity  int64
		UnitPrice int64
		Total     int64
		Date      Date
		AssetID   int64
	}
)

// NewDate builds a calendar date with no time component.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates now to its calendar date in now's location.
func Today(now time.Time) Date {
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM prefix used for monthly totals.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// DefaultAssetName is the name given to assets created without one.
func DefaultAssetName(id int64) string {
	return fmt.Sprintf("Asset %d", id)
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (f FeedItem) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if f.UnitPrice < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if e.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (s StockEvent) Validate() error {
	if s.Quantity == 0 {
		return ErrInvalidQuantity
	}
	if s.Amount < 0 {
		return ErrInvalidAmount
	}
	if s.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (i Income) Validate() error {
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.UnitPrice < 0 || i.Total < 0 {
		return ErrInvalidAmount
	}
	if i.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
