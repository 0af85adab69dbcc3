package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds name the ledger a row belongs to. KindAsset covers tenant-wide
// changes (asset created, cleared, deleted, imported).
const (
	KindFeedItem   = "kebutuhan"
	KindExpense    = "pengeluaran"
	KindStockEvent = "ayam"
	KindIncome     = "pemasukan"
	KindAsset      = "asset"
)

// Actions describe what happened to the row.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionCleared  = "cleared"
	ActionImported = "imported"
	ActionRestored = "restored"
)

// LedgerEvent is a lightweight change notification. Consumers re-read the
// asset from the database instead of trusting a payload.
type LedgerEvent struct {
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	AssetID   int64     `json:"asset_id"`
	ID        int64     `json:"id,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(kind, action string, assetID, id int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		Action:    action,
		AssetID:   assetID,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event. Events without a kind or asset are rejected.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Kind == "" || e.AssetID <= 0 {
		return nil, fmt.Errorf("incomplete ledger event: kind=%q asset_id=%d", e.Kind, e.AssetID)
	}
	return &e, nil
}
