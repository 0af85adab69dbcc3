package memory

import (
	"context"
	"sync"

	"ternak/internal/core"
	ports "ternak/internal/sheets"
)

// Store is an in-process mirror. It keeps the last sheet written per asset.
type Store struct {
	mu     sync.Mutex
	sheets map[int64]core.AssetSheet
	writes int
}

var _ ports.AssetMirror = (*Store)(nil)

func New() *Store {
	return &Store{sheets: make(map[int64]core.AssetSheet)}
}

func (s *Store) ReplaceAsset(_ context.Context, sheet core.AssetSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet.Asset.ID] = sheet
	s.writes++
	return nil
}

// Sheet returns the last sheet written for assetID.
func (s *Store) Sheet(assetID int64) (core.AssetSheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[assetID]
	return sheet, ok
}

// Rows renders the stored tab the way the spreadsheet would show it.
func (s *Store) Rows(assetID int64) [][]any {
	sheet, ok := s.Sheet(assetID)
	if !ok {
		return nil
	}
	return ports.Layout(sheet)
}

// Writes counts ReplaceAsset calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
