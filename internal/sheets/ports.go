package sheets

import (
	"context"
	"fmt"

	"ternak/internal/core"
)

// Ports for outbound adapters.
type (
	// AssetMirror keeps one tab per asset in step with the store.
	AssetMirror interface {
		// ReplaceAsset overwrites the asset's tab with the given ledgers,
		// creating the tab when it does not exist yet.
		ReplaceAsset(ctx context.Context, sheet core.AssetSheet) error
	}
)

// TabTitle names the tab an asset is mirrored to.
func TabTitle(assetID int64) string {
	return fmt.Sprintf("Asset %d", assetID)
}
