package core

import (
	"context"

	"pkt.systems/capturebadge/schema"
)

// Store is the ephemeral keyed store holding per-tab records.
// Implementations must be safe for concurrent use by different tabs.
type Store interface {
	Load(ctx context.Context, tabID schema.TabID) (schema.TabData, bool, error)
	Save(ctx context.Context, tabID schema.TabID, data schema.TabData) error
	Delete(ctx context.Context, tabID schema.TabID) error
	Tabs(ctx context.Context) ([]schema.TabID, error)
}
