package store

import (
	"context"
)

// WatermarkStore reads and writes the per-(tenant, batch_kind) watermark
// that drives incremental syncs.
type WatermarkStore interface {
	Get(ctx context.Context, tenantID string, kind BatchKind) (*Watermark, error)
	// Save upserts w keyed by (tenant_id, batch_kind). A successful or a
	// failed write both advance LastRun; only the caller decides which
	// outcome to record.
	Save(ctx context.Context, w Watermark) error
}
