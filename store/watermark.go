// Package store holds the persistence adapters owned by this module: the
// Watermark table (gorm/Postgres), a reference vector-store adapter, and a
// Redis-backed distributed lock and cache-stats mirror.
package store

import "time"

// BatchKind distinguishes the different sync jobs that share the
// watermark table, keyed together with TenantID.
type BatchKind string

const (
	BatchKindJiraSync BatchKind = "jira_sync"
)

// Status is the terminal outcome recorded for a sync attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Watermark is the persisted record of a tenant's last sync attempt. Last
// run is monotonic per successful write, and failed writes also advance
// it: a watermark never regresses, whatever the outcome.
type Watermark struct {
	TenantID       string
	BatchKind      BatchKind
	LastRun        time.Time
	Status         Status
	ProcessedCount int
	Error          string
	CreatedAt      time.Time
}
