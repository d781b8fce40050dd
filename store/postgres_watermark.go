package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// watermarkRow is the gorm-mapped row for the watermark table this module
// owns outright (unlike tenant_credentials, which is externally owned).
type watermarkRow struct {
	TenantID       string    `gorm:"column:tenant_id;primaryKey"`
	BatchKind      string    `gorm:"column:batch_kind;primaryKey"`
	LastRun        time.Time `gorm:"column:last_run"`
	Status         string    `gorm:"column:status"`
	ProcessedCount int       `gorm:"column:processed_count"`
	Error          string    `gorm:"column:error"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (watermarkRow) TableName() string { return "sync_watermarks" }

// PostgresWatermarkStore persists Watermark rows through gorm, upserting
// by (tenant_id, batch_kind) on every Save.
type PostgresWatermarkStore struct {
	db *gorm.DB
}

func NewPostgresWatermarkStore(db *gorm.DB) *PostgresWatermarkStore {
	return &PostgresWatermarkStore{db: db}
}

// MigrateWatermarkTable creates or updates the sync_watermarks table.
func MigrateWatermarkTable(db *gorm.DB) error {
	return db.AutoMigrate(&watermarkRow{})
}

func (s *PostgresWatermarkStore) Get(ctx context.Context, tenantID string, kind BatchKind) (*Watermark, error) {
	var row watermarkRow
	err := s.db.WithContext(ctx).
		First(&row, "tenant_id = ? AND batch_kind = ?", tenantID, string(kind)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	w := Watermark{
		TenantID:       row.TenantID,
		BatchKind:      BatchKind(row.BatchKind),
		LastRun:        row.LastRun,
		Status:         Status(row.Status),
		ProcessedCount: row.ProcessedCount,
		Error:          row.Error,
		CreatedAt:      row.CreatedAt,
	}
	return &w, nil
}

// Save upserts w on (tenant_id, batch_kind). On conflict it overwrites
// last_run, status, processed_count and error; created_at keeps the value
// from the first insert. The upsert is an "INSERT ... ON CONFLICT DO
// UPDATE" expressed through gorm's conflict clause.
func (s *PostgresWatermarkStore) Save(ctx context.Context, w Watermark) error {
	row := watermarkRow{
		TenantID:       w.TenantID,
		BatchKind:      string(w.BatchKind),
		LastRun:        w.LastRun,
		Status:         string(w.Status),
		ProcessedCount: w.ProcessedCount,
		Error:          w.Error,
		CreatedAt:      w.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = w.LastRun
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "batch_kind"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_run", "status", "processed_count", "error",
		}),
	}).Create(&row).Error
}
