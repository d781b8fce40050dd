package tenant

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// credentialRow mirrors the externally-owned credentials table. The core
// never writes to this table; it is read-only from this module's point of
// view; credentials are owned and written by a separate collaborator.
type credentialRow struct {
	TenantID string `gorm:"column:tenant_id;primaryKey"`
	Endpoint string `gorm:"column:endpoint"`
	Token    string `gorm:"column:token"`
	Projects string `gorm:"column:projects"` // JSON array of strings
	Labels   string `gorm:"column:labels"`   // JSON object of project -> []string
	JQL      string `gorm:"column:jql"`
	TimeoutMs int64  `gorm:"column:timeout_ms"`
}

func (credentialRow) TableName() string { return "tenant_credentials" }

// PostgresResolver resolves TenantConfig by reading the externally-owned
// tenant_credentials table. It performs no decryption: the store is assumed
// to already hand back plaintext tokens, per the external-collaborator
// contract (§6, §9).
type PostgresResolver struct {
	db             *gorm.DB
	defaultTimeout time.Duration
}

// NewPostgresResolver builds a resolver against an already-connected gorm
// handle. defaultTimeout is used when a row has no per-tenant override.
func NewPostgresResolver(db *gorm.DB, defaultTimeout time.Duration) *PostgresResolver {
	return &PostgresResolver{db: db, defaultTimeout: defaultTimeout}
}

func (r *PostgresResolver) Get(ctx context.Context, tenantID string) (Config, error) {
	var row credentialRow
	err := r.db.WithContext(ctx).First(&row, "tenant_id = ?", tenantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// An unknown tenant is modeled the same as "not configured":
			// the coordinator will see empty endpoint/token and fail with
			// MissingCredentials.
			return Config{TenantID: tenantID}, nil
		}
		return Config{}, err
	}
	return rowToConfig(row, r.defaultTimeout), nil
}

func (r *PostgresResolver) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&credentialRow{}).Order("tenant_id").Pluck("tenant_id", &ids).Error
	return ids, err
}

func rowToConfig(row credentialRow, defaultTimeout time.Duration) Config {
	var projects []string
	_ = json.Unmarshal([]byte(row.Projects), &projects)

	labels := map[string][]string{}
	_ = json.Unmarshal([]byte(row.Labels), &labels)

	timeout := defaultTimeout
	if row.TimeoutMs > 0 {
		timeout = time.Duration(row.TimeoutMs) * time.Millisecond
	}

	return Config{
		TenantID: row.TenantID,
		Endpoint: row.Endpoint,
		Token:    row.Token,
		Projects: projects,
		Labels:   labels,
		JQL:      row.JQL,
		Timeout:  timeout,
	}
}
