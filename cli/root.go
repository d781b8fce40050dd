// Package cli is the command-line entrypoint for the jirasync batch
// runner. It wires configuration (flags, environment, optional config
// file) into a BatchOrchestrator run and maps the result onto a process
// exit code.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/evalgo/jirasync/batch"
	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/config"
	"github.com/evalgo/jirasync/jira"
	"github.com/evalgo/jirasync/metrics"
	"github.com/evalgo/jirasync/planner"
	"github.com/evalgo/jirasync/store"
	"github.com/evalgo/jirasync/sync"
	"github.com/evalgo/jirasync/tenant"
)

var cfgFile string

// RootCmd is the jirasync batch-runner command.
//
// Flag to Viper mapping:
//
//	--user-id       → viper: "user_id"
//	--user-ids      → viper: "user_ids"
//	--all-users     → viper: "all_users"
//	--parallel      → viper: "parallel"
//	--max-workers   → viper: "max_workers"
//	--full-sync     → viper: "full_sync"
//	--init-db       → viper: "init_db"
//	--postgres-dsn  → viper: "postgres_dsn"
var RootCmd = &cobra.Command{
	Use:   "jirasync",
	Short: "sync Jira issues into the vector store for one, several, or all tenants",
	Long: `jirasync

Resolves tenant credentials, plans an incremental JQL query against each
tenant's watermark, fetches and chunks matching issues, and upserts the
chunks into the vector store. Exit code is 0 when every valid tenant
succeeded (tenants skipped for missing credentials do not count), 1 when
none did or no tenant was valid (or the flags were misused), and 2 on
partial success.`,
	RunE: runBatch,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.jirasync.yaml)")

	RootCmd.Flags().String("user-id", "", "sync a single tenant by id")
	RootCmd.Flags().String("user-ids", "", "sync a comma-separated list of tenant ids")
	RootCmd.Flags().Bool("all-users", false, "sync every tenant known to the credentials store")
	RootCmd.Flags().Bool("parallel", false, "run tenants concurrently instead of sequentially")
	RootCmd.Flags().Int("max-workers", 5, "bounded worker count when --parallel is set")
	RootCmd.Flags().Bool("full-sync", false, "ignore the watermark and resync the force-full-sync lookback window")
	RootCmd.Flags().Bool("init-db", false, "create the sync_watermarks and jira_chunks tables, then exit")
	RootCmd.Flags().String("postgres-dsn", "", "Postgres DSN for the watermark table, vector store, and tenant credentials")
	RootCmd.Flags().String("redis-url", "", "Redis URL for the cross-process tenant lock and cache-stats mirror (optional)")

	viper.BindPFlag("user_id", RootCmd.Flags().Lookup("user-id"))
	viper.BindPFlag("user_ids", RootCmd.Flags().Lookup("user-ids"))
	viper.BindPFlag("all_users", RootCmd.Flags().Lookup("all-users"))
	viper.BindPFlag("parallel", RootCmd.Flags().Lookup("parallel"))
	viper.BindPFlag("max_workers", RootCmd.Flags().Lookup("max-workers"))
	viper.BindPFlag("full_sync", RootCmd.Flags().Lookup("full-sync"))
	viper.BindPFlag("init_db", RootCmd.Flags().Lookup("init-db"))
	viper.BindPFlag("postgres_dsn", RootCmd.Flags().Lookup("postgres-dsn"))
	viper.BindPFlag("redis_url", RootCmd.Flags().Lookup("redis-url"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jirasync")
	}

	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// runBatch loads configuration, resolves the tenant set, runs the
// orchestrator, prints a per-tenant report line, and returns an error
// only on flag misuse — terminal sync outcomes are mapped to an exit
// code in Execute, never via a returned error.
func runBatch(cmd *cobra.Command, args []string) error {
	logger := common.ServiceLogger("jirasync", "cli")

	dsn := viper.GetString("postgres_dsn")
	if dsn == "" {
		return fmt.Errorf("misuse: --postgres-dsn (or POSTGRES_DSN) is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}

	if viper.GetBool("init_db") {
		if err := store.MigrateWatermarkTable(db); err != nil {
			return fmt.Errorf("migrating watermark table: %w", err)
		}
		if err := store.MigrateChunkTable(db); err != nil {
			return fmt.Errorf("migrating chunk table: %w", err)
		}
		fmt.Println("database initialized")
		lastExitCode = 0
		return nil
	}

	jiraCfg := config.LoadJiraConfig("JIRASYNC_JIRA")
	resolver := tenant.NewPostgresResolver(db, jiraCfg.DefaultTimeout)
	watermarks := store.NewPostgresWatermarkStore(db)
	vectorStore := store.NewVectorStorePostgres(db, store.NewHashEmbedder(32))
	cacheRegistry := cache.NewRegistry()
	p := planner.New(jiraCfg.DeepHistoryWindow, jiraCfg.ForceFullSyncWindow)
	m := metrics.New("jirasync")

	newGateway := func(cfg tenant.Config) sync.GatewayClient {
		return jira.NewGateway(cfg.Endpoint, cfg.Token, cfg.Timeout, jiraCfg.PageDelay, nil)
	}
	coordinator := sync.New(resolver, watermarks, vectorStore, p, cacheRegistry, newGateway, jiraCfg.PageSize, logger)

	redisCfg := config.LoadRedisConfig("JIRASYNC_REDIS")
	if url := viper.GetString("redis_url"); url != "" {
		redisCfg.URL = url
	}
	var lock *store.RedisLock
	var statsPublisher *store.CacheStatsPublisher
	if redisCfg.URL != "" {
		lock, err = store.NewRedisLock(redisCfg.URL)
		if err != nil {
			logger.WithError(err).Warn("redis lock unavailable, continuing without cross-process locking")
		} else {
			defer lock.Close()
			statsPublisher = store.NewCacheStatsPublisher(lock.Client(), redisCfg.StatsTopic)
		}
	}

	runOne := coordinator.Run
	if lock != nil {
		runOne = lockedRun(lock, redisCfg.LockTTL, coordinator.Run)
	}
	orchestrator := batch.New(resolver, runOne, logger)

	ctx := context.Background()
	tenantIDs, err := selectTenantIDs(ctx, resolver)
	if err != nil {
		return err
	}
	if len(tenantIDs) == 0 {
		return fmt.Errorf("misuse: one of --user-id, --user-ids, or --all-users is required")
	}

	opts := batch.Options{
		Parallel:      viper.GetBool("parallel"),
		MaxWorkers:    viper.GetInt("max_workers"),
		ForceFullSync: viper.GetBool("full_sync"),
	}
	m.BatchWorkersInFlight.Set(float64(opts.MaxWorkers))
	report := orchestrator.Run(ctx, tenantIDs, opts)
	m.BatchWorkersInFlight.Set(0)
	recordReportMetrics(m, report)
	if statsPublisher != nil {
		publishCacheStats(ctx, statsPublisher, cacheRegistry)
	}
	printReport(report)

	lastExitCode = exitCodeFor(report)
	return nil
}

// lockedRun wraps runOne so two orchestrator processes never drive the
// same tenant's Coordinator concurrently. A tenant that fails to acquire
// the lock is reported as a failed run rather than silently skipped, so
// BatchOrchestrator's successful+failed+skipped==total invariant holds.
func lockedRun(lock *store.RedisLock, ttl time.Duration, runOne func(ctx context.Context, tenantID string, forceFullSync bool) sync.Result) func(context.Context, string, bool) sync.Result {
	return func(ctx context.Context, tenantID string, forceFullSync bool) sync.Result {
		acquired, err := lock.Acquire(ctx, tenantID, ttl)
		if err != nil {
			return sync.Result{TenantID: tenantID, Phase: sync.PhaseFailed, Error: fmt.Errorf("acquiring tenant lock: %w", err)}
		}
		if !acquired {
			return sync.Result{TenantID: tenantID, Phase: sync.PhaseFailed, Error: fmt.Errorf("tenant %s is locked by another sync process", tenantID)}
		}
		defer func() { _ = lock.Release(ctx, tenantID) }()
		return runOne(ctx, tenantID, forceFullSync)
	}
}

func recordReportMetrics(m *metrics.Metrics, r batch.Report) {
	for _, tr := range r.Results {
		outcome := "failure"
		if tr.Outcome == batch.OutcomeSuccessful {
			outcome = "success"
		}
		m.SyncDuration.WithLabelValues(tr.TenantID, outcome).Observe(tr.Duration.Seconds())
		m.SyncIssuesTotal.WithLabelValues(tr.TenantID).Add(float64(tr.Issues))
		m.SyncChunksTotal.WithLabelValues(tr.TenantID).Add(float64(tr.Chunks))
	}
}

func publishCacheStats(ctx context.Context, publisher *store.CacheStatsPublisher, registry *cache.Registry) {
	for _, tenantID := range registry.TenantIDs() {
		stats := registry.GetOrCreate(tenantID, nil).Stats()
		_ = publisher.Publish(ctx, store.CacheStatsMessage{
			TenantID:   tenantID,
			Hits:       stats.Hits,
			Misses:     stats.Misses,
			CachedKeys: stats.CachedKeys,
		})
	}
}

func selectTenantIDs(ctx context.Context, resolver tenant.Resolver) ([]string, error) {
	switch {
	case viper.GetBool("all_users"):
		return resolver.ListTenantIDs(ctx)
	case viper.GetString("user_ids") != "":
		var ids []string
		for _, id := range strings.Split(viper.GetString("user_ids"), ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
		return ids, nil
	case viper.GetString("user_id") != "":
		return []string{viper.GetString("user_id")}, nil
	default:
		return nil, nil
	}
}

func printReport(r batch.Report) {
	for _, tr := range r.Results {
		fmt.Printf("%-20s %-10s issues=%-5s chunks=%-5s %s\n", tr.TenantID, tr.Outcome, humanize.Comma(int64(tr.Issues)), humanize.Comma(int64(tr.Chunks)), tr.Error)
	}
	fmt.Printf("run=%s total=%d successful=%d failed=%d skipped=%d issues=%s chunks=%s duration=%s\n",
		r.RunID, r.Total, r.Successful, r.Failed, r.Skipped, humanize.Comma(int64(r.Issues)), humanize.Comma(int64(r.Chunks)), r.Duration.Round(time.Millisecond))
}

// exitCodeFor maps a batch.Report to the process exit code: 0 when
// every valid tenant succeeded, 1 when none did (including no valid
// tenants at all), 2 on a mix of successes and failures.
func exitCodeFor(r batch.Report) int {
	switch {
	case r.Valid == 0:
		return 1
	case r.Failed == 0:
		return 0
	case r.Successful == 0:
		return 1
	default:
		return 2
	}
}

// lastExitCode is set by runBatch/init-db and read by Execute, since
// cobra's RunE contract has no channel for a non-error exit status.
var lastExitCode int

// Execute runs RootCmd and returns the process exit code.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return lastExitCode
}
