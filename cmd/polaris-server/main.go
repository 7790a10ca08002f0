package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	polaris "github.com/MrWiki15/server-party-polaris"
	gojob "github.com/MrWiki15/server-party-polaris/adapters/gojob"
	"github.com/MrWiki15/server-party-polaris/core"
	memoryledger "github.com/MrWiki15/server-party-polaris/ledger/memory"
	"github.com/MrWiki15/server-party-polaris/migrations"
	"github.com/MrWiki15/server-party-polaris/security"
	"github.com/MrWiki15/server-party-polaris/server"
	sqlstore "github.com/MrWiki15/server-party-polaris/store/sql"
)

const defaultPort = "3000"

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool                { return false }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "server-party-polaris" }

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("File .env not found!")
	}

	cfg := runtimeConfigFromEnv()

	client, dialect, err := openPersistence()
	if err != nil {
		log.Fatalf("persistence: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if _, err := migrations.Register(ctx, func(_ context.Context, migrationDialect string, _ string, fsys fs.FS) error {
		if migrationDialect != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(dialect)); err != nil {
		log.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		log.Fatalf("store factory: %v", err)
	}

	vault, err := security.NewKeyVault(cfg.EncryptionKey)
	if err != nil {
		// A misconfigured encryption secret is fatal: refusing to serve is
		// safer than provisioning wallets whose keys cannot be recovered.
		log.Fatalf("key vault: %v", err)
	}

	gateway, err := buildGateway(cfg.Ledger)
	if err != nil {
		log.Fatalf("ledger gateway: %v", err)
	}

	svc, err := polaris.NewService(cfg,
		polaris.WithSecretVault(vault),
		polaris.WithLedgerGateway(gateway),
		polaris.WithRepositoryFactory(factory),
	)
	if err != nil {
		log.Fatalf("settlement service: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	httpServer, err := server.New(server.Config{
		Addr:           ":" + port,
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		Production:     svc.Config().Production(),
	}, svc, server.WithLogger(svc.Dependencies().Logger))
	if err != nil {
		log.Fatalf("http server: %v", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweepJobs(runCtx, svc)

	if err := httpServer.Run(runCtx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// runSweepJobs schedules the settlement-journal sweep as a queued job and
// drains the queue in-process. The interval is coarse on purpose: the sweep
// is a safety net, not a hot path.
func runSweepJobs(ctx context.Context, svc *polaris.Service) {
	interval := 5 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL_MINUTES")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("SWEEP_INTERVAL_MINUTES %q is not a whole number", raw)
		}
		if minutes <= 0 {
			return
		}
		interval = time.Duration(minutes) * time.Minute
	}

	logger := svc.Dependencies().Logger
	jobQueue := gojob.NewMemoryQueue(16)
	enqueuer := gojob.NewEnqueuerAdapter(jobQueue)
	dequeuer := gojob.NewDequeuerAdapter(jobQueue, gojob.RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	})

	scheduler := gojob.NewSweepScheduler(enqueuer, interval, core.SweepJournalRequest{}, logger)
	go scheduler.Run(ctx)

	gojob.NewWorker(dequeuer, enqueuer, svc, logger).Run(ctx)
}

func runtimeConfigFromEnv() core.Config {
	cfg := core.Config{
		Environment:   os.Getenv("ENVIRONMENT"),
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		Ledger: core.LedgerConfig{
			Network:            os.Getenv("LEDGER_NETWORK"),
			OperatorAccountID:  os.Getenv("LEDGER_OPERATOR_ID"),
			OperatorPrivateKey: os.Getenv("LEDGER_OPERATOR_KEY"),
		},
	}
	if raw := os.Getenv("FUNDING_THRESHOLD_HBAR"); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("FUNDING_THRESHOLD_HBAR %q is not a whole number", raw)
		}
		cfg.FundingThresholdHbar = threshold
	}
	return cfg
}

func openPersistence() (*persistence.Client, string, error) {
	driver := strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))

	var (
		dialect          schema.Dialect
		migrationDialect string
	)
	switch driver {
	case "postgres":
		if dsn == "" {
			return nil, "", fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		dialect = pgdialect.New()
		migrationDialect = migrations.DialectPostgres
	case "sqlite3":
		if dsn == "" {
			dsn = "file:polaris.db?cache=shared&_foreign_keys=on"
		}
		dialect = sqlitedialect.New()
		migrationDialect = migrations.DialectSQLite
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("persistence client: %w", err)
	}
	return client, migrationDialect, nil
}

func buildGateway(cfg core.LedgerConfig) (core.LedgerGateway, error) {
	network := strings.TrimSpace(strings.ToLower(cfg.Network))
	switch network {
	case "", "local":
		return memoryledger.NewGateway(), nil
	default:
		// Real consensus networks need the operator SDK wired in; this build
		// only ships the in-process simulation.
		return nil, fmt.Errorf("ledger network %q is not supported by this build", cfg.Network)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
