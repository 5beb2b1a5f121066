// Package app assembles the gateway from configuration. Both the HTTP server
// and the ledgerctl CLI build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"llm_billing_gateway/internal/accounts"
	"llm_billing_gateway/internal/auth"
	"llm_billing_gateway/internal/billing"
	"llm_billing_gateway/internal/config"
	"llm_billing_gateway/internal/httpapi"
	"llm_billing_gateway/internal/metrics"
	"llm_billing_gateway/internal/providers"
	"llm_billing_gateway/internal/queue"
	"llm_billing_gateway/internal/ratelimit"
	"llm_billing_gateway/internal/storage"
	"llm_billing_gateway/internal/utils"
)

// App holds every wired component
type App struct {
	Config *config.Config

	DB    *storage.DB
	Redis *redis.Client

	Users        storage.UserStore
	Prices       storage.PriceListStore
	Transactions storage.TransactionStore

	Issuer     *auth.APIKeyIssuer
	Ledger     *billing.Ledger
	Accounts   *accounts.Service
	Pipeline   *billing.Pipeline
	Reconciler *billing.Reconciler
	Metrics    *metrics.Prometheus

	dlq    queue.DeadLetterQueue
	logger *utils.Logger
}

// Build connects to the configured backends and wires the services
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config:  cfg,
		Issuer:  auth.NewAPIKeyIssuer(cfg.APIKeyPepper),
		Metrics: metrics.NewPrometheus(),
		logger:  utils.NewLogger("app"),
	}
	if len(cfg.APIKeyPepper) == 0 {
		a.logger.Warn("API_KEY_PEPPER is empty; API key hashes are unkeyed")
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.UsesRedis() {
		client, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		a.Redis = client
	}

	mode := cfg.Billing.BalanceMode
	a.Ledger = billing.NewLedger(mode, a.Users, a.Transactions, a.Prices)
	a.Accounts = accounts.NewService(a.Users, a.Prices, a.Ledger, a.Issuer, accounts.Config{
		WelcomeBonus: cfg.Billing.WelcomeBonus,
	})

	if cfg.Reconcile.Backend == config.BackendRedis {
		a.dlq = queue.NewRedisDeadLetterQueue(a.Redis, cfg.Reconcile.QueueName)
	} else {
		a.dlq = queue.NewMemoryDeadLetterQueue()
	}
	a.Reconciler = billing.NewReconciler(a.dlq, a.Metrics)

	quotaCfg := ratelimit.Config{Window: cfg.Quota.Window, Limit: cfg.Quota.Limit}
	var quota ratelimit.QuotaTracker
	if cfg.Quota.Backend == config.BackendRedis {
		quota = ratelimit.NewRedisQuotaTracker(a.Redis, quotaCfg)
	} else {
		quota = ratelimit.NewMemoryQuotaTracker(quotaCfg)
	}

	a.Pipeline = billing.NewPipeline(billing.PipelineDeps{
		Users:     a.Users,
		Prices:    a.Prices,
		Quota:     quota,
		Provider:  newProvider(cfg.Provider),
		Issuer:    a.Issuer,
		Ledger:    a.Ledger,
		Reconcile: a.Reconciler,
		Metrics:   a.Metrics,
	}, billing.PipelineConfig{ProviderTimeout: cfg.Provider.RequestTimeout})

	a.logger.Info("Gateway assembled",
		"storage", cfg.Storage.Backend,
		"quota", cfg.Quota.Backend,
		"reconcile", cfg.Reconcile.Backend,
		"balance_mode", mode,
		"provider", cfg.Provider.Type,
	)
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	if cfg.Storage.Backend != config.BackendPostgres {
		a.Users = storage.NewMemoryUserStore()
		a.Prices = storage.NewMemoryPriceListStore()
		a.Transactions = storage.NewMemoryTransactionStore()
		return nil
	}

	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	if cfg.Database.MigrateOnStart {
		if err := a.Migrate(); err != nil {
			return err
		}
	}

	a.Users = storage.NewUserRepository(db)
	a.Transactions = storage.NewTransactionRepository(db)
	a.Prices = storage.NewCachedPriceListStore(storage.NewPriceListRepository(db), cfg.Cache.PriceListCacheTTL)
	return nil
}

// Migrate applies all pending schema migrations
func (a *App) Migrate() error {
	if a.DB == nil {
		return errors.New("migrations need STORAGE_BACKEND=postgres")
	}
	migrator, err := storage.NewMigrator(a.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// HTTPDependencies returns what the router needs
func (a *App) HTTPDependencies() *httpapi.Dependencies {
	checks := map[string]func(context.Context) error{}
	if a.DB != nil {
		checks["database"] = a.DB.Health
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return &httpapi.Dependencies{
		Pipeline:     a.Pipeline,
		Accounts:     a.Accounts,
		Reconciler:   a.Reconciler,
		Metrics:      a.Metrics,
		HealthChecks: checks,
	}
}

// Close releases connections. It is safe on a partially built App.
func (a *App) Close() {
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Warn("Failed to close reconciliation queue", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
}

func newProvider(cfg config.ProviderConfig) providers.Provider {
	if cfg.Type == "openai" {
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		})
	}
	return providers.NewMockProvider()
}
