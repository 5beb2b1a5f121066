package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"llm_billing_gateway/internal/billing"
)

// Backends for stores, quota tracking and the reconciliation queue
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort     string
	JWTSecret    []byte
	APIKeyPepper []byte
	Log          LogConfig
	Storage      StorageConfig
	Database     DatabaseConfig
	Cache        CacheConfig
	Redis        RedisConfig
	Quota        QuotaConfig
	Billing      BillingConfig
	Provider     ProviderConfig
	Reconcile    ReconcileConfig
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects where accounts, prices and transactions live
type StorageConfig struct {
	Backend string // memory or postgres
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
	MigrateOnStart  bool
}

// CacheConfig holds cache settings
type CacheConfig struct {
	PriceListCacheTTL time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// QuotaConfig holds the fixed-window request quota
type QuotaConfig struct {
	Backend string // memory or redis
	Window  time.Duration
	Limit   int
}

// BillingConfig holds ledger settings
type BillingConfig struct {
	BalanceMode  billing.BalanceMode // one per process
	WelcomeBonus int64
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	Type           string // openai or mock
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// ReconcileConfig holds the dead-letter queue for usage that could not be billed
type ReconcileConfig struct {
	Backend   string // memory or redis
	QueueName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("API_KEY_PEPPER", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_BACKEND", BackendMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)
	v.SetDefault("DB_QUERY_TIMEOUT", 5*time.Second)
	v.SetDefault("DB_MIGRATE_ON_START", true)

	v.SetDefault("CACHE_PRICE_LIST_TTL", 30*time.Second)

	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("QUOTA_BACKEND", BackendMemory)
	v.SetDefault("QUOTA_WINDOW", 60*time.Second)
	v.SetDefault("QUOTA_LIMIT", 5)

	v.SetDefault("BALANCE_MODE", string(billing.BalanceDerived))
	v.SetDefault("WELCOME_BONUS_CREDITS", 1500)

	v.SetDefault("PROVIDER_TYPE", "mock")
	v.SetDefault("PROVIDER_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("PROVIDER_API_KEY", "")
	v.SetDefault("PROVIDER_REQUEST_TIMEOUT", 60*time.Second)

	v.SetDefault("RECONCILE_BACKEND", BackendMemory)
	v.SetDefault("RECONCILE_QUEUE_NAME", "billing-reconciliation")
}

// Load reads configuration from an optional file named by CONFIG_FILE and
// from environment variables, which take precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		HTTPPort:     v.GetString("HTTP_PORT"),
		JWTSecret:    []byte(v.GetString("JWT_SECRET")),
		APIKeyPepper: []byte(v.GetString("API_KEY_PEPPER")),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			QueryTimeout:    v.GetDuration("DB_QUERY_TIMEOUT"),
			MigrateOnStart:  v.GetBool("DB_MIGRATE_ON_START"),
		},
		Cache: CacheConfig{
			PriceListCacheTTL: v.GetDuration("CACHE_PRICE_LIST_TTL"),
		},
		Redis: RedisConfig{
			Address:      v.GetString("REDIS_ADDRESS"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Quota: QuotaConfig{
			Backend: strings.ToLower(v.GetString("QUOTA_BACKEND")),
			Window:  v.GetDuration("QUOTA_WINDOW"),
			Limit:   v.GetInt("QUOTA_LIMIT"),
		},
		Billing: BillingConfig{
			BalanceMode:  billing.BalanceMode(strings.ToLower(v.GetString("BALANCE_MODE"))),
			WelcomeBonus: v.GetInt64("WELCOME_BONUS_CREDITS"),
		},
		Provider: ProviderConfig{
			Type:           strings.ToLower(v.GetString("PROVIDER_TYPE")),
			BaseURL:        v.GetString("PROVIDER_BASE_URL"),
			APIKey:         v.GetString("PROVIDER_API_KEY"),
			RequestTimeout: v.GetDuration("PROVIDER_REQUEST_TIMEOUT"),
		},
		Reconcile: ReconcileConfig{
			Backend:   strings.ToLower(v.GetString("RECONCILE_BACKEND")),
			QueueName: v.GetString("RECONCILE_QUEUE_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Quota.Backend != BackendMemory && c.Quota.Backend != BackendRedis {
		return fmt.Errorf("unsupported QUOTA_BACKEND %q", c.Quota.Backend)
	}
	if c.Reconcile.Backend != BackendMemory && c.Reconcile.Backend != BackendRedis {
		return fmt.Errorf("unsupported RECONCILE_BACKEND %q", c.Reconcile.Backend)
	}
	if c.Quota.Window <= 0 || c.Quota.Limit <= 0 {
		return fmt.Errorf("QUOTA_WINDOW and QUOTA_LIMIT must be positive")
	}

	if _, err := billing.ParseBalanceMode(string(c.Billing.BalanceMode)); err != nil {
		return fmt.Errorf("unsupported BALANCE_MODE: %w", err)
	}
	if c.Billing.WelcomeBonus < 0 {
		return fmt.Errorf("WELCOME_BONUS_CREDITS must not be negative")
	}

	switch c.Provider.Type {
	case "mock":
	case "openai":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("PROVIDER_BASE_URL is required when PROVIDER_TYPE=openai")
		}
	default:
		return fmt.Errorf("unsupported PROVIDER_TYPE %q", c.Provider.Type)
	}
	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("PROVIDER_REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Quota.Backend == BackendRedis || c.Reconcile.Backend == BackendRedis
}
