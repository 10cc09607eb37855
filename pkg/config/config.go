package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "shopmesh"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv          = "SHOPMESH_APP_ENV"
	EnvPort            = "SHOPMESH_APP_PORT"
	EnvDBDriver        = "SHOPMESH_DB_DRIVER"
	EnvDBDSN           = "SHOPMESH_DB_DSN"
	EnvRedisURL        = "SHOPMESH_REDIS_URL"
	EnvDirectoryURL    = "SHOPMESH_DIRECTORY_URL"
	EnvShopAPIVersion  = "SHOPMESH_SHOP_API_VERSION"
	EnvShopCallTimeout = "SHOPMESH_SHOP_CALL_TIMEOUT"
	EnvAutoMigrate     = "SHOPMESH_AUTO_MIGRATE"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Directory    DirectoryConfig
	Shopfront    ShopfrontConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPMESH_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPMESH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPMESH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPMESH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig describes the local persistence medium for cart state. SQLite is
// the default profile-local store; postgres is selectable for shared
// deployments.
type DBConfig struct {
	Driver string `envconfig:"SHOPMESH_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"SHOPMESH_DB_DSN"`

	MaxOpenConns    int           `envconfig:"SHOPMESH_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"SHOPMESH_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPMESH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPMESH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "file:shopmesh.db?cache=shared&_fk=1"
)

func (db *DBConfig) ensureDSN() error {
	driver := strings.TrimSpace(strings.ToLower(db.Driver))
	switch driver {
	case "", DriverSQLite:
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	case DriverPostgres:
		db.Driver = DriverPostgres
		if db.DSN == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DriverPostgres)
		}
		return nil
	default:
		return fmt.Errorf("unsupported db driver %q", db.Driver)
	}
}

// RedisConfig is optional; without a URL or address the cart change
// notifications stay process-local.
type RedisConfig struct {
	URL          string        `envconfig:"SHOPMESH_REDIS_URL"`
	Address      string        `envconfig:"SHOPMESH_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPMESH_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPMESH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPMESH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPMESH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPMESH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPMESH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPMESH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// DirectoryConfig points at the marketplace directory service that resolves
// shop domains to storefront credentials.
type DirectoryConfig struct {
	BaseURL string        `envconfig:"SHOPMESH_DIRECTORY_URL" required:"true"`
	Timeout time.Duration `envconfig:"SHOPMESH_DIRECTORY_TIMEOUT" default:"10s"`
}

// ShopfrontConfig governs the per-shop storefront API connections. The call
// timeout bounds every remote cart operation so a hung backend surfaces as
// a reported failure instead of an eternal loading state.
type ShopfrontConfig struct {
	APIVersion  string        `envconfig:"SHOPMESH_SHOP_API_VERSION" default:"2021-10"`
	CallTimeout time.Duration `envconfig:"SHOPMESH_SHOP_CALL_TIMEOUT" default:"10s"`
	MaxLines    int           `envconfig:"SHOPMESH_SHOP_MAX_LINES" default:"20"`
	Insecure    bool          `envconfig:"SHOPMESH_SHOP_INSECURE" default:"false"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"SHOPMESH_AUTO_MIGRATE" default:"false"`
	MemoryFallback bool `envconfig:"SHOPMESH_CARTSTORE_MEMORY_FALLBACK" default:"true"`
}
