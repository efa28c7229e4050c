package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Store    StoreConfig
	Prefs    PrefsConfig
	Password PasswordConfig
	Sync     SyncConfig
	Redis    RedisConfig
	Drive    DriveConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CASHLIA_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"CASHLIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASHLIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	// Driver selects the local backend: "sqlite" on devices with a native
	// relational engine, "document" on platforms without one.
	Driver      string `envconfig:"CASHLIA_STORE_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"CASHLIA_STORE_SQLITE_PATH" default:"cashlia.db"`
	DocumentDir string `envconfig:"CASHLIA_STORE_DOCUMENT_DIR" default:"cashlia_store"`
}

func (s StoreConfig) validate() error {
	switch s.Driver {
	case StoreDriverSQLite, StoreDriverDocument:
		return nil
	}
	return fmt.Errorf("unknown store driver %q (want %s or %s)", s.Driver, StoreDriverSQLite, StoreDriverDocument)
}

type PrefsConfig struct {
	Path string `envconfig:"CASHLIA_PREFS_PATH" default:"cashlia_prefs.json"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CASHLIA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CASHLIA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CASHLIA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CASHLIA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CASHLIA_ARGON_KEY_LEN" default:"32"`
}

type SyncConfig struct {
	// InviteTTL bounds how long a generated invitation token stays valid.
	InviteTTL time.Duration `envconfig:"CASHLIA_INVITE_TTL" default:"168h"`
	// Interval paces the background push/pull loop when a sync method is
	// configured.
	Interval time.Duration `envconfig:"CASHLIA_SYNC_INTERVAL" default:"5m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CASHLIA_REDIS_URL"`
	Address      string        `envconfig:"CASHLIA_REDIS_ADDR"`
	Password     string        `envconfig:"CASHLIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASHLIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASHLIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASHLIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASHLIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASHLIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASHLIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether the document-store backend can be dialed at all.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type DriveConfig struct {
	BaseURL       string        `envconfig:"CASHLIA_DRIVE_BASE_URL" default:"https://www.googleapis.com/drive/v3"`
	UploadBaseURL string        `envconfig:"CASHLIA_DRIVE_UPLOAD_BASE_URL" default:"https://www.googleapis.com/upload/drive/v3"`
	TokenURL      string        `envconfig:"CASHLIA_DRIVE_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`
	ClientID      string        `envconfig:"CASHLIA_DRIVE_CLIENT_ID"`
	ClientSecret  string        `envconfig:"CASHLIA_DRIVE_CLIENT_SECRET"`
	RootFolder    string        `envconfig:"CASHLIA_DRIVE_ROOT_FOLDER" default:"MyCashApp"`
	HTTPTimeout   time.Duration `envconfig:"CASHLIA_DRIVE_HTTP_TIMEOUT" default:"15s"`
}
