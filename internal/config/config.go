package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested groups collect the settings of one
// subsystem.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	StoreDriver string // mysql or memory

	DB     DBConfig
	Log    LogConfig
	Notify NotifyConfig
	Lock   LockConfig

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	AdminEmail     string // seeded admin account (optional)
	AdminPassword  string
}

// DBConfig describes the MySQL connection.
type DBConfig struct {
	User            string
	Pass            string
	Host            string
	Port            string
	Name            string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool // apply embedded migrations at startup
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// NotifyConfig controls event fan-out.  An empty AMQPURL keeps events inside
// the process: they go straight to the WebSocket hub.
type NotifyConfig struct {
	AMQPURL  string
	Exchange string
	Buffer   int
}

// LockConfig bounds the per-section critical section when it is backed by
// Redis.  TTL is the lease of a held lock; Wait is how long an operation
// may wait for it before failing.
type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

// Load reads configuration values from the environment, after merging a
// .env file when one is present in the working directory.  Variables that
// are required for the selected store driver are checked together so a
// single error names every missing one.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; real environment wins

	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8080"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		DB: DBConfig{
			User:            os.Getenv("DB_USER"),
			Pass:            os.Getenv("DB_PASS"),
			Host:            envStr("DB_HOST", "127.0.0.1"),
			Port:            envStr("DB_PORT", "3306"),
			Name:            os.Getenv("DB_NAME"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         envBool("DB_MIGRATE", true),
		},
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "json"),
		},
		Notify: NotifyConfig{
			AMQPURL:  amqpURL(),
			Exchange: envStr("EVENTS_EXCHANGE", "queue.events"),
			Buffer:   envInt("NOTIFY_BUFFER", 1024),
		},
		Lock: LockConfig{
			TTL:  envDur("SECTION_LOCK_TTL", 10*time.Second),
			Wait: envDur("SECTION_LOCK_WAIT", 5*time.Second),
		},
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch c.StoreDriver {
	case StoreMySQL:
		if c.DB.User == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DB.Name == "" {
			missing = append(missing, "DB_NAME")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q (want %s or %s)", c.StoreDriver, StoreMySQL, StoreMemory)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Notify.Buffer < 1 {
		return fmt.Errorf("invalid NOTIFY_BUFFER %d", c.Notify.Buffer)
	}
	return nil
}

// amqpURL honours both RABBITMQ_URL and the older AMQP_URL spelling.
func amqpURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url
	}
	return os.Getenv("AMQP_URL")
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
