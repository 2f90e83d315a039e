package config // package config loads application configuration from environment variables

import (
	"fmt"

	"github.com/caarlos0/env/v11" // env parses tagged structs from the process environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; required ones fail Load when unset.
type Config struct {
	Env            string `env:"APP_ENV" envDefault:"dev"`                  // application environment (e.g. "dev", "prod")
	Port           string `env:"APP_PORT" envDefault:"8080"`                // HTTP port to listen on
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`               // debug, info, warn or error
	DBUser         string `env:"DB_USER,required"`                          // database username
	DBPass         string `env:"DB_PASS"`                                   // database password (optional)
	DBHost         string `env:"DB_HOST,required"`                          // database host address
	DBPort         string `env:"DB_PORT,required"`                          // database port number
	DBName         string `env:"DB_NAME,required"`                          // database name
	DBMigrate      bool   `env:"DB_MIGRATE" envDefault:"false"`             // apply the embedded schema on start
	JWTSecret      string `env:"JWT_SECRET,required"`                       // secret used to sign JWTs
	AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"15"`      // access token time‑to‑live in minutes
	RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"7"`     // refresh token time‑to‑live in days
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"10"`               // bcrypt cost for password hashing
	AMQPURL        string `env:"RABBITMQ_URL"`                               // empty writes notifications straight to the inbox
	GuardRulesFile string `env:"GUARD_RULES_FILE"`                          // optional YAML guard rules
	NotifyLogDir   string `env:"NOTIFY_LOG_DIR" envDefault:"logs"`          // where the consumer mirrors notifications
}

// Load reads configuration values from the environment.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses configuration from environ instead of the process
// environment when environ is non-nil.  Tests use it to avoid os.Setenv.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.AccessTTLMin <= 0 {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", cfg.AccessTTLMin)
	}
	if cfg.RefreshTTLDays <= 0 {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_TTL_DAYS must be positive, got %d", cfg.RefreshTTLDays)
	}
	return cfg, nil
}
