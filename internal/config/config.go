package config // package config loads application configuration from environment variables

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Inventory backends accepted by INVENTORY_BACKEND.
const (
	BackendMySQL = "mysql"
	BackendRedis = "redis"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env                 string        // application environment (e.g. "dev", "prod")
	Port                string        // HTTP port to listen on
	DBUser              string        // database username
	DBPass              string        // database password (optional)
	DBHost              string        // database host address
	DBPort              string        // database port number
	DBName              string        // database name
	DBAutoMigrate       bool          // create missing tables on startup
	JWTSecret           string        // secret used to verify and sign JWTs
	AccessTTLMin        int           // access token time-to-live in minutes
	BcryptCost          int           // bcrypt cost for password hashing
	InventoryBackend    string        // "mysql" or "redis"
	InventoryResync     bool          // overwrite existing redis counters on startup
	CompensationTimeout time.Duration // upper bound for a compensating release
	RabbitURL           string        // AMQP URL; empty disables purchase events
	PurchaseQueue       string        // queue receiving purchase events
	RabbitDialTimeout   time.Duration // upper bound for one broker dial
	AuditLogDir         string        // directory of the purchase audit log
	LogLevel            string        // slog level: debug, info, warn, error
}

// Load reads an optional .env file, then builds a Config from the
// environment. Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg := Config{
		Env:                 envStr("APP_ENV", "dev"),
		Port:                must("APP_PORT"),
		DBUser:              must("DB_USER"),
		DBPass:              os.Getenv("DB_PASS"), // empty allowed
		DBHost:              must("DB_HOST"),
		DBPort:              must("DB_PORT"),
		DBName:              must("DB_NAME"),
		DBAutoMigrate:       envBool("DB_AUTO_MIGRATE", false),
		JWTSecret:           must("JWT_SECRET"),
		AccessTTLMin:        envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:          envInt("BCRYPT_COST", 10),
		InventoryBackend:    strings.ToLower(envStr("INVENTORY_BACKEND", BackendMySQL)),
		InventoryResync:     envBool("INVENTORY_FORCE_RESYNC", false),
		CompensationTimeout: envDur("COMPENSATION_TIMEOUT", 5*time.Second),
		RabbitURL:           os.Getenv("RABBITMQ_URL"),
		PurchaseQueue:       envStr("PURCHASE_QUEUE", "purchase.events"),
		RabbitDialTimeout:   envDur("RABBITMQ_DIAL_TIMEOUT", 3*time.Second),
		AuditLogDir:         envStr("AUDIT_LOG_DIR", "logs"),
		LogLevel:            envStr("LOG_LEVEL", "info"),
	}
	switch cfg.InventoryBackend {
	case BackendMySQL, BackendRedis:
	default:
		log.Fatalf("invalid INVENTORY_BACKEND: %q", cfg.InventoryBackend)
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = 5 * time.Second
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
