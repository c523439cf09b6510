package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Credential lifetimes live here rather than in the
// handlers so the three token kinds are tuned in one place.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to sign JWT access tokens
	AccessTTLMin    int    // access token time-to-live in minutes
	SessionTTLHours int    // web session lifetime in hours (24 unless remembered)
	RememberTTLDays int    // web session lifetime in days with remember=true (30)
	GameTokenTTLMin int    // one-time game login token lifetime in minutes (15)
	GameSessTTLDays int    // in-game session lifetime in days (7)
	BcryptCost      int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message. Lifetimes have sane defaults
// so a minimal .env only needs the DB and secret entries.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		AccessTTLMin:    intOr("ACCESS_TOKEN_TTL_MIN", 30),
		SessionTTLHours: intOr("SESSION_TTL_HOURS", 24),
		RememberTTLDays: intOr("REMEMBER_TTL_DAYS", 30),
		GameTokenTTLMin: intOr("GAME_TOKEN_TTL_MIN", 15),
		GameSessTTLDays: intOr("GAME_SESSION_TTL_DAYS", 7),
		BcryptCost:      intOr("BCRYPT_COST", 12),
	}
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

// intOr converts an optional environment variable to an integer, falling
// back to def when unset. A malformed value is fatal rather than silently
// defaulted.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
