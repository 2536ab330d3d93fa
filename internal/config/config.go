package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time for TTL durations

	"github.com/joho/godotenv" // optional .env file support for local development
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in the
// application: strings for identifiers and secrets, durations for TTLs.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	BaseURL       string        // public base URL used in password-reset links
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	SessionSecret string        // secret used to sign session cookies
	SessionTTL    time.Duration // lifetime of a session
	CookieSecure  bool          // Secure flag on the session cookie (prod only)
	BcryptCost    int           // bcrypt cost for password hashing
	ResetTokenTTL time.Duration // validity window of a password-reset token

	SeedPartnerAName  string // provisioning: first partner account name
	SeedPartnerAEmail string // provisioning: first partner account email
	SeedPartnerBName  string // provisioning: second partner account name
	SeedPartnerBEmail string // provisioning: second partner account email
}

// Load reads configuration values from environment variables and returns a
// Config. A .env file is honored when present. Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	_ = godotenv.Load()

	env := must("APP_ENV")
	return Config{
		Env:           env,
		Port:          must("APP_PORT"),
		BaseURL:       envStr("APP_BASE_URL", "http://localhost:8080"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		SessionSecret: must("SESSION_SECRET"),
		SessionTTL:    time.Duration(envInt("SESSION_TTL_DAYS", 30)) * 24 * time.Hour,
		CookieSecure:  env == "prod" || env == "production",
		BcryptCost:    envInt("BCRYPT_COST", 12),
		ResetTokenTTL: time.Duration(envInt("RESET_TOKEN_TTL_MIN", 60)) * time.Minute,

		SeedPartnerAName:  os.Getenv("SEED_PARTNER_A_NAME"),
		SeedPartnerAEmail: os.Getenv("SEED_PARTNER_A_EMAIL"),
		SeedPartnerBName:  os.Getenv("SEED_PARTNER_B_NAME"),
		SeedPartnerBEmail: os.Getenv("SEED_PARTNER_B_EMAIL"),
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

// envStr returns the variable's value or a default when unset.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt is like envStr but converts the value into an integer, falling
// back to the default on parse failure.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid int for %s: %q, using default %d", key, v, def)
		return def
	}
	return n
}
