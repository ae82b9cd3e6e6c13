// Package config loads service configuration from environment variables.
// A .env file, when present, is read by main before Load is called.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime settings of the HTTP service.
type Config struct {
	Env            string // dev, test or prod
	Port           string
	DBUser         string
	DBPass         string // empty allowed
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	MongoURI    string
	MongoDB     string
	RabbitURL   string // empty disables event publishing
	EventLogDir string

	OTP OTPConfig

	GoogleUserinfoURL string
	PublicBaseURL     string   // prefix of file URLs handed out by uploads
	AdminEmails       []string // accounts created with these emails get the admin flag
	CatalogFile       string   // optional JSON catalog replacing the embedded one
	FilterTTL         time.Duration
}

// OTPConfig controls phone verification codes.
type OTPConfig struct {
	TTL                time.Duration
	MaxAttempts        int
	VerificationTTL    time.Duration
	DefaultCountryCode string
}

// Load reads the configuration. Required variables are enforced by must and
// a missing one stops the process.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		MongoURI:    envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     envStr("MONGO_DB", "studentstay"),
		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		EventLogDir: envStr("EVENT_LOG_DIR", "logs"),

		OTP: OTPConfig{
			TTL:                envDur("OTP_TTL", 5*time.Minute),
			MaxAttempts:        envInt("OTP_MAX_ATTEMPTS", 5),
			VerificationTTL:    envDur("OTP_VERIFICATION_TTL", 15*time.Minute),
			DefaultCountryCode: envStr("OTP_DEFAULT_COUNTRY_CODE", "+91"),
		},

		GoogleUserinfoURL: envStr("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v3/userinfo"),
		PublicBaseURL:     strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AdminEmails:       splitList(os.Getenv("ADMIN_EMAILS")),
		CatalogFile:       os.Getenv("CATALOG_FILE"),
		FilterTTL:         envDur("FILTER_TTL", 30*24*time.Hour),
	}
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool { return c.Env == "prod" }

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
