package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// minSecretLen is the shortest accepted HMAC key for session tokens.
const minSecretLen = 32

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline enforced by middleware

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DBPath string // SQLite database file

	// Sessions & credentials
	JWTSecret     string        // HMAC key for session tokens
	SessionTTL    time.Duration // token lifetime (default: 7 days)
	SessionCookie string        // cookie carrying the session token
	CookieSecure  bool          // Secure attribute on the session cookie
	BcryptCost    int           // bcrypt work factor
	AdminUsername string        // bootstrap admin, only used while no user exists
	AdminPassword string
	SweepInterval time.Duration // how often expired in-memory sessions are dropped

	// Bookmarks
	ImportFile   string        // optional seed file imported at startup (.html or .yaml)
	IconTimeout  time.Duration // remote icon fetch timeout
	IconMaxBytes int64         // remote icon size cap

	// Login rate limiting (per client IP)
	LoginBurst        int
	LoginRefillPerMin int

	// Redis (optional, empty RedisAddr => in-memory session registry)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict healthz/readyz to specific IPs or CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SHELF_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SHELF_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("SHELF_REQUEST_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("SHELF_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SHELF_PRETTY_LOG", true),

		// Storage
		DBPath: getenv("SHELF_DB_PATH", "/data/shelf.db"),

		// Sessions & credentials
		JWTSecret:     requireEnv("SHELF_JWT_SECRET"),
		SessionTTL:    mustDuration("SHELF_SESSION_TTL", 7*24*time.Hour),
		SessionCookie: getenv("SHELF_SESSION_COOKIE", "shelf_session"),
		CookieSecure:  mustBool("SHELF_COOKIE_SECURE", true),
		BcryptCost:    getenvInt("SHELF_BCRYPT_COST", 10),
		AdminUsername: getenv("SHELF_ADMIN_USERNAME", ""),
		AdminPassword: getenv("SHELF_ADMIN_PASSWORD", ""),
		SweepInterval: mustDuration("SHELF_SWEEP_INTERVAL", time.Hour),

		// Bookmarks
		ImportFile:   getenv("SHELF_IMPORT_FILE", ""),
		IconTimeout:  mustDuration("SHELF_ICON_TIMEOUT", 5*time.Second),
		IconMaxBytes: int64(getenvInt("SHELF_ICON_MAX_BYTES", 512*1024)),

		LoginBurst:        getenvInt("SHELF_LOGIN_BURST", 5),
		LoginRefillPerMin: getenvInt("SHELF_LOGIN_REFILL_PER_MIN", 10),

		// Redis settings
		RedisAddr:           getenv("SHELF_REDIS_ADDR", ""),
		RedisUser:           getenv("SHELF_REDIS_USERNAME", ""),
		RedisPassword:       getenv("SHELF_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("SHELF_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SHELF_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("SHELF_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SHELF_TRUST_PROXY", true),
	}

	if len(cfg.JWTSecret) < minSecretLen {
		panic(fmt.Sprintf("❌ FATAL: SHELF_JWT_SECRET must be at least %d bytes", minSecretLen))
	}
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		panic("❌ FATAL: SHELF_ADMIN_USERNAME and SHELF_ADMIN_PASSWORD must be set together")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.JWTSecret = "***REDACTED***"
	if cp.AdminPassword != "" {
		cp.AdminPassword = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
