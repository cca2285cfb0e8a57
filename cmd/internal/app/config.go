package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Identity provider token verification. When the secret is empty the
	// server has no way to verify tokens; API routes then require the
	// dev-insecure opt-in to function at all.
	AuthJWTSecret   string
	AuthJWTIssuer   string
	AuthDevInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PINGGO_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PINGGO_LOG_LEVEL", "info"),
		LogFormat: EnvString("PINGGO_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PINGGO_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PINGGO_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PINGGO_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PINGGO_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PINGGO_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PINGGO_DATABASE_URL", ""),
		DBSchema:    EnvString("PINGGO_DB_SCHEMA", "pinggo"),
		DBMaxConns:  EnvInt32("PINGGO_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PINGGO_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("PINGGO_READINESS_REQUIRE_DB", false),

		AuthJWTSecret:   EnvString("PINGGO_AUTH_JWT_SECRET", ""),
		AuthJWTIssuer:   EnvString("PINGGO_AUTH_JWT_ISSUER", ""),
		AuthDevInsecure: EnvBool("PINGGO_AUTH_DEV_INSECURE", false),

		CORSAllowedOrigins:   EnvCSV("PINGGO_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("PINGGO_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("PINGGO_CORS_MAX_AGE_SECONDS", 600),
	}
}
