package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Environment    string
	ServiceName    string
	DebugTrace     bool
	ReloadInterval time.Duration
	// Storage
	RedisAddr       string
	VisitorTTL      time.Duration
	PostgresDSN     string
	ClickHouseDSN   string
	CatalogFile     string
	SubscribersFile string
	GeoIPDB         string
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	// Personalization
	HomeCountry        string
	DefaultSite        string
	ProfileMode        string
	AllowTestOverrides bool
	VisitorCookie      string
	Features           Features
	// Newsletter rate limiting
	NewsletterWindow      time.Duration
	NewsletterPruneWindow time.Duration
	// Interaction tracking rate limiting
	InteractionRateEnabled  bool
	InteractionRateCapacity int
	InteractionRateRefill   int
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Features mirrors the site's personalization feature flags. Components receive
// it at construction instead of reading the environment themselves.
type Features struct {
	Personalization             bool
	AvatarExperiment            bool
	GreetingExperiment          bool
	ContextualMessageExperiment bool
	ContentProminenceExperiment bool
	ShowTransparencyNotice      bool
	AllowOptOut                 bool
	Experiments                 bool
	TrackMetrics                bool
}

// DefaultFeatures returns the flag values used when nothing is configured.
func DefaultFeatures() Features {
	return Features{
		Personalization:             true,
		GreetingExperiment:          true,
		ContextualMessageExperiment: true,
		ContentProminenceExperiment: true,
		ShowTransparencyNotice:      true,
		AllowOptOut:                 true,
	}
}

// Development reports whether the service runs in a local development environment.
func (c Config) Development() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "dev":
		return true
	}
	return false
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent. A .env file in the working directory is
// applied first without overriding variables that are already set.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.Environment = getenv("ENV", "production")
	cfg.ServiceName = getenv("SERVICE_NAME", "affinityserve")
	cfg.DebugTrace = envBool("DEBUG_TRACE", false)
	// default to 5 minutes between catalogue reloads
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 5*time.Minute)

	cfg.RedisAddr = getenv("REDIS_ADDR", "")
	cfg.VisitorTTL = envDuration("VISITOR_TTL", 365*24*time.Hour)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	cfg.CatalogFile = getenv("CATALOG_FILE", "data/catalog.yaml")
	cfg.SubscribersFile = getenv("SUBSCRIBERS_FILE", "data/subscribers.json")
	cfg.GeoIPDB = getenv("GEOIP_DB", "")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.HomeCountry = strings.ToUpper(getenv("HOME_COUNTRY", "US"))
	cfg.DefaultSite = getenv("DEFAULT_SITE", "professional")
	cfg.ProfileMode = getenv("AFFINITY_PROFILE", "interest-aware")
	// test overrides are on by default only in development
	cfg.AllowTestOverrides = envBool("ALLOW_TEST_OVERRIDES", cfg.Development())
	cfg.VisitorCookie = getenv("VISITOR_COOKIE", "visitor_id")

	cfg.Features = loadFeatures()

	cfg.NewsletterWindow = envDuration("NEWSLETTER_RATE_WINDOW", time.Minute)
	cfg.NewsletterPruneWindow = envDuration("NEWSLETTER_PRUNE_WINDOW", 5*time.Minute)

	cfg.InteractionRateEnabled = envBool("INTERACTION_RATE_LIMIT_ENABLED", true)
	cfg.InteractionRateCapacity = envInt("INTERACTION_RATE_CAPACITY", 30)
	cfg.InteractionRateRefill = envInt("INTERACTION_RATE_REFILL", 1)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// loadFeatures reads the feature flags. Opt-in flags default to false,
// opt-out flags default to true.
func loadFeatures() Features {
	def := DefaultFeatures()
	return Features{
		Personalization:             envBool("PERSONALIZATION_ENABLED", def.Personalization),
		AvatarExperiment:            envBool("AVATAR_EXPERIMENT", def.AvatarExperiment),
		GreetingExperiment:          envBool("GREETING_EXPERIMENT", def.GreetingExperiment),
		ContextualMessageExperiment: envBool("CONTEXTUAL_MESSAGE_EXPERIMENT", def.ContextualMessageExperiment),
		ContentProminenceExperiment: envBool("CONTENT_PROMINENCE_EXPERIMENT", def.ContentProminenceExperiment),
		ShowTransparencyNotice:      envBool("SHOW_TRANSPARENCY_NOTICE", def.ShowTransparencyNotice),
		AllowOptOut:                 envBool("ALLOW_OPT_OUT", def.AllowOptOut),
		Experiments:                 envBool("EXPERIMENTS_ENABLED", def.Experiments),
		TrackMetrics:                envBool("TRACK_METRICS", def.TrackMetrics),
	}
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
