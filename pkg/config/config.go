package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Session  SessionConfig
	Lists    ListsConfig
	Sharing  SharingConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionConfig controls the lifetime of per-user list state in Redis.
type SessionConfig struct {
	TTL time.Duration
}

// CategoryConfig is one ordered (key, label) category definition entry.
type CategoryConfig struct {
	Key   string
	Label string
}

// ViewConfig describes one index view: its legal categories and which
// category keys are active when the session holds no explicit selection.
type ViewConfig struct {
	Categories    []CategoryConfig
	DefaultFilter []string
}

// ListsConfig groups pagination and per-view category definitions.
type ListsConfig struct {
	PerPage       int
	Opportunities ViewConfig
	Leads         ViewConfig
	Tasks         ViewConfig
}

// SharingConfig tunes share-notification fanout.
type SharingConfig struct {
	NotifyWorkers int
	NotifyRetries int
}

// ExportsConfig toggles list export endpoints.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Session = SessionConfig{
		TTL: parseDuration(v.GetString("SESSION_TTL"), 12*time.Hour),
	}

	cfg.Lists = ListsConfig{
		PerPage: v.GetInt("LISTS_PER_PAGE"),
		Opportunities: ViewConfig{
			Categories:    parseCategories(v.GetString("LISTS_OPPORTUNITY_STAGES")),
			DefaultFilter: splitAndTrim(v.GetString("LISTS_OPPORTUNITY_DEFAULT")),
		},
		Leads: ViewConfig{
			Categories:    parseCategories(v.GetString("LISTS_LEAD_STATUSES")),
			DefaultFilter: splitAndTrim(v.GetString("LISTS_LEAD_DEFAULT")),
		},
		Tasks: ViewConfig{
			Categories:    parseCategories(v.GetString("LISTS_TASK_CATEGORIES")),
			DefaultFilter: splitAndTrim(v.GetString("LISTS_TASK_DEFAULT")),
		},
	}
	if cfg.Lists.PerPage <= 0 {
		cfg.Lists.PerPage = 20
	}

	cfg.Sharing = SharingConfig{
		NotifyWorkers: v.GetInt("SHARING_NOTIFY_WORKERS"),
		NotifyRetries: v.GetInt("SHARING_NOTIFY_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "relay_crm")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SESSION_TTL", "12h")

	v.SetDefault("LISTS_PER_PAGE", 20)
	v.SetDefault("LISTS_OPPORTUNITY_STAGES", "prospecting:Prospecting,analysis:Analysis,presentation:Presentation,proposal:Proposal,negotiation:Negotiation,final_review:Final Review,won:Closed/Won,lost:Closed/Lost")
	v.SetDefault("LISTS_OPPORTUNITY_DEFAULT", "")
	v.SetDefault("LISTS_LEAD_STATUSES", "new:New,contacted:Contacted,converted:Converted,rejected:Rejected")
	v.SetDefault("LISTS_LEAD_DEFAULT", "")
	v.SetDefault("LISTS_TASK_CATEGORIES", "call:Call,email:Email,follow_up:Follow-up,meeting:Meeting,money:Money,presentation:Presentation,trip:Trip")
	v.SetDefault("LISTS_TASK_DEFAULT", "")

	v.SetDefault("SHARING_NOTIFY_WORKERS", 1)
	v.SetDefault("SHARING_NOTIFY_RETRIES", 3)

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseCategories reads "key:Label,key:Label" preserving order. A bare key
// without a label uses the key itself as its label.
func parseCategories(raw string) []CategoryConfig {
	entries := splitAndTrim(raw)
	if len(entries) == 0 {
		return nil
	}

	categories := make([]CategoryConfig, 0, len(entries))
	for _, entry := range entries {
		key, label, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		label = strings.TrimSpace(label)
		if !found || label == "" {
			label = key
		}
		categories = append(categories, CategoryConfig{Key: key, Label: label})
	}

	return categories
}
