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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Notifications NotificationConfig
	Realtime      RealtimeConfig
	Navigation    NavigationConfig
	Metrics       MetricsConfig
}

type DatabaseConfig struct {
	// URL, when set, overrides the discrete connection fields.
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	ExpiringSoon      time.Duration
	SingleSession     bool
	CheckSession      bool
	OTPExpiration     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level     string
	Format    string
	SkipPaths []string
}

// NotificationConfig tunes announcement lifetime, unread-count caching and
// the background dispatch queue.
type NotificationConfig struct {
	AnnouncementTTL  time.Duration
	CacheEnabled     bool
	CacheTTL         time.Duration
	DispatchWorkers  int
	DispatchBuffer   int
	DispatchRetries  int
	DispatchRetryGap time.Duration
}

// RealtimeConfig configures the STOMP over WebSocket endpoint.
type RealtimeConfig struct {
	Enabled        bool
	Path           string
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
	HistoryLimit   int
}

// NavigationConfig holds the role used when a session carries an unknown role.
type NavigationConfig struct {
	DefaultRole string
	CacheTTL    time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		ExpiringSoon:      parseDuration(v.GetString("JWT_EXPIRING_SOON_WINDOW"), 10*time.Minute),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
		CheckSession:      v.GetBool("JWT_CHECK_SESSION"),
		OTPExpiration:     parseDuration(v.GetString("OTP_EXPIRATION"), 10*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:     v.GetString("LOG_LEVEL"),
		Format:    v.GetString("LOG_FORMAT"),
		SkipPaths: splitAndTrim(v.GetString("LOG_SKIP_PATHS")),
	}

	cfg.Notifications = NotificationConfig{
		AnnouncementTTL:  parseDuration(v.GetString("ANNOUNCEMENT_TTL"), 30*24*time.Hour),
		CacheEnabled:     v.GetBool("NOTIFICATIONS_CACHE_ENABLED"),
		CacheTTL:         parseDuration(v.GetString("NOTIFICATIONS_CACHE_TTL"), 30*time.Second),
		DispatchWorkers:  v.GetInt("NOTIFICATIONS_DISPATCH_WORKERS"),
		DispatchBuffer:   v.GetInt("NOTIFICATIONS_DISPATCH_BUFFER"),
		DispatchRetries:  v.GetInt("NOTIFICATIONS_DISPATCH_RETRIES"),
		DispatchRetryGap: parseDuration(v.GetString("NOTIFICATIONS_DISPATCH_RETRY_DELAY"), time.Second),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:        v.GetBool("ENABLE_REALTIME"),
		Path:           v.GetString("REALTIME_PATH"),
		MaxMessageSize: v.GetInt64("REALTIME_MAX_MESSAGE_SIZE"),
		SendBuffer:     v.GetInt("REALTIME_SEND_BUFFER"),
		AllowedOrigins: splitAndTrim(v.GetString("REALTIME_ALLOWED_ORIGINS")),
		HistoryLimit:   v.GetInt("CHAT_HISTORY_LIMIT"),
	}
	if cfg.Realtime.MaxMessageSize <= 0 {
		cfg.Realtime.MaxMessageSize = 64 * 1024
	}

	cfg.Navigation = NavigationConfig{
		DefaultRole: strings.ToUpper(v.GetString("NAVIGATION_DEFAULT_ROLE")),
		CacheTTL:    parseDuration(v.GetString("LAYOUT_PREFERENCE_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "epathshala")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "epathshala")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_EXPIRING_SOON_WINDOW", "10m")
	v.SetDefault("JWT_SINGLE_SESSION", false)
	v.SetDefault("JWT_CHECK_SESSION", true)
	v.SetDefault("OTP_EXPIRATION", "10m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_SKIP_PATHS", "/health,/ready,/metrics")

	v.SetDefault("ANNOUNCEMENT_TTL", "720h")
	v.SetDefault("NOTIFICATIONS_CACHE_ENABLED", true)
	v.SetDefault("NOTIFICATIONS_CACHE_TTL", "30s")
	v.SetDefault("NOTIFICATIONS_DISPATCH_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_DISPATCH_BUFFER", 64)
	v.SetDefault("NOTIFICATIONS_DISPATCH_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_DISPATCH_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_PATH", "/ws")
	v.SetDefault("REALTIME_MAX_MESSAGE_SIZE", 64*1024)
	v.SetDefault("REALTIME_SEND_BUFFER", 256)
	v.SetDefault("REALTIME_ALLOWED_ORIGINS", "")
	v.SetDefault("CHAT_HISTORY_LIMIT", 50)

	v.SetDefault("NAVIGATION_DEFAULT_ROLE", "STUDENT")
	v.SetDefault("LAYOUT_PREFERENCE_CACHE_TTL", "24h")

	v.SetDefault("ENABLE_METRICS", true)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
