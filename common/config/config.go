package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = uint(n)
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	*result = s == "true" || s == "1"
}

/* Listen Configuration */

type listenConfig struct {
	Host string `json:"host"`
	Port uint   `json:"port"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
}

/* Database Configuration */

// DatabaseConfig selects the SQL driver. Production runs on Postgres via
// pgx; sqlite backs tests and single-binary local setups.
type DatabaseConfig struct {
	Driver     string `json:"driver"` // "postgres" or "sqlite"
	Host       string `json:"host"`
	Port       uint   `json:"port"`
	Database   string `json:"database"`
	SslMode    string `json:"ssl_mode"`
	User       string `json:"user"`
	Password   string `json:"password"`
	SqlitePath string `json:"sqlite_path"`
}

func (d DatabaseConfig) ConnStr() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SslMode)
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:     "postgres",
		Host:       "localhost",
		Port:       5432,
		Database:   "autosa",
		User:       "",
		Password:   "",
		SslMode:    "disable",
		SqlitePath: "autosa.db",
	}
}

func (d *DatabaseConfig) loadFromEnv() {
	loadEnvString("DATABASE_DRIVER", &d.Driver)
	loadEnvString("POSTGRES_HOST", &d.Host)
	loadEnvUint("POSTGRES_PORT", &d.Port)
	loadEnvString("POSTGRES_DB_NAME", &d.Database)
	loadEnvString("POSTGRES_SSLMODE", &d.SslMode)
	loadEnvString("POSTGRES_USERNAME", &d.User)
	loadEnvString("POSTGRES_PASSWORD", &d.Password)
	loadEnvString("SQLITE_PATH", &d.SqlitePath)
}

/* NATS Configuration */

type natsConfig struct {
	Host     string
	Port     uint
	Username string
	Password string
	Enabled  bool
}

func (c *natsConfig) loadFromEnv() {
	loadEnvString("NATS_HOST", &c.Host)
	loadEnvUint("NATS_PORT", &c.Port)
	loadEnvString("NATS_USER", &c.Username)
	loadEnvString("NATS_PASSWORD", &c.Password)
	loadEnvBool("NATS_ENABLED", &c.Enabled)
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Host:     "localhost",
		Port:     4222,
		Username: "",
		Password: "",
		Enabled:  false,
	}
}

/* Redis Configuration */

type redisConfig struct {
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)
	loadEnvInt("REDIS_DB", &r.DB)
	loadEnvBool("REDIS_ENABLED", &r.Enabled)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
		Enabled:  false,
	}
}

/* Refresh Configuration */

// RefreshConfig tunes the ingestion run: the default lookback window when
// no start time is requested, the oldest start time a caller may request,
// and the upsert chunk size.
type RefreshConfig struct {
	LookbackHours  int
	OldestDays     int
	BatchSize      int
	SourcesFile    string
	RequestTimeout time.Duration
}

func (r RefreshConfig) Lookback() time.Duration {
	return time.Duration(r.LookbackHours) * time.Hour
}

func (r RefreshConfig) OldestBound() time.Duration {
	return time.Duration(r.OldestDays) * 24 * time.Hour
}

func defaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		LookbackHours:  24,
		OldestDays:     7,
		BatchSize:      500,
		SourcesFile:    "sources.yaml",
		RequestTimeout: 30 * time.Second,
	}
}

func (r *RefreshConfig) loadFromEnv() {
	loadEnvInt("REFRESH_LOOKBACK_HOURS", &r.LookbackHours)
	loadEnvInt("REFRESH_OLDEST_DAYS", &r.OldestDays)
	loadEnvInt("REFRESH_BATCH_SIZE", &r.BatchSize)
	loadEnvString("REFRESH_SOURCES_FILE", &r.SourcesFile)
	if s := getEnv("REFRESH_REQUEST_TIMEOUT", ""); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			r.RequestTimeout = d
		}
	}
}

/* Twitter Configuration */

type TwitterConfig struct {
	BearerToken string
	BaseURL     string
}

func defaultTwitterConfig() TwitterConfig {
	return TwitterConfig{
		BearerToken: "",
		BaseURL:     "https://api.twitter.com/2",
	}
}

func (t *TwitterConfig) loadFromEnv() {
	loadEnvString("TWITTER_BEARER_TOKEN", &t.BearerToken)
	loadEnvString("TWITTER_BASE_URL", &t.BaseURL)
}

/* Telegram Configuration */

type TelegramConfig struct {
	AppID       int
	AppHash     string
	SessionFile string
}

func defaultTelegramConfig() TelegramConfig {
	return TelegramConfig{
		AppID:       0,
		AppHash:     "",
		SessionFile: "telegram.session",
	}
}

func (t *TelegramConfig) loadFromEnv() {
	loadEnvInt("TELEGRAM_API_ID", &t.AppID)
	loadEnvString("TELEGRAM_API_HASH", &t.AppHash)
	loadEnvString("TELEGRAM_SESSION_FILE", &t.SessionFile)
}

/* Media Storage Configuration */

// MediaConfig selects where downloaded telegram media lands: a local
// directory served by something else, or a GCS bucket.
type MediaConfig struct {
	Backend        string // "local" or "gcs"
	LocalDir       string
	BaseURL        string
	GCSProjectID   string
	GCSCredentials string
	GCSBucket      string
}

func defaultMediaConfig() MediaConfig {
	return MediaConfig{
		Backend:  "local",
		LocalDir: "media",
		BaseURL:  "",
	}
}

func (m *MediaConfig) loadFromEnv() {
	loadEnvString("MEDIA_BACKEND", &m.Backend)
	loadEnvString("MEDIA_LOCAL_DIR", &m.LocalDir)
	loadEnvString("MEDIA_BASE_URL", &m.BaseURL)
	loadEnvString("GCS_PROJECT_ID", &m.GCSProjectID)
	loadEnvString("GCS_CREDENTIALS_FILE", &m.GCSCredentials)
	loadEnvString("GCS_STORAGE_BUCKET", &m.GCSBucket)
}

/* Translation Configuration */

type TranslateConfig struct {
	Endpoint string
	APIKey   string
	CacheTTL time.Duration
}

func defaultTranslateConfig() TranslateConfig {
	return TranslateConfig{
		Endpoint: "",
		APIKey:   "",
		CacheTTL: 30 * 24 * time.Hour,
	}
}

func (t *TranslateConfig) loadFromEnv() {
	loadEnvString("TRANSLATE_ENDPOINT", &t.Endpoint)
	loadEnvString("TRANSLATE_API_KEY", &t.APIKey)
	if s := getEnv("TRANSLATE_CACHE_TTL", ""); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			t.CacheTTL = d
		}
	}
}

type Config struct {
	Listen    listenConfig
	Database  DatabaseConfig
	Nats      natsConfig
	Redis     redisConfig
	Refresh   RefreshConfig
	Twitter   TwitterConfig
	Telegram  TelegramConfig
	Media     MediaConfig
	Translate TranslateConfig
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.Database.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
	c.Refresh.loadFromEnv()
	c.Twitter.loadFromEnv()
	c.Telegram.loadFromEnv()
	c.Media.loadFromEnv()
	c.Translate.loadFromEnv()
}

func DefaultConfig() Config {
	return Config{
		Listen:    defaultListenConfig(),
		Database:  defaultDatabaseConfig(),
		Nats:      defaultNatsConfig(),
		Redis:     defaultRedisConfig(),
		Refresh:   defaultRefreshConfig(),
		Twitter:   defaultTwitterConfig(),
		Telegram:  defaultTelegramConfig(),
		Media:     defaultMediaConfig(),
		Translate: defaultTranslateConfig(),
	}
}

// NatsURL exposes the broker URL for the messaging package.
func (c Config) NatsURL() string { return c.Nats.URL() }

// NatsEnabled reports whether the broker should be wired at startup.
func (c Config) NatsEnabled() bool { return c.Nats.Enabled }

// NatsAuth returns broker credentials, both empty when unauthenticated.
func (c Config) NatsAuth() (string, string) { return c.Nats.Username, c.Nats.Password }

// RedisEnabled reports whether the cache should be wired at startup.
func (c Config) RedisEnabled() bool { return c.Redis.Enabled }

// RedisAddr returns the cache address as host:port.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) RedisPassword() string { return c.Redis.Password }

func (c Config) RedisDB() int { return c.Redis.DB }

// ListenAddr returns the HTTP bind address.
func (c Config) ListenAddr() string { return c.Listen.Addr() }

// SplitList splits a comma separated env value into trimmed entries.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
