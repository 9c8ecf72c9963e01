package config

import (
	"fmt"
	"strconv"
	"time"

	"holdings-server/internal/shared/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	ESI       ESIConfig
	Frontend  FrontendConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Holdings  HoldingsConfig
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port         string
	URL          string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig points at a copy of the static data export. Driver is
// either "postgres" or "sqlite"; an empty Driver disables the static store.
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	ClientID        string
	ClientSecret    string
	CallbackURL     string
	Scopes          []string
	AuthURL         string
	TokenURL        string
	RefreshToken    string
	JWTSecret       string
	SessionDuration time.Duration
	CookieSecure    bool
	CookieSameSite  string
}

type ESIConfig struct {
	BaseURL           string
	Datasource        string
	UserAgent         string
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64
	BurstSize         int
	CacheTTL          time.Duration
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

type HoldingsConfig struct {
	PolicyFile      string
	WatchPolicy     bool
	MaxConcurrent   int
	LoadTimeout     time.Duration
	LiveWriteWindow time.Duration
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	GlobalConfig = config
	return nil
}

func load() (*Config, error) {
	config := &Config{
		Server:    loadServerConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Auth:      loadAuthConfig(),
		ESI:       loadESIConfig(),
		Frontend:  loadFrontendConfig(),
		Logging:   loadLoggingConfig(),
		RateLimit: loadRateLimitConfig(),
		Holdings:  loadHoldingsConfig(),
	}

	return config, nil
}

func loadRedisConfig() RedisConfig {
	enabled := utils.GetEnv("REDIS_ENABLED", "false") == "true"
	redisURL := utils.GetEnv("REDIS_URL", "")

	db, _ := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))

	return RedisConfig{
		Enabled:  enabled,
		URL:      redisURL,
		Host:     utils.GetEnv("REDIS_HOST", "localhost"),
		Port:     utils.GetEnv("REDIS_PORT", "6379"),
		Password: utils.GetEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:         utils.GetEnv("SERVER_PORT", "8080"),
		URL:          utils.GetEnv("SERVER_URL", "http://localhost:8080"),
		Environment:  utils.GetEnv("ENVIRONMENT", "development"),
		ReadTimeout:  utils.GetEnvSeconds("SERVER_READ_TIMEOUT_SECONDS", 15*time.Second),
		WriteTimeout: utils.GetEnvSeconds("SERVER_WRITE_TIMEOUT_SECONDS", 15*time.Second),
		IdleTimeout:  utils.GetEnvSeconds("SERVER_IDLE_TIMEOUT_SECONDS", 60*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	connMaxLifetime, _ := strconv.Atoi(utils.GetEnv("DB_CONN_MAX_LIFETIME_MINUTES", "5"))

	return DatabaseConfig{
		Driver:          utils.GetEnv("SDE_DRIVER", ""),
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "sde"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		Path:            utils.GetEnv("SDE_SQLITE_PATH", "sde.sqlite"),
		MaxOpenConns:    utils.GetEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    utils.GetEnvInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: time.Duration(connMaxLifetime) * time.Minute,
	}
}

func loadAuthConfig() AuthConfig {
	serverURL := utils.GetEnv("SERVER_URL", "http://localhost:8080")
	sessionHours, _ := strconv.Atoi(utils.GetEnv("SESSION_DURATION_HOURS", "24"))

	environment := utils.GetEnv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"

	return AuthConfig{
		ClientID:     utils.GetEnv("EVE_CLIENT_ID", ""),
		ClientSecret: utils.GetEnv("EVE_CLIENT_SECRET", ""),
		CallbackURL:  serverURL + "/auth/eve/callback",
		Scopes: utils.GetEnvList("EVE_SCOPES", []string{
			"esi-assets.read_assets.v1",
			"esi-markets.read_character_orders.v1",
			"esi-universe.read_structures.v1",
		}),
		AuthURL:         utils.GetEnv("EVE_AUTH_URL", "https://login.eveonline.com/v2/oauth/authorize"),
		TokenURL:        utils.GetEnv("EVE_TOKEN_URL", "https://login.eveonline.com/v2/oauth/token"),
		RefreshToken:    utils.GetEnv("EVE_REFRESH_TOKEN", ""),
		JWTSecret:       utils.GetEnv("JWT_SECRET", ""),
		SessionDuration: time.Duration(sessionHours) * time.Hour,
		CookieSecure:    cookieSecure,
		CookieSameSite:  utils.GetEnv("COOKIE_SAME_SITE", "lax"),
	}
}

func loadESIConfig() ESIConfig {
	requestsPerSecond, _ := strconv.ParseFloat(utils.GetEnv("ESI_REQUESTS_PER_SECOND", "20"), 64)

	return ESIConfig{
		BaseURL:           utils.GetEnv("ESI_BASE_URL", "https://esi.evetech.net/latest"),
		Datasource:        utils.GetEnv("ESI_DATASOURCE", "tranquility"),
		UserAgent:         utils.GetEnv("ESI_USER_AGENT", "holdings-server"),
		Timeout:           utils.GetEnvSeconds("ESI_TIMEOUT_SECONDS", 30*time.Second),
		Retries:           utils.GetEnvInt("ESI_RETRIES", 2),
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         utils.GetEnvInt("ESI_BURST_SIZE", 40),
		CacheTTL:          utils.GetEnvSeconds("ESI_CACHE_TTL_SECONDS", time.Hour),
	}
}

func loadFrontendConfig() FrontendConfig {
	corsDebug := utils.GetEnv("CORS_DEBUG", "") == "true"

	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSDebug: corsDebug,
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	format := utils.GetEnv("LOG_FORMAT", "text")

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "debug"),
		Format:     format,
		JSONFormat: environment == "production" || format == "json",
	}
}

func loadRateLimitConfig() RateLimitConfig {
	enabled := utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
	requestsPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_REQUESTS_PER_SECOND", "10"), 64)
	burstSize, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_BURST_SIZE", "20"))

	return RateLimitConfig{
		Enabled:           enabled,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burstSize,
		TrustProxy:        utils.GetEnvBool("RATE_LIMIT_TRUST_PROXY", false),
	}
}

func loadHoldingsConfig() HoldingsConfig {
	return HoldingsConfig{
		PolicyFile:      utils.GetEnv("HOLDINGS_POLICY_FILE", ""),
		WatchPolicy:     utils.GetEnvBool("HOLDINGS_WATCH_POLICY", true),
		MaxConcurrent:   utils.GetEnvInt("HOLDINGS_MAX_CONCURRENT_FETCHES", 16),
		LoadTimeout:     utils.GetEnvSeconds("HOLDINGS_LOAD_TIMEOUT_SECONDS", 5*time.Minute),
		LiveWriteWindow: utils.GetEnvSeconds("HOLDINGS_LIVE_WRITE_TIMEOUT_SECONDS", 5*time.Second),
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Server.URL == "" {
		return fmt.Errorf("SERVER_URL is required")
	}

	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("SDE_DRIVER must be postgres, sqlite or empty, got %q", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.ESI.BaseURL == "" {
		return fmt.Errorf("ESI_BASE_URL is required")
	}

	if c.ESI.RequestsPerSecond <= 0 {
		return fmt.Errorf("ESI_REQUESTS_PER_SECOND must be positive")
	}

	if c.SSOConfigured() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters when EVE SSO is configured")
	}

	if c.Holdings.MaxConcurrent < 0 {
		return fmt.Errorf("HOLDINGS_MAX_CONCURRENT_FETCHES must not be negative")
	}

	return nil
}

func (c *Config) SSOConfigured() bool {
	return c.Auth.ClientID != "" && c.Auth.ClientSecret != ""
}

func (c *Config) StaticDataConfigured() bool {
	return c.Database.Driver != ""
}

// ConnectionString returns the driver specific data source name
func (c *Config) ConnectionString() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
