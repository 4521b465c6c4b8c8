// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Warmup     WarmupConfig     `json:"warmup"`
	Pool       PoolConfig       `json:"pool"`
	Queue      QueueConfig      `json:"queue"`
	Services   ServicesConfig   `json:"services"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnablePprof       bool          `json:"enable_pprof"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled    bool   `json:"tls_enabled"`
	TLSCertFile   string `json:"tls_cert_file"`
	TLSKeyFile    string `json:"tls_key_file"`
	TLSMinVersion string `json:"tls_min_version"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per minute
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy           string `json:"csp_policy"`
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	ReferrerPolicy      string `json:"referrer_policy"`

	// Operator API keys exchangeable for access tokens
	OperatorAPIKeys []string `json:"operator_api_keys"`

	// Master key for mailbox credential encryption at rest
	CredentialMasterKey string `json:"credential_master_key"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

// RampProfileConfig is one named ramp parameter bundle. The thresholds are
// empirically chosen operating points and stay configurable on purpose.
type RampProfileConfig struct {
	Name                 string  `json:"name"`
	StartingVolume       int     `json:"starting_volume"`
	DailyIncrement       int     `json:"daily_increment"`
	MaxDailyVolume       int     `json:"max_daily_volume"`
	WeekendReduction     float64 `json:"weekend_reduction"`      // fraction, e.g. 0.4
	HealthPauseThreshold float64 `json:"health_pause_threshold"` // overall reputation score
	BounceRatePause      float64 `json:"bounce_rate_pause"`      // fraction over the metrics window
	SpamRatePause        float64 `json:"spam_rate_pause"`        // fraction over the metrics window
	MinEngagementRate    float64 `json:"min_engagement_rate"`    // fraction over the metrics window
}

type WarmupConfig struct {
	DefaultProfile string            `json:"default_profile"`
	Conservative   RampProfileConfig `json:"conservative"`
	Moderate       RampProfileConfig `json:"moderate"`
	Aggressive     RampProfileConfig `json:"aggressive"`

	// Schedule horizon and daily task shaping
	HorizonDays       int           `json:"horizon_days"`
	SendJitter        time.Duration `json:"send_jitter"`
	ReceiveDelayMin   time.Duration `json:"receive_delay_min"`
	ReceiveDelayMax   time.Duration `json:"receive_delay_max"`
	EngageDelayMin    time.Duration `json:"engage_delay_min"`
	EngageDelayMax    time.Duration `json:"engage_delay_max"`
	EngageProbability float64       `json:"engage_probability"`
	EngageReplyRatio  float64       `json:"engage_reply_ratio"` // share of engagements that reply instead of open

	// Pause gate inputs and maintenance cadence
	MetricsWindowDays   int           `json:"metrics_window_days"`
	EngagementGateFloor int           `json:"engagement_gate_floor"` // min delivered(window) before the engagement check applies
	MaintenanceHourUTC  int           `json:"maintenance_hour_utc"`
	MaintenanceInterval time.Duration `json:"maintenance_interval"`
	Holidays            []string      `json:"holidays"` // YYYY-MM-DD, UTC
}

type PoolConfig struct {
	MinPartnerHealth      float64       `json:"min_partner_health"`
	BroadenedMinHealth    float64       `json:"broadened_min_health"`
	SameESPRatio          float64       `json:"same_esp_ratio"`
	CooldownDuration      time.Duration `json:"cooldown_duration"`
	PruneSuspendedAfter   time.Duration `json:"prune_suspended_after"`
	DefaultDailySendLimit int           `json:"default_daily_send_limit"`
	DefaultDailyRecvLimit int           `json:"default_daily_recv_limit"`
}

type QueueConfig struct {
	Prefix       string        `json:"prefix"`
	PollInterval time.Duration `json:"poll_interval"`
	ClaimBatch   int           `json:"claim_batch"`
	RetryBackoff time.Duration `json:"retry_backoff"`

	// Per-stage worker concurrency. Send/receive are I/O bound; engage is
	// limited by browser-simulation cost; rescue acts against a live mailbox
	// and must stay serialized.
	SendConcurrency       int `json:"send_concurrency"`
	ReceiveConcurrency    int `json:"receive_concurrency"`
	EngageConcurrency     int `json:"engage_concurrency"`
	RescueConcurrency     int `json:"rescue_concurrency"`
	ReputationConcurrency int `json:"reputation_concurrency"`

	// Per-task-type attempt budgets
	SendMaxAttempts       int `json:"send_max_attempts"`
	ReceiveMaxAttempts    int `json:"receive_max_attempts"`
	EngageMaxAttempts     int `json:"engage_max_attempts"`
	RescueMaxAttempts     int `json:"rescue_max_attempts"`
	ReputationMaxAttempts int `json:"reputation_max_attempts"`
}

type ServicesConfig struct {
	// Mail delivery gateway
	MailProvider string        `json:"mail_provider"` // gateway, mock
	MailURL      string        `json:"mail_url"`
	MailAPIKey   string        `json:"mail_api_key"`
	MailTimeout  time.Duration `json:"mail_timeout"`

	// Message content generation
	ContentProvider string        `json:"content_provider"` // template, ai
	ContentURL      string        `json:"content_url"`
	ContentAPIKey   string        `json:"content_api_key"`
	ContentTimeout  time.Duration `json:"content_timeout"`

	// Headless engagement simulation
	EngagementProvider string        `json:"engagement_provider"` // gateway, mock
	EngagementURL      string        `json:"engagement_url"`
	EngagementAPIKey   string        `json:"engagement_api_key"`
	EngagementTimeout  time.Duration `json:"engagement_timeout"`

	// Third-party reputation polling
	ReputationProvider string        `json:"reputation_provider"` // gateway, mock
	ReputationURL      string        `json:"reputation_url"`
	ReputationAPIKey   string        `json:"reputation_api_key"`
	ReputationTimeout  time.Duration `json:"reputation_timeout"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled     bool   `json:"enabled"`
	Path        string `json:"path"`
	EnablePprof bool   `json:"enable_pprof"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"` // redis, memory
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	APIDomain   string `json:"api_domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// Profile returns the ramp profile with the given name, falling back to the
// configured default profile when the name is unknown.
func (c *WarmupConfig) Profile(name string) RampProfileConfig {
	switch name {
	case "conservative":
		return c.Conservative
	case "moderate":
		return c.Moderate
	case "aggressive":
		return c.Aggressive
	default:
		if c.DefaultProfile != "" && c.DefaultProfile != name {
			return c.Profile(c.DefaultProfile)
		}
		return c.Moderate
	}
}

// HolidayDates parses the configured holiday list, skipping malformed entries
func (c *WarmupConfig) HolidayDates() map[string]bool {
	out := make(map[string]bool, len(c.Holidays))
	for _, h := range c.Holidays {
		if _, err := time.Parse("2006-01-02", h); err == nil {
			out[h] = true
		}
	}
	return out
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "inboxglow"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnablePprof:       getEnvBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:          getEnvBool("TLS_ENABLED", true),
			TLSCertFile:         getEnvString("TLS_CERT_FILE", "/etc/ssl/certs/inboxglow.crt"),
			TLSKeyFile:          getEnvString("TLS_KEY_FILE", "/etc/ssl/private/inboxglow.key"),
			TLSMinVersion:       getEnvString("TLS_MIN_VERSION", "1.3"),
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://inboxglow.io", "https://app.inboxglow.io"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-API-Key"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:       getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:           getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			OperatorAPIKeys:     getEnvStringSlice("OPERATOR_API_KEYS", []string{}),
			CredentialMasterKey: getEnvString("CREDENTIAL_MASTER_KEY", ""),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "inboxglow"),
			Audience:       getEnvString("JWT_AUDIENCE", "inboxglow-api"),
		},
		Warmup: WarmupConfig{
			DefaultProfile: getEnvString("WARMUP_DEFAULT_PROFILE", "moderate"),
			Conservative: RampProfileConfig{
				Name:                 "conservative",
				StartingVolume:       getEnvInt("WARMUP_CONSERVATIVE_START", 2),
				DailyIncrement:       getEnvInt("WARMUP_CONSERVATIVE_INCREMENT", 1),
				MaxDailyVolume:       getEnvInt("WARMUP_CONSERVATIVE_MAX", 20),
				WeekendReduction:     getEnvFloat("WARMUP_CONSERVATIVE_WEEKEND_REDUCTION", 0.5),
				HealthPauseThreshold: getEnvFloat("WARMUP_CONSERVATIVE_HEALTH_PAUSE", 70),
				BounceRatePause:      getEnvFloat("WARMUP_CONSERVATIVE_BOUNCE_PAUSE", 0.03),
				SpamRatePause:        getEnvFloat("WARMUP_CONSERVATIVE_SPAM_PAUSE", 0.01),
				MinEngagementRate:    getEnvFloat("WARMUP_CONSERVATIVE_MIN_ENGAGEMENT", 0.15),
			},
			Moderate: RampProfileConfig{
				Name:                 "moderate",
				StartingVolume:       getEnvInt("WARMUP_MODERATE_START", 5),
				DailyIncrement:       getEnvInt("WARMUP_MODERATE_INCREMENT", 2),
				MaxDailyVolume:       getEnvInt("WARMUP_MODERATE_MAX", 50),
				WeekendReduction:     getEnvFloat("WARMUP_MODERATE_WEEKEND_REDUCTION", 0.4),
				HealthPauseThreshold: getEnvFloat("WARMUP_MODERATE_HEALTH_PAUSE", 65),
				BounceRatePause:      getEnvFloat("WARMUP_MODERATE_BOUNCE_PAUSE", 0.05),
				SpamRatePause:        getEnvFloat("WARMUP_MODERATE_SPAM_PAUSE", 0.02),
				MinEngagementRate:    getEnvFloat("WARMUP_MODERATE_MIN_ENGAGEMENT", 0.10),
			},
			Aggressive: RampProfileConfig{
				Name:                 "aggressive",
				StartingVolume:       getEnvInt("WARMUP_AGGRESSIVE_START", 10),
				DailyIncrement:       getEnvInt("WARMUP_AGGRESSIVE_INCREMENT", 5),
				MaxDailyVolume:       getEnvInt("WARMUP_AGGRESSIVE_MAX", 100),
				WeekendReduction:     getEnvFloat("WARMUP_AGGRESSIVE_WEEKEND_REDUCTION", 0.25),
				HealthPauseThreshold: getEnvFloat("WARMUP_AGGRESSIVE_HEALTH_PAUSE", 60),
				BounceRatePause:      getEnvFloat("WARMUP_AGGRESSIVE_BOUNCE_PAUSE", 0.07),
				SpamRatePause:        getEnvFloat("WARMUP_AGGRESSIVE_SPAM_PAUSE", 0.03),
				MinEngagementRate:    getEnvFloat("WARMUP_AGGRESSIVE_MIN_ENGAGEMENT", 0.05),
			},
			HorizonDays:         getEnvInt("WARMUP_HORIZON_DAYS", 30),
			SendJitter:          getEnvDuration("WARMUP_SEND_JITTER", 30*time.Minute),
			ReceiveDelayMin:     getEnvDuration("WARMUP_RECEIVE_DELAY_MIN", 30*time.Minute),
			ReceiveDelayMax:     getEnvDuration("WARMUP_RECEIVE_DELAY_MAX", 90*time.Minute),
			EngageDelayMin:      getEnvDuration("WARMUP_ENGAGE_DELAY_MIN", 5*time.Minute),
			EngageDelayMax:      getEnvDuration("WARMUP_ENGAGE_DELAY_MAX", 35*time.Minute),
			EngageProbability:   getEnvFloat("WARMUP_ENGAGE_PROBABILITY", 0.7),
			EngageReplyRatio:    getEnvFloat("WARMUP_ENGAGE_REPLY_RATIO", 0.3),
			MetricsWindowDays:   getEnvInt("WARMUP_METRICS_WINDOW_DAYS", 7),
			EngagementGateFloor: getEnvInt("WARMUP_ENGAGEMENT_GATE_FLOOR", 50),
			MaintenanceHourUTC:  getEnvInt("WARMUP_MAINTENANCE_HOUR_UTC", 2),
			MaintenanceInterval: getEnvDuration("WARMUP_MAINTENANCE_INTERVAL", 10*time.Minute),
			Holidays:            getEnvStringSlice("WARMUP_HOLIDAYS", []string{}),
		},
		Pool: PoolConfig{
			MinPartnerHealth:      getEnvFloat("POOL_MIN_PARTNER_HEALTH", 70),
			BroadenedMinHealth:    getEnvFloat("POOL_BROADENED_MIN_HEALTH", 50),
			SameESPRatio:          getEnvFloat("POOL_SAME_ESP_RATIO", 0.7),
			CooldownDuration:      getEnvDuration("POOL_COOLDOWN_DURATION", 24*time.Hour),
			PruneSuspendedAfter:   getEnvDuration("POOL_PRUNE_SUSPENDED_AFTER", 7*24*time.Hour),
			DefaultDailySendLimit: getEnvInt("POOL_DEFAULT_DAILY_SEND_LIMIT", 50),
			DefaultDailyRecvLimit: getEnvInt("POOL_DEFAULT_DAILY_RECV_LIMIT", 50),
		},
		Queue: QueueConfig{
			Prefix:                getEnvString("QUEUE_PREFIX", "inboxglow:queue:"),
			PollInterval:          getEnvDuration("QUEUE_POLL_INTERVAL", 5*time.Second),
			ClaimBatch:            getEnvInt("QUEUE_CLAIM_BATCH", 32),
			RetryBackoff:          getEnvDuration("QUEUE_RETRY_BACKOFF", 2*time.Minute),
			SendConcurrency:       getEnvInt("QUEUE_SEND_CONCURRENCY", 8),
			ReceiveConcurrency:    getEnvInt("QUEUE_RECEIVE_CONCURRENCY", 8),
			EngageConcurrency:     getEnvInt("QUEUE_ENGAGE_CONCURRENCY", 2),
			RescueConcurrency:     getEnvInt("QUEUE_RESCUE_CONCURRENCY", 1),
			ReputationConcurrency: getEnvInt("QUEUE_REPUTATION_CONCURRENCY", 2),
			SendMaxAttempts:       getEnvInt("QUEUE_SEND_MAX_ATTEMPTS", 3),
			ReceiveMaxAttempts:    getEnvInt("QUEUE_RECEIVE_MAX_ATTEMPTS", 3),
			EngageMaxAttempts:     getEnvInt("QUEUE_ENGAGE_MAX_ATTEMPTS", 1),
			RescueMaxAttempts:     getEnvInt("QUEUE_RESCUE_MAX_ATTEMPTS", 1),
			ReputationMaxAttempts: getEnvInt("QUEUE_REPUTATION_MAX_ATTEMPTS", 1),
		},
		Services: ServicesConfig{
			MailProvider:       getEnvString("MAIL_PROVIDER", "mock"),
			MailURL:            getEnvString("MAIL_URL", ""),
			MailAPIKey:         getEnvString("MAIL_API_KEY", ""),
			MailTimeout:        getEnvDuration("MAIL_TIMEOUT", 30*time.Second),
			ContentProvider:    getEnvString("CONTENT_PROVIDER", "template"),
			ContentURL:         getEnvString("CONTENT_URL", ""),
			ContentAPIKey:      getEnvString("CONTENT_API_KEY", ""),
			ContentTimeout:     getEnvDuration("CONTENT_TIMEOUT", 20*time.Second),
			EngagementProvider: getEnvString("ENGAGEMENT_PROVIDER", "mock"),
			EngagementURL:      getEnvString("ENGAGEMENT_URL", ""),
			EngagementAPIKey:   getEnvString("ENGAGEMENT_API_KEY", ""),
			EngagementTimeout:  getEnvDuration("ENGAGEMENT_TIMEOUT", 60*time.Second),
			ReputationProvider: getEnvString("REPUTATION_PROVIDER", "mock"),
			ReputationURL:      getEnvString("REPUTATION_URL", ""),
			ReputationAPIKey:   getEnvString("REPUTATION_API_KEY", ""),
			ReputationTimeout:  getEnvDuration("REPUTATION_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "both"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/inboxglow/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled:     getEnvBool("METRICS_ENABLED", true),
			Path:        getEnvString("METRICS_PATH", "/metrics"),
			EnablePprof: getEnvBool("METRICS_ENABLE_PPROF", false),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			Provider:        getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "inboxglow:"),
			DefaultTTL:      getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "inboxglow.io"),
			APIDomain:   getEnvString("API_DOMAIN", "api.inboxglow.io"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Use standard library strings.Split and strings.TrimSpace
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate JWT configuration
	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.CredentialMasterKey == "" {
		errors = append(errors, "CREDENTIAL_MASTER_KEY is required")
	}
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Validate warmup profiles
	for _, p := range []RampProfileConfig{cfg.Warmup.Conservative, cfg.Warmup.Moderate, cfg.Warmup.Aggressive} {
		if p.StartingVolume <= 0 {
			errors = append(errors, fmt.Sprintf("warmup profile %q: starting volume must be positive", p.Name))
		}
		if p.DailyIncrement < 0 {
			errors = append(errors, fmt.Sprintf("warmup profile %q: daily increment must not be negative", p.Name))
		}
		if p.MaxDailyVolume < p.StartingVolume {
			errors = append(errors, fmt.Sprintf("warmup profile %q: max daily volume must be >= starting volume", p.Name))
		}
		if p.WeekendReduction < 0 || p.WeekendReduction >= 1 {
			errors = append(errors, fmt.Sprintf("warmup profile %q: weekend reduction must be in [0,1)", p.Name))
		}
	}
	if cfg.Warmup.EngageProbability < 0 || cfg.Warmup.EngageProbability > 1 {
		errors = append(errors, "WARMUP_ENGAGE_PROBABILITY must be in [0,1]")
	}
	if cfg.Warmup.EngageReplyRatio < 0 || cfg.Warmup.EngageReplyRatio > 1 {
		errors = append(errors, "WARMUP_ENGAGE_REPLY_RATIO must be in [0,1]")
	}
	if cfg.Warmup.ReceiveDelayMax < cfg.Warmup.ReceiveDelayMin {
		errors = append(errors, "WARMUP_RECEIVE_DELAY_MAX must be >= WARMUP_RECEIVE_DELAY_MIN")
	}
	if cfg.Warmup.EngageDelayMax < cfg.Warmup.EngageDelayMin {
		errors = append(errors, "WARMUP_ENGAGE_DELAY_MAX must be >= WARMUP_ENGAGE_DELAY_MIN")
	}
	if cfg.Warmup.HorizonDays <= 0 {
		errors = append(errors, "WARMUP_HORIZON_DAYS must be positive")
	}

	// Validate pool configuration
	if cfg.Pool.SameESPRatio < 0 || cfg.Pool.SameESPRatio > 1 {
		errors = append(errors, "POOL_SAME_ESP_RATIO must be in [0,1]")
	}
	if cfg.Pool.BroadenedMinHealth > cfg.Pool.MinPartnerHealth {
		errors = append(errors, "POOL_BROADENED_MIN_HEALTH must not exceed POOL_MIN_PARTNER_HEALTH")
	}

	// Validate queue configuration
	if cfg.Queue.RescueConcurrency != 1 {
		errors = append(errors, "QUEUE_RESCUE_CONCURRENCY must be 1 (rescue actions are serialized)")
	}
	for key, v := range map[string]int{
		"QUEUE_SEND_CONCURRENCY":       cfg.Queue.SendConcurrency,
		"QUEUE_RECEIVE_CONCURRENCY":    cfg.Queue.ReceiveConcurrency,
		"QUEUE_ENGAGE_CONCURRENCY":     cfg.Queue.EngageConcurrency,
		"QUEUE_REPUTATION_CONCURRENCY": cfg.Queue.ReputationConcurrency,
	} {
		if v <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive", key))
		}
	}

	// Validate external service gateways
	if cfg.Services.MailProvider == "gateway" && cfg.Services.MailURL == "" {
		errors = append(errors, "MAIL_URL is required for the gateway mail provider")
	}
	if cfg.Services.ContentProvider == "ai" && cfg.Services.ContentURL == "" {
		errors = append(errors, "CONTENT_URL is required for the ai content provider")
	}
	if cfg.Services.EngagementProvider == "gateway" && cfg.Services.EngagementURL == "" {
		errors = append(errors, "ENGAGEMENT_URL is required for the gateway engagement provider")
	}
	if cfg.Services.ReputationProvider == "gateway" && cfg.Services.ReputationURL == "" {
		errors = append(errors, "REPUTATION_URL is required for the gateway reputation provider")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
