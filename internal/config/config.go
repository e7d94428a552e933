package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Auth      AuthConfig
	Google    GoogleConfig
	YouTube   YouTubeConfig
	Quota     QuotaConfig
	Inference InferenceConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// GoogleConfig holds the OAuth client used to refresh YouTube credentials
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// YouTubeConfig holds YouTube Data API access configuration
type YouTubeConfig struct {
	BaseURL            string
	VideosMaxResults   int
	CommentsMaxResults int
	// RequestDelayMicros is slept between two consecutive page requests.
	RequestDelayMicros  int
	MaxRequests         int
	CacheTTLHours       int
	Timeout             time.Duration
	ArtifactDir         string
	ForceRefreshPerHour int
}

// RequestDelay returns the inter-page delay
func (c YouTubeConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMicros) * time.Microsecond
}

// CacheTTL returns the lifetime of a cached video set
func (c YouTubeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// QuotaConfig holds daily quota configuration
type QuotaConfig struct {
	DailyVideoAnalysisLimit     int
	DailyCommentModerationLimit int
	RetentionDays               int
	CleanupInterval             time.Duration
	// Timezone decides which calendar day "today" is.
	Timezone string
	// Store is either "postgres" or "sqlite".
	Store      string
	SQLitePath string
}

// Location resolves the configured timezone
func (c QuotaConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid quota timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// InferenceConfig holds the judol classification service configuration
type InferenceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// MetricsConfig holds the standalone metrics server configuration
type MetricsConfig struct {
	Port int
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "330s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.rateLimitRPS", 5)
	v.SetDefault("server.rateLimitBurst", 10)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "lawan_judol")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "lawan-judol")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "change-me")
	v.SetDefault("auth.tokenTTL", "24h")

	// Google OAuth defaults
	v.SetDefault("google.tokenURL", "https://oauth2.googleapis.com/token")
	v.SetDefault("google.timeout", "60s")

	// YouTube defaults
	v.SetDefault("youtube.baseURL", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.videosMaxResults", 50)
	v.SetDefault("youtube.commentsMaxResults", 100)
	v.SetDefault("youtube.requestDelayMicros", 100000) // 100ms
	v.SetDefault("youtube.maxRequests", 20)
	v.SetDefault("youtube.cacheTTLHours", 24)
	v.SetDefault("youtube.timeout", "60s")
	v.SetDefault("youtube.artifactDir", "storage/comments")
	v.SetDefault("youtube.forceRefreshPerHour", 10)

	// Quota defaults
	v.SetDefault("quota.dailyVideoAnalysisLimit", 5)
	v.SetDefault("quota.dailyCommentModerationLimit", 40)
	v.SetDefault("quota.retentionDays", 30)
	v.SetDefault("quota.cleanupInterval", "24h")
	v.SetDefault("quota.timezone", "Asia/Jakarta")
	v.SetDefault("quota.store", "postgres")
	v.SetDefault("quota.sqlitePath", "storage/quota.db")

	// Inference defaults
	v.SetDefault("inference.baseURL", "http://localhost:5000")
	v.SetDefault("inference.timeout", "300s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "lawan-judol")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Metrics defaults
	v.SetDefault("metrics.port", 9091)
}
