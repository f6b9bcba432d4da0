package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr     string
	Gate     Gate
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	AP       APConfig
	Platform PlatformConfig
	Log      LogConfig
	Tracing  TracingConfig
}

// Gate holds the owner gate identity and the control lifecycle knobs.
type Gate struct {
	OwnerID             string
	OwnerCountry        string
	PendingTimeout      time.Duration
	SweepInterval       time.Duration
	DispatchConcurrency int
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	GateCacheTTL time.Duration
	DedupeTTL    time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	DeadLetterTopic   string
	ConsumerGroup     string
	MaxAttempts       int
	RetryBackoff      time.Duration
}

// APConfig addresses the eDelivery access point web service.
type APConfig struct {
	URL             string
	Username        string
	Password        string
	ServiceType     string
	ServiceValue    string
	Timeout         time.Duration
	RateLimit       float64 // submissions per second
	RateBurst       int
	BreakerCooldown time.Duration
}

// PlatformConfig addresses the local platform. An empty IDs list accepts any
// platform id.
type PlatformConfig struct {
	URL     string
	IDs     []string
	Timeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// TracingConfig enables OTLP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
	SampleRatio float64
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr: envString("EFTI_GATE_ADDR", ":8080"),
		Gate: Gate{
			OwnerID:             envString("EFTI_OWNER_GATE_ID", "borduria"),
			OwnerCountry:        strings.ToUpper(envString("EFTI_OWNER_COUNTRY", "BO")),
			PendingTimeout:      envDuration("EFTI_PENDING_TIMEOUT", 60*time.Second),
			SweepInterval:       envDuration("EFTI_SWEEP_INTERVAL", 15*time.Second),
			DispatchConcurrency: envInt("EFTI_DISPATCH_CONCURRENCY", 4),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			GateCacheTTL: envDuration("REDIS_GATE_CACHE_TTL", 5*time.Minute),
			DedupeTTL:    envDuration("REDIS_DEDUPE_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			NotificationTopic: envString("KAFKA_NOTIFICATION_TOPIC", "efti.ap.notifications"),
			DeadLetterTopic:   envString("KAFKA_DEAD_LETTER_TOPIC", "efti.ap.notifications.dlq"),
			ConsumerGroup:     envString("KAFKA_CONSUMER_GROUP", "efti-gate"),
			MaxAttempts:       envInt("KAFKA_MAX_ATTEMPTS", 3),
			RetryBackoff:      envDuration("KAFKA_RETRY_BACKOFF", 200*time.Millisecond),
		},
		AP: APConfig{
			URL:             os.Getenv("AP_URL"),
			Username:        os.Getenv("AP_USERNAME"),
			Password:        os.Getenv("AP_PASSWORD"),
			ServiceType:     envString("AP_SERVICE_TYPE", "eDelivery"),
			ServiceValue:    envString("AP_SERVICE_VALUE", "eFTI"),
			Timeout:         envDuration("AP_TIMEOUT", 10*time.Second),
			RateLimit:       envFloat("AP_RATE_LIMIT", 20),
			RateBurst:       envInt("AP_RATE_BURST", 10),
			BreakerCooldown: envDuration("AP_BREAKER_COOLDOWN", 30*time.Second),
		},
		Platform: PlatformConfig{
			URL:     os.Getenv("PLATFORM_URL"),
			IDs:     envList("PLATFORM_IDS"),
			Timeout: envDuration("PLATFORM_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: envString("OTEL_SERVICE_NAME", "efti-gate"),
			Insecure:    envString("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
			SampleRatio: min(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1), 1),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
