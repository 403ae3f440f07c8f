package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreScylla = "scylla"

	FeedLocal = "local"
	FeedKafka = "kafka"

	CursorMemory = "memory"
	CursorRedis  = "redis"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env            string
	HTTPAddr       string
	GRPCHealthAddr string
	LogLevel       string

	StoreDriver  string
	FeedDriver   string
	CursorDriver string

	MongoURI string
	MongoDB  string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaUsername    string
	ScyllaPassword    string
	ScyllaConsistency gocql.Consistency
	ScyllaTimeout     time.Duration
	ReplicationFactor int

	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3UseSSL     bool
	S3PresignTTL time.Duration

	OrderCurrency   string
	OrderAnnounce   []string
	RefreshDebounce time.Duration
	AuthTokens      []string
	IdempotencyTTL  time.Duration
	ListingFixtures string
	OutboxInterval  time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		GRPCHealthAddr:   getEnv("GRPC_HEALTH_ADDR", ""),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		FeedDriver:       strings.ToLower(getEnv("FEED_DRIVER", FeedLocal)),
		CursorDriver:     strings.ToLower(getEnv("CURSOR_DRIVER", CursorMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "campusmarket"),
		ScyllaHosts:      splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost")),
		ScyllaKeyspace:   strings.TrimSpace(getEnv("SCYLLA_KEYSPACE", "campusmarket")),
		ScyllaUsername:   strings.TrimSpace(os.Getenv("SCYLLA_USERNAME")),
		ScyllaPassword:   strings.TrimSpace(os.Getenv("SCYLLA_PASSWORD")),
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          parseIntWithDefault(strings.TrimSpace(os.Getenv("REDIS_DB")), 0),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:         getEnv("S3_BUCKET", "campusmarket-listings"),
		OrderCurrency:    strings.ToUpper(getEnv("ORDER_CURRENCY", "USD")),
		OrderAnnounce:    splitAndTrim(getEnv("ORDER_ANNOUNCE", "pending,confirmed,cancelled")),
		AuthTokens:       splitAndTrim(os.Getenv("AUTH_STATIC_TOKENS")),
		ListingFixtures:  os.Getenv("LISTINGS_FIXTURES"),
	}
	cfg.ReplicationFactor = parseIntWithDefault(strings.TrimSpace(os.Getenv("SCYLLA_REPLICATION_FACTOR")), 1)
	if cfg.ReplicationFactor < 1 {
		cfg.ReplicationFactor = 1
	}

	var err error
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaConsistency, err = parseConsistency(getEnv("SCYLLA_CONSISTENCY", "quorum")); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.S3PresignTTL, err = parseDurationEnv("S3_PRESIGN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshDebounce, err = parseDurationEnv("REFRESH_DEBOUNCE", 250*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxInterval, err = parseDurationEnv("OUTBOX_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.KafkaGroupID == "" {
		cfg.KafkaGroupID = "campusmarket-feed-" + hostname()
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	case StoreScylla:
		if c.ScyllaKeyspace == "" {
			return fmt.Errorf("SCYLLA_KEYSPACE is required")
		}
		if len(c.ScyllaHosts) == 0 {
			return fmt.Errorf("SCYLLA_HOSTS is required")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	switch c.FeedDriver {
	case FeedLocal:
	case FeedKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for FEED_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unsupported FEED_DRIVER: %s", c.FeedDriver)
	}
	switch c.CursorDriver {
	case CursorMemory, CursorRedis:
	default:
		return fmt.Errorf("unsupported CURSOR_DRIVER: %s", c.CursorDriver)
	}
	if len(c.OrderCurrency) != 3 {
		return fmt.Errorf("invalid ORDER_CURRENCY: %q", c.OrderCurrency)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum", "localquorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported SCYLLA_CONSISTENCY: %s", raw)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}
