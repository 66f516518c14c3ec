package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Elastic  ElasticsearchConfig
	Matcher  MatcherConfig
	Catalog  CatalogConfig
}

type ServerConfig struct {
	AppEnv   string
	HTTPPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers           []string
	ExtractionTopic   string
	NotificationTopic string
	GroupID           string
}

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

type MatcherConfig struct {
	// Threshold is the minimum similarity score to accept a catalog match.
	Threshold float64
	// MinSubstringLen gates the substring bonus; 0 applies it to any length.
	MinSubstringLen int
}

// CatalogConfig carries the allow-lists validated once at the input boundary.
type CatalogConfig struct {
	Categories []string
	Units      []string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			HTTPPort: getEnv("HTTP_PORT", ":8080"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "campops"),
			Password:        getEnv("POSTGRES_PASSWORD", "campops"),
			DBName:          getEnv("POSTGRES_DB", "campops_procurement"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ExtractionTopic:   getEnv("KAFKA_TOPIC_EXTRACTIONS", "receipts.extractions"),
			NotificationTopic: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications.email"),
			GroupID:           getEnv("KAFKA_GROUP_PROCUREMENT", "procurement"),
		},
		Elastic: ElasticsearchConfig{
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Matcher: MatcherConfig{
			Threshold:       getEnvFloat("MATCHER_THRESHOLD", 0.6),
			MinSubstringLen: getEnvInt("MATCHER_MIN_SUBSTRING_LEN", 0),
		},
		Catalog: CatalogConfig{
			Categories: getEnvSlice("CATALOG_CATEGORIES", []string{
				"Bakery", "Beverages", "Cleaning Supplies", "Condiments", "Dairy",
				"Dry Goods", "Frozen", "Packaged Snacks", "Paper & Plastic Goods",
				"Produce", "Protein", "Spices", "Other",
			}),
			Units: getEnvSlice("CATALOG_UNITS", []string{
				"Each", "Lb", "Oz", "Gallon", "Quart", "Pint", "Case", "Box", "Bag",
				"Dozen", "Bunch", "Head", "Jar", "Can", "Bottle", "Pack", "Roll",
				"Sheet", "Unit",
			}),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
