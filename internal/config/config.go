package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Kafka    KafkaConfig
	Engine   EngineConfig
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers    []string
	EventTopic string
	GroupID    string
}

// EngineConfig holds indicator engine tuning knobs
type EngineConfig struct {
	BatchSize int
	Workers   int

	// Hot-stock screening thresholds and bar retention
	HotStockMinChangePct   float64
	HotStockMinVolumeRatio float64
	BarRetentionDays       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "stockindicators"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:    []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			EventTopic: getEnv("KAFKA_EVENT_TOPIC", "market-events"),
			GroupID:    getEnv("KAFKA_GROUP_ID", "indicator-service"),
		},
		Engine: EngineConfig{
			BatchSize:              getEnvInt("ENGINE_BATCH_SIZE", 500),
			Workers:                getEnvInt("ENGINE_WORKERS", 4),
			HotStockMinChangePct:   getEnvFloat("HOT_STOCK_MIN_CHANGE_PCT", 5.0),
			HotStockMinVolumeRatio: getEnvFloat("HOT_STOCK_MIN_VOLUME_RATIO", 2.0),
			BarRetentionDays:       getEnvInt("BAR_RETENTION_DAYS", 7),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
