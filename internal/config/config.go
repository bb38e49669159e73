package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Script-By-Lin-226/Auth/internal/models"
)

type Config struct {
	Port             string
	DatabaseURL      string
	SecretKey        string
	RefreshSecretKey string
	Algorithm        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	LoginRatePerMin  int
	KafkaAddress     string
	ESURL            string
	ESUser           string
	ESPassword       string
	LogLevel         string
}

// Load reads .env if present, then the environment. SECRET_KEY and
// DATABASE_URL are required; the rest have defaults or are optional.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		Port:             getEnvDefault("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SecretKey:        os.Getenv("SECRET_KEY"),
		RefreshSecretKey: os.Getenv("REFRESH_SECRET_KEY"),
		Algorithm:        getEnvDefault("ALGORITHM", "HS256"),
		AccessTTL:        time.Duration(getEnvIntDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
		RefreshTTL:       time.Duration(getEnvIntDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		LoginRatePerMin:  getEnvIntDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 5),
		KafkaAddress:     os.Getenv("KAFKA_ADDRESS"),
		ESURL:            os.Getenv("ES_URL"),
		ESUser:           os.Getenv("ES_USER"),
		ESPassword:       os.Getenv("ES_PASSWORD"),
		LogLevel:         getEnvDefault("LOG_LEVEL", "info"),
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing required env SECRET_KEY")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing required env DATABASE_URL")
	}

	return cfg, nil
}

func getEnvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// InitDB opens the postgres connection and migrates the schema.
func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
