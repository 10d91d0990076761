package config

import (
	"os"
	"strconv"
	"time"
)

type (
	Postgres struct {
		User   string
		Pass   string
		Host   string
		Port   string
		DBName string
	}

	Redis struct {
		Addr string
		DB   int
	}

	ServerConfig struct {
		Port   string
		Host   string
		LogLvl string
	}

	Catalog struct {
		BaseURL string
	}

	Chain struct {
		HorizonURL string
	}

	CacheTuning struct {
		InitialTokenCount    int
		TokenUpdateBatchSize int
		BatchUpdateDelay     time.Duration
		DerivationTimeout    time.Duration
		UpdateInterval       time.Duration
	}

	Config struct {
		Postgres Postgres
		Redis    Redis
		Server   ServerConfig
		Catalog  Catalog
		Chain    Chain
		Cache    CacheTuning
	}
)

func LoadConfig() *Config {
	cfg := &Config{}

	cfg.Postgres.User = getEnv("DB_USER", "postgres")
	cfg.Postgres.Pass = getEnv("DB_PASS", "postgres")
	cfg.Postgres.Host = getEnv("DB_HOST", "localhost")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.DBName = getEnv("DB_NAME", "pricecache")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.DB, _ = strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg.Server.LogLvl = getEnv("LOG_LVL", "dev")
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.Host = getEnv("HOST", "0.0.0.0")

	cfg.Catalog.BaseURL = getEnv("CATALOG_BASE_URL", "https://horizon.stellar.org")
	cfg.Chain.HorizonURL = getEnv("HORIZON_URL", "https://horizon.stellar.org")

	cfg.Cache.InitialTokenCount = getEnvInt("INITIAL_TOKEN_COUNT", 1000)
	cfg.Cache.TokenUpdateBatchSize = getEnvInt("TOKEN_UPDATE_BATCH_SIZE", 150)
	cfg.Cache.BatchUpdateDelay = getEnvDuration("BATCH_UPDATE_DELAY_MS", 5000)
	cfg.Cache.DerivationTimeout = getEnvDuration("PRICE_CALCULATION_TIMEOUT_MS", 10000)
	cfg.Cache.UpdateInterval = getEnvDuration("UPDATE_INTERVAL_MS", 60000)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(defaultMs) * time.Millisecond
}
