package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   Server
	Redis    Redis
	Database Database
	Fetch    Fetch
	Proxy    Proxy
	Worker   Worker
	Dedup    Dedup
}

type Server struct {
	Port            int
	ShutdownTimeout time.Duration
}

type Redis struct {
	Addr         string
	Password     string
	DB           int
	QueueKey     string
	ResultStream string
}

type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
	Enabled  bool
}

type Fetch struct {
	Timeout    time.Duration
	MaxRetries int
}

type Proxy struct {
	Enabled bool
	File    string
}

type Worker struct {
	Concurrency   int
	MinProfit     float64
	MinSoldWindow int
	ShipEstimate  float64
	FeePct        float64
	FeeFixed      float64
	TaxPct        float64
}

type Dedup struct {
	TTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Port:            getEnvInt("PORT", 8085),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: Redis{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			QueueKey:     getEnv("QUEUE_KEY", "queue:price_check"),
			ResultStream: getEnv("RESULT_STREAM", "stream:flip_results"),
		},
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "flipscan"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			Enabled:  getEnvBool("DB_ENABLED", true),
		},
		Fetch: Fetch{
			Timeout:    getEnvDuration("FETCH_TIMEOUT", 12*time.Second),
			MaxRetries: getEnvInt("FETCH_MAX_RETRIES", 4),
		},
		Proxy: Proxy{
			Enabled: getEnvBool("USE_PROXIES", false),
			File:    getEnv("PROXY_FILE", "proxies.txt"),
		},
		Worker: Worker{
			Concurrency:   getEnvInt("QUEUE_CONCURRENCY", 5),
			MinProfit:     getEnvFloat("MIN_PROFIT_DOLLARS", 30),
			MinSoldWindow: getEnvInt("MIN_SOLD_LAST_30", 5),
			ShipEstimate:  getEnvFloat("SHIP_ESTIMATE_DEFAULT", 12),
			FeePct:        getEnvFloat("FEE_PCT", 0.13),
			FeeFixed:      getEnvFloat("FEE_FIXED", 0.30),
			TaxPct:        getEnvFloat("TAX_PCT", 0),
		},
		Dedup: Dedup{
			TTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 21600)) * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be at least 1")
	}

	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES cannot be negative")
	}

	if c.Dedup.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
