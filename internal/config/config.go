package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	NumWorkers      int
	DeliveryTimeout time.Duration
	RetryPollEvery  time.Duration
	RetryBatchSize  int
	InboundRateRPS  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	numWorkers := getEnvInt("NUM_WORKERS", 25)
	deliveryTimeout := getEnvInt("DELIVERY_TIMEOUT_SECONDS", 10)
	retryPoll := getEnvInt("RETRY_POLL_SECONDS", 5)
	retryBatch := getEnvInt("RETRY_BATCH_SIZE", 50)
	inboundRPS := getEnvInt("INBOUND_RATE_PER_SECOND", 20)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		NumWorkers:      numWorkers,
		DeliveryTimeout: time.Duration(deliveryTimeout) * time.Second,
		RetryPollEvery:  time.Duration(retryPoll) * time.Second,
		RetryBatchSize:  retryBatch,
		InboundRateRPS:  inboundRPS,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
