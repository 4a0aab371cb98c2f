package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvDebug         = "AURA_DEBUG"
	EnvInferenceURL  = "AURA_INFERENCE_URL"
	EnvRedisAddr     = "AURA_REDIS_ADDR"
	EnvRedisPassword = "AURA_REDIS_PASSWORD"
	EnvKafkaBrokers  = "AURA_KAFKA_BROKERS"
	EnvKafkaTopic    = "AURA_KAFKA_TOPIC"
	EnvS3Bucket      = "AURA_S3_BUCKET"
	EnvS3Prefix      = "AURA_S3_PREFIX"
	EnvS3Region      = "AURA_S3_REGION"
	EnvS3Endpoint    = "AURA_S3_ENDPOINT"
)

// LoadDotEnv reads a .env file from the working directory if there is one.
// A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays non-empty environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDebug)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	setString(&cfg.Inference.UpstreamURL, EnvInferenceURL)
	setString(&cfg.Inference.RedisAddr, EnvRedisAddr)
	setString(&cfg.Inference.RedisPassword, EnvRedisPassword)
	if v := strings.TrimSpace(os.Getenv(EnvKafkaBrokers)); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Sinks.Kafka.Brokers = brokers
	}
	setString(&cfg.Sinks.Kafka.Topic, EnvKafkaTopic)
	setString(&cfg.Sinks.S3.Bucket, EnvS3Bucket)
	setString(&cfg.Sinks.S3.Prefix, EnvS3Prefix)
	setString(&cfg.Sinks.S3.Region, EnvS3Region)
	setString(&cfg.Sinks.S3.Endpoint, EnvS3Endpoint)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
