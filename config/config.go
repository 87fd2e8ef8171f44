package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Challenge configuration
	ChallengeSecret string
	ChallengeTTL    time.Duration

	// QR payload configuration
	QRMaxAge             time.Duration
	AssetPrefixThreshold int

	// Ledger oracle configuration
	SolanaRPCURL   string
	OracleTimeout  time.Duration
	OracleCacheTTL time.Duration

	// Rate limiting
	GateRateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Challenge
		ChallengeSecret: getEnv("GATE_CHALLENGE_SECRET", "dev-only-secret"),
		ChallengeTTL:    getEnvAsDuration("GATE_CHALLENGE_TTL", "120s"),

		// QR
		QRMaxAge:             getEnvAsDuration("QR_MAX_AGE", "8760h"), // 1 year
		AssetPrefixThreshold: getEnvAsInt("ASSET_PREFIX_THRESHOLD", 16),

		// Ledger oracle
		SolanaRPCURL:   getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		OracleTimeout:  getEnvAsDuration("ORACLE_TIMEOUT", "10s"),
		OracleCacheTTL: getEnvAsDuration("ORACLE_CACHE_TTL", "30s"),

		// Rate limiting
		GateRateLimitPerMinute: getEnvAsInt("GATE_RATE_LIMIT_PER_MINUTE", 120),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
