package config

import (
	"main/utils"
	"time"
)

type Config struct {
	Port       string
	SessionTTL time.Duration
	LogLevel   string
	Mongo      MongoConfig
	RedisURL   string
}

type MongoConfig struct {
	URI             string
	Database        string
	Collection      string
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
	OpTimeout       time.Duration
}

// Load assembles the runtime configuration from environment variables.
// RedisURL is optional; an empty value disables the advisory cache.
func Load() Config {
	return Config{
		Port:       utils.GetEnvAsString("PORT", "10000"),
		SessionTTL: utils.GetEnvAsDuration("SESSION_TTL", 45*time.Minute),
		LogLevel:   utils.GetEnvAsString("LOG_LEVEL", "info"),
		RedisURL:   utils.GetEnvAsString("REDIS_URL", ""),
		Mongo: MongoConfig{
			URI:             utils.GetEnvAsString("MONGO_URI", "mongodb://localhost:27017"),
			Database:        utils.GetEnvAsString("MONGO_DB", "licenselock"),
			Collection:      utils.GetEnvAsString("SESSIONS_COLLECTION", "licenses"),
			MaxPoolSize:     utils.GetEnvAsUint64("MONGO_MAX_POOL_SIZE", 100),
			MinPoolSize:     utils.GetEnvAsUint64("MONGO_MIN_POOL_SIZE", 10),
			MaxConnIdleTime: time.Duration(utils.GetEnvAsInt("MONGO_MAX_CONN_IDLE_TIME", 60)) * time.Second,
			OpTimeout:       utils.GetEnvAsDuration("MONGO_OP_TIMEOUT", 10*time.Second),
		},
	}
}
