// Package config loads settings through viper from a .env file and the
// environment, with defaults for local development.
package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port          string
	Env           string
	StoreDriver   string
	JWTSecret     string
	SwaggerHost   string
	ShutdownGrace time.Duration
}

type StreamConfig struct {
	QueueSize    int
	Heartbeat    time.Duration
	RedisChannel string
}

type GatewayConfig struct {
	BaseURL       string
	WebhookSecret string
}

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

var envBindings = map[string]string{
	"server.port":            "PORT",
	"app.env":                "APP_ENV",
	"store.driver":           "STORE_DRIVER",
	"swagger.host":           "SWAGGER_HOST",
	"database.host":          "DATABASE_HOST",
	"database.port":          "DATABASE_PORT",
	"database.user":          "DATABASE_USER",
	"database.password":      "DATABASE_PASSWORD",
	"database.name":          "DATABASE_NAME",
	"database.ssl_mode":      "DATABASE_SSL_MODE",
	"redis.host":             "REDIS_HOST",
	"redis.port":             "REDIS_PORT",
	"redis.password":         "REDIS_PASSWORD",
	"redis.db":               "REDIS_DB",
	"jwt.secret_key":         "JWT_SECRET_KEY",
	"gateway.base_url":       "GATEWAY_BASE_URL",
	"gateway.webhook_secret": "GATEWAY_WEBHOOK_SECRET",

	"economy.execute_threshold":      "ECONOMY_EXECUTE_THRESHOLD",
	"economy.cancel_threshold":       "ECONOMY_CANCEL_THRESHOLD",
	"economy.review_fee":             "ECONOMY_REVIEW_FEE",
	"economy.vote_cost":              "ECONOMY_VOTE_COST",
	"economy.negative_stake":         "ECONOMY_NEGATIVE_STAKE",
	"economy.author_rep_reward":      "ECONOMY_AUTHOR_REP_REWARD",
	"economy.critic_rep_reward":      "ECONOMY_CRITIC_REP_REWARD",
	"economy.default_votes_required": "ECONOMY_DEFAULT_VOTES_REQUIRED",

	"retry.attempts":       "RETRY_ATTEMPTS",
	"retry.base_delay":     "RETRY_BASE_DELAY",
	"stream.queue_size":    "STREAM_QUEUE_SIZE",
	"stream.heartbeat":     "STREAM_HEARTBEAT",
	"stream.redis_channel": "STREAM_REDIS_CHANNEL",
}

// Init reads .env (if present) and binds every key to its environment
// variable. Environment values win over the file.
func Init(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}

	if err := viper.ReadInConfig(); err != nil {
		slog.Info("[CONFIG] config file not found, using defaults", "path", path, "error", err)
	}
}

func LoadServerConfig() *ServerConfig {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("swagger.host", "localhost:8080")

	return &ServerConfig{
		Port:          viper.GetString("server.port"),
		Env:           viper.GetString("app.env"),
		StoreDriver:   viper.GetString("store.driver"),
		JWTSecret:     viper.GetString("jwt.secret_key"),
		SwaggerHost:   viper.GetString("swagger.host"),
		ShutdownGrace: 30 * time.Second,
	}
}

func LoadStreamConfig() *StreamConfig {
	viper.SetDefault("stream.queue_size", 64)
	viper.SetDefault("stream.heartbeat", 25*time.Second)
	viper.SetDefault("stream.redis_channel", "castfund:events")

	queue := viper.GetInt("stream.queue_size")
	if queue < 1 {
		queue = 64
	}
	return &StreamConfig{
		QueueSize:    queue,
		Heartbeat:    viper.GetDuration("stream.heartbeat"),
		RedisChannel: viper.GetString("stream.redis_channel"),
	}
}

func LoadGatewayConfig() *GatewayConfig {
	viper.SetDefault("gateway.base_url", "https://pay.example.com/checkout")

	return &GatewayConfig{
		BaseURL:       viper.GetString("gateway.base_url"),
		WebhookSecret: viper.GetString("gateway.webhook_secret"),
	}
}

func LoadRetryConfig() *RetryConfig {
	viper.SetDefault("retry.attempts", 5)
	viper.SetDefault("retry.base_delay", 20*time.Millisecond)

	attempts := viper.GetInt("retry.attempts")
	if attempts < 1 {
		attempts = 1
	}
	return &RetryConfig{
		Attempts:  attempts,
		BaseDelay: viper.GetDuration("retry.base_delay"),
	}
}
