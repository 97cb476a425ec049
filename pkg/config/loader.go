package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("RELAYD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow common env vars without RELAYD_ prefix for Docker/VM deploys
	viper.BindEnv("http.port", "HTTP_PORT", "RELAYD_HTTP_PORT")
	viper.BindEnv("database.url", "DATABASE_URL", "RELAYD_DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL", "RELAYD_REDIS_URL")
	viper.BindEnv("queue.url", "NATS_URL", "RELAYD_QUEUE_URL")
	viper.BindEnv("app.environment", "RELAYD_ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	// The fleet has always been priced via RELAY<n>_HARGA variables;
	// keep honoring them so existing deployments carry over unchanged.
	for i := 1; i <= 8; i++ {
		viper.BindEnv(fmt.Sprintf("channels.prices.%d", i), fmt.Sprintf("RELAY%d_HARGA", i))
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: env vars and defaults only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "relayd")
	viper.SetDefault("app.version", "v1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("http.port", 3000)
	viper.SetDefault("queue.driver", "nats")
	viper.SetDefault("channels.count", 8)
	viper.SetDefault("billing.unit_minutes", 30)
	viper.SetDefault("billing.rounding_increment", 500)
	viper.SetDefault("billing.currency", "IDR")
	viper.SetDefault("logging.level", "info")
}
