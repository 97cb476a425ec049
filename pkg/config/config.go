package config

import (
	"strconv"
	"time"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type QueueConfig struct {
	Driver string `mapstructure:"driver"` // nats | rabbitmq
	URL    string `mapstructure:"url"`
}

// ChannelsConfig fixes the rentable channel set: how many channels
// exist and what each costs per billing unit. Prices are keyed by the
// channel id as a string ("1".."8").
type ChannelsConfig struct {
	Count  int              `mapstructure:"count"`
	Prices map[string]int64 `mapstructure:"prices"`
}

type BillingConfig struct {
	UnitMinutes       int    `mapstructure:"unit_minutes"`
	RoundingIncrement int64  `mapstructure:"rounding_increment"`
	Currency          string `mapstructure:"currency"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// ChannelPrices converts the string-keyed price map into the int-keyed
// form the registry consumes.
func (c ChannelsConfig) ChannelPrices() map[int]int64 {
	prices := make(map[int]int64, len(c.Prices))
	for key, price := range c.Prices {
		if id, err := strconv.Atoi(key); err == nil && id > 0 {
			prices[id] = price
		}
	}
	return prices
}
