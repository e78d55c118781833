package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log    LogConfig    `mapstructure:"log" validate:"required"`
	Yelp   YelpConfig   `mapstructure:"yelp" validate:"required"`
	Queue  QueueConfig  `mapstructure:"queue" validate:"required"`
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Search SearchConfig `mapstructure:"search" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// YelpConfig contains the API endpoints and client credentials. The
// credentials are only needed to authorize.
type YelpConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	TokenURL     string        `mapstructure:"token_url" validate:"required,url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// QueueConfig sizes the operation queue.
type QueueConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"gt=0,lte=64"`
	QueueSize   int `mapstructure:"queue_size" validate:"gt=0"`
}

// StoreConfig selects where the account is kept.
type StoreConfig struct {
	Backend   string `mapstructure:"backend" validate:"required,oneof=memory redis"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `mapstructure:"redis_db" validate:"gte=0"`
	Key       string `mapstructure:"key"`
	Secret    string `mapstructure:"secret" validate:"required_if=Backend redis,omitempty,min=16"`
}

// SearchConfig holds search defaults and the location used when no device
// location is available.
type SearchConfig struct {
	Limit     int     `mapstructure:"limit" validate:"gt=0,lte=50"`
	Radius    int     `mapstructure:"radius" validate:"gte=0,lte=40000"`
	SortBy    string  `mapstructure:"sort_by" validate:"oneof=best_match rating review_count distance"`
	Latitude  float64 `mapstructure:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `mapstructure:"longitude" validate:"gte=-180,lte=180"`
}
