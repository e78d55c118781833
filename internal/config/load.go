package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "RR"

type loadOptions struct {
	configFile string
	envFile    string
}

// Option changes where Load looks for configuration.
type Option func(*loadOptions)

// WithConfigFile reads path (YAML, JSON or TOML) below the environment.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// WithEnvFile reads variables from a dotenv file at path instead of ".env".
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	v.SetDefault("yelp.token_url", "https://api.yelp.com/oauth2/token")
	v.SetDefault("yelp.client_id", "")
	v.SetDefault("yelp.client_secret", "")
	v.SetDefault("yelp.timeout", "15s")

	v.SetDefault("queue.worker_count", 4)
	v.SetDefault("queue.queue_size", 100)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.key", "restaurant-reviews:account")
	v.SetDefault("store.secret", "")

	v.SetDefault("search.limit", 50)
	v.SetDefault("search.radius", 0)
	v.SetDefault("search.sort_by", "rating")
	v.SetDefault("search.latitude", 0.0)
	v.SetDefault("search.longitude", 0.0)
}

// Load reads configuration from, in increasing order of precedence: defaults,
// an optional config file, a dotenv file and the process environment.
// Environment variables use the RR_ prefix, e.g. RR_LOG_LEVEL.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts ...Option) (*Config, error) {
	options := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	setDefaults(v)

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", options.configFile, err)
		}
	}

	if err := applyEnvFile(v, options.envFile); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvFile copies the known keys found in a dotenv file into v. The file
// is optional and never overrides variables set in the process environment.
func applyEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := EnvName(key)
		value, ok := values[name]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(key, value)
	}

	return nil
}

// EnvName returns the environment variable that sets key, e.g.
// "yelp.client_id" becomes "RR_YELP_CLIENT_ID".
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
