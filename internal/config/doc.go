// Package config loads settings from defaults, an optional config file, a
// dotenv file and RR_-prefixed environment variables, and validates them
// before any component is built.
package config
