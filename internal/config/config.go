// Package config loads runtime settings from the environment with an
// optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the storydeck server.
type Config struct {
	Port     string   `yaml:"port"`
	NATSURL  string   `yaml:"nats_url"`
	Database Database `yaml:"database"`
}

// Database holds Postgres connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// FromEnv reads *_ environment variables (with defaults).
func FromEnv() *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "storydeck"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}
}

// Load builds a Config from the environment, overlaying values from an
// optional YAML file.
func Load(path string) (*Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
