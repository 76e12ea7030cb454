package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values come from the YAML file at
// CONFIG_PATH and can be overridden by environment variables.
type Config struct {
	Port       string `yaml:"port"`
	LogLevel   string `yaml:"log_level"`
	Title      string `yaml:"title"`
	Experiment string `yaml:"experiment"`

	Results struct {
		CSVDir   string `yaml:"csv_dir"`
		Postgres bool   `yaml:"postgres"`
		NATS     struct {
			URL           string `yaml:"url"`
			SubjectPrefix string `yaml:"subject_prefix"`
		} `yaml:"nats"`
	} `yaml:"results"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Port:       "8080",
		LogLevel:   "info",
		Title:      "Experiment",
		Experiment: "experiment.yaml",
	}
	cfg.Results.NATS.SubjectPrefix = "choicetrial"
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// loadConfig reads path if it exists and applies environment overrides.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Title = getEnv("EXPERIMENT_TITLE", config.Title)
	config.Experiment = getEnv("EXPERIMENT_PATH", config.Experiment)
	config.Results.CSVDir = getEnv("RESULTS_CSV_DIR", config.Results.CSVDir)
	config.Results.Postgres = getEnvAsBool("RESULTS_POSTGRES", config.Results.Postgres)
	config.Results.NATS.URL = getEnv("NATS_URL", config.Results.NATS.URL)
	config.Results.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", config.Results.NATS.SubjectPrefix)

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if _, err := zerolog.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
	}
	return config, nil
}
