package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
port: "9090"
title: Confidence study
experiment: experiments/confidence.yaml
results:
  csv_dir: data
  nats:
    url: nats://localhost:4222
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RESULTS_POSTGRES", "true")
	t.Setenv("PORT", "")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.Port != "9090" || config.Title != "Confidence study" {
		t.Errorf("port/title = %q/%q", config.Port, config.Title)
	}
	if config.Experiment != "experiments/confidence.yaml" || config.Results.CSVDir != "data" {
		t.Errorf("experiment/csv = %q/%q", config.Experiment, config.Results.CSVDir)
	}
	if !config.Results.Postgres {
		t.Error("RESULTS_POSTGRES override ignored")
	}
	if config.Results.NATS.SubjectPrefix != "choicetrial" {
		t.Errorf("subject prefix = %q, want default", config.Results.NATS.SubjectPrefix)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("EXPERIMENT_PATH", "other.toml")
	config, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Port != "8080" || config.Experiment != "other.toml" {
		t.Errorf("got port %q experiment %q", config.Port, config.Experiment)
	}
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestLoadConfigEmptyLogLevelIsInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	config, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.LogLevel != "info" {
		t.Errorf("log level = %q, want info", config.LogLevel)
	}
}
