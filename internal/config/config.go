// Package config loads the agent configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

type Config struct {
	Address string `yaml:"address"`
	DataDir string `yaml:"data_dir"`

	// Endpoints the tracker flushes and classifies against. The defaults
	// point back at this agent's own surface for local-first operation.
	CollectURL  string `yaml:"collect_url"`
	ClassifyURL string `yaml:"classify_url"`

	// Upstream classifier the detect endpoint proxies to. Empty disables it.
	UpstreamClassifierURL string `yaml:"upstream_classifier_url"`

	// SessionID overrides the persisted identifier when non-empty.
	SessionID  string `yaml:"session_id"`
	PageURL    string `yaml:"page_url"`
	ActionType string `yaml:"action_type"`

	FlushIntervalSeconds int `yaml:"flush_interval_seconds"`
	RetainTail           int `yaml:"retain_tail"`

	MouseWindow     int `yaml:"mouse_window"`
	ClickWindow     int `yaml:"click_window"`
	KeystrokeWindow int `yaml:"keystroke_window"`
	ScrollWindow    int `yaml:"scroll_window"`

	// Fingerprint overlays host-supplied attributes onto the probed ones.
	Fingerprint models.DeviceFingerprint `yaml:"fingerprint"`
}

func Default() Config {
	return Config{
		Address:              "127.0.0.1:8123",
		CollectURL:           "http://127.0.0.1:8123/api/behavioral_data",
		ClassifyURL:          "http://127.0.0.1:8123/api/detect_bot",
		ActionType:           "task_completion",
		FlushIntervalSeconds: 5,
		RetainTail:           10,
		MouseWindow:          500,
		ClickWindow:          100,
		KeystrokeWindow:      200,
		ScrollWindow:         200,
	}
}

// Load merges the YAML file at path (or $BEHAVIORTRACE_CONFIG when path is
// empty) over the defaults, then applies environment overrides. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BEHAVIORTRACE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	overrideString(&cfg.Address, "BEHAVIORTRACE_ADDRESS")
	overrideString(&cfg.DataDir, "BEHAVIORTRACE_DATA_DIR")
	overrideString(&cfg.CollectURL, "BEHAVIORTRACE_COLLECT_URL")
	overrideString(&cfg.ClassifyURL, "BEHAVIORTRACE_CLASSIFY_URL")
	overrideString(&cfg.UpstreamClassifierURL, "BEHAVIORTRACE_UPSTREAM_URL")
	overrideString(&cfg.SessionID, "BEHAVIORTRACE_SESSION_ID")

	if cfg.FlushIntervalSeconds <= 0 {
		cfg.FlushIntervalSeconds = Default().FlushIntervalSeconds
	}
	if cfg.RetainTail <= 0 {
		cfg.RetainTail = Default().RetainTail
	}
	return cfg, nil
}

func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

func overrideString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
