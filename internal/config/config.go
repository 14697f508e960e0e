// Package config handles lifeops configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/lifeops/config.yaml, /etc/lifeops/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lifeops", "config.yaml"))
	}

	paths = append(paths, "/etc/lifeops/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all lifeops configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	MCP       MCPConfig       `yaml:"mcp"`
	Notion    NotionConfig    `yaml:"notion"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Models    ModelsConfig    `yaml:"models"`
	Assistant AssistantConfig `yaml:"assistant"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// MCPConfig points at the remote tool endpoint that fronts Notion and
// Google Calendar.
type MCPConfig struct {
	URL        string `yaml:"url"`
	Bearer     string `yaml:"bearer"`
	TimeoutSec int    `yaml:"timeout_sec"`
	// DialRetries retries connections refused before any bytes were sent.
	DialRetries int `yaml:"dial_retries"`
}

// Configured reports whether a tool endpoint URL is set.
func (c MCPConfig) Configured() bool { return c.URL != "" }

// Timeout returns the per-call timeout.
func (c MCPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// NotionConfig holds the database ids for each record family.
type NotionConfig struct {
	LifeDomains string `yaml:"life_domains"`
	Projects    string `yaml:"projects"`
	Tasks       string `yaml:"tasks"`
	Content     string `yaml:"content"`
	Journal     string `yaml:"journal"`
}

// CalendarConfig selects the calendar and default time zone.
type CalendarConfig struct {
	ID       string `yaml:"id"`
	Timezone string `yaml:"timezone"` // IANA zone; empty means UTC
}

// ResolverConfig tunes fuzzy name matching.
type ResolverConfig struct {
	Exact        int     `yaml:"exact"`
	Contains     int     `yaml:"contains"`
	Contained    int     `yaml:"contained"`
	OverlapScale float64 `yaml:"overlap_scale"`
	Threshold    int     `yaml:"threshold"`
}

// ModelsConfig selects the language model used by the assistant.
type ModelsConfig struct {
	OllamaURL   string  `yaml:"ollama_url"`
	Default     string  `yaml:"default"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AssistantConfig controls the conversational front end.
type AssistantConfig struct {
	HistoryLimit int `yaml:"history_limit"`
}

// MQTTConfig configures activity publishing. Publishing is disabled when
// Broker is empty.
type MQTTConfig struct {
	Broker             string `yaml:"broker"` // e.g. mqtt://homeassistant.local:1883
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	DeviceName         string `yaml:"device_name"`
	DiscoveryPrefix    string `yaml:"discovery_prefix"`
	PublishIntervalSec int    `yaml:"publish_interval_sec"`
	// Commands enables the inbound command topic.
	Commands bool `yaml:"commands"`
}

// Configured reports whether a broker is set.
func (c MQTTConfig) Configured() bool { return c.Broker != "" }

// Load reads configuration from a YAML file. Environment references
// such as ${MCP_BEARER} are expanded before parsing, and keys absent
// from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.MCP.Bearer = strings.TrimSpace(cfg.MCP.Bearer)

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		MCP:    MCPConfig{TimeoutSec: 60, DialRetries: 2},
		Calendar: CalendarConfig{
			ID: "primary",
		},
		Resolver: ResolverConfig{
			Exact:        100,
			Contains:     80,
			Contained:    70,
			OverlapScale: 60,
			Threshold:    50,
		},
		Models: ModelsConfig{
			OllamaURL:   "http://localhost:11434",
			Default:     "qwen3:4b",
			Temperature: 0.1,
			MaxTokens:   500,
		},
		Assistant: AssistantConfig{HistoryLimit: 6},
		MQTT: MQTTConfig{
			DeviceName:         "lifeops",
			DiscoveryPrefix:    "homeassistant",
			PublishIntervalSec: 60,
		},
		DataDir:   "./db",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate reports every missing setting the executor depends on. The
// returned error joins one error per problem.
func (c *Config) Validate() error {
	var errs []error
	ids := []struct{ key, val string }{
		{"notion.life_domains", c.Notion.LifeDomains},
		{"notion.projects", c.Notion.Projects},
		{"notion.tasks", c.Notion.Tasks},
		{"notion.content", c.Notion.Content},
		{"notion.journal", c.Notion.Journal},
		{"calendar.id", c.Calendar.ID},
	}
	for _, id := range ids {
		if strings.TrimSpace(id.val) == "" {
			errs = append(errs, fmt.Errorf("%s is not set", id.key))
		}
	}
	if c.Calendar.Timezone != "" {
		if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("calendar.timezone: %w", err))
		}
	}
	if c.Resolver.Threshold <= 0 {
		errs = append(errs, errors.New("resolver.threshold must be positive"))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not text or json", c.LogFormat))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
