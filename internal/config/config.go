// Package config loads runtime configuration from a JSON file at
// $XDG_CONFIG_HOME/mentorbot/config.json with MENTORBOT_* environment
// variables taking precedence.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Server   ServerConfig
	Scrape   ScrapeConfig
	Jobs     JobsConfig
	Log      LogConfig
}

type TelegramConfig struct {
	Token        string
	AdminChatIDs string // comma-separated chat ids
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port  int
	Token string // bearer token for the admin API; empty disables it
}

// ScrapeConfig holds the article sources as a JSON array so the whole
// list can live under one config key.
type ScrapeConfig struct {
	Sites string
}

// SiteSpec is one scrape target as configured.
type SiteSpec struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	ItemClass string `json:"item_class"`
}

// JobsConfig holds job intervals as duration strings ("10m", "6h").
type JobsConfig struct {
	Reminder   string
	RetryDrain string
	Heartbeat  string
	Ingestion  string
	Report     string
	Cleanup    string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash-lite",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4600,
		},
		Scrape: ScrapeConfig{
			Sites: `[{"name":"realpython","url":"https://realpython.com/","item_class":"card-body"}]`,
		},
		Jobs: JobsConfig{
			Reminder:   "24h",
			RetryDrain: "10m",
			Heartbeat:  "1h",
			Ingestion:  "6h",
			Report:     "24h",
			Cleanup:    "24h",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend and applies
// MENTORBOT_* environment overrides. The Telegram token is the only
// required value.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Telegram.Token == "" {
		return Config{}, fmt.Errorf("missing required config: Telegram bot token. " +
			"Set it via environment variable MENTORBOT_TELEGRAM_TOKEN or the telegram.token config key")
	}

	return cfg, nil
}

// AdminIDs parses the comma-separated admin chat id list.
func (c TelegramConfig) AdminIDs() ([]int64, error) {
	if strings.TrimSpace(c.AdminChatIDs) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(c.AdminChatIDs, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseSites decodes the configured scrape target list.
func (c ScrapeConfig) ParseSites() ([]SiteSpec, error) {
	if strings.TrimSpace(c.Sites) == "" {
		return nil, nil
	}
	var sites []SiteSpec
	if err := json.Unmarshal([]byte(c.Sites), &sites); err != nil {
		return nil, fmt.Errorf("invalid scrape.sites value: %w", err)
	}
	for _, s := range sites {
		if s.URL == "" || s.ItemClass == "" {
			return nil, fmt.Errorf("scrape site %q needs both url and item_class", s.Name)
		}
	}
	return sites, nil
}

// Durations parses every job interval.
func (c JobsConfig) Durations() (reminder, retry, heartbeat, ingestion, report, cleanup time.Duration, err error) {
	parse := func(name, raw string) time.Duration {
		if err != nil {
			return 0
		}
		var d time.Duration
		d, err = time.ParseDuration(raw)
		if err != nil {
			err = fmt.Errorf("invalid %s interval %q: %w", name, raw, err)
			return 0
		}
		if d <= 0 {
			err = fmt.Errorf("%s interval must be positive, got %q", name, raw)
			return 0
		}
		return d
	}

	reminder = parse("reminder", c.Reminder)
	retry = parse("retry drain", c.RetryDrain)
	heartbeat = parse("heartbeat", c.Heartbeat)
	ingestion = parse("ingestion", c.Ingestion)
	report = parse("report", c.Report)
	cleanup = parse("cleanup", c.Cleanup)
	return
}
