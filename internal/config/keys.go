package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "telegram.token", typ: kString, env: "MENTORBOT_TELEGRAM_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Telegram.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.Token },
	},
	{
		key: "telegram.admin_chat_ids", typ: kString, env: "MENTORBOT_TELEGRAM_ADMIN_CHAT_IDS",
		apply:   func(cfg *Config, v any) { cfg.Telegram.AdminChatIDs = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.AdminChatIDs },
	},
	{
		key: "gemini.api_key", typ: kString, env: "MENTORBOT_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "MENTORBOT_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MENTORBOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "MENTORBOT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "MENTORBOT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "scrape.sites", typ: kString, env: "MENTORBOT_SCRAPE_SITES",
		apply:   func(cfg *Config, v any) { cfg.Scrape.Sites = v.(string) },
		extract: func(cfg Config) any { return cfg.Scrape.Sites },
	},
	{
		key: "jobs.reminder_interval", typ: kString, env: "MENTORBOT_JOBS_REMINDER_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Reminder = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.Reminder },
	},
	{
		key: "jobs.retry_drain_interval", typ: kString, env: "MENTORBOT_JOBS_RETRY_DRAIN_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.RetryDrain = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.RetryDrain },
	},
	{
		key: "jobs.heartbeat_interval", typ: kString, env: "MENTORBOT_JOBS_HEARTBEAT_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Heartbeat = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.Heartbeat },
	},
	{
		key: "jobs.ingestion_interval", typ: kString, env: "MENTORBOT_JOBS_INGESTION_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Ingestion = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.Ingestion },
	},
	{
		key: "jobs.report_interval", typ: kString, env: "MENTORBOT_JOBS_REPORT_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Report = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.Report },
	},
	{
		key: "jobs.cleanup_interval", typ: kString, env: "MENTORBOT_JOBS_CLEANUP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Cleanup = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.Cleanup },
	},
	{
		key: "log.level", typ: kString, env: "MENTORBOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
