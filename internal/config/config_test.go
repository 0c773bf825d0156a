package config

import (
	"testing"
	"time"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (m *mapBackend) SetString(key, val string) error { m.data[key] = val; return nil }

func (m *mapBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }

func (m *mapBackend) Delete(key string) error { delete(m.data, key); return nil }

func TestDefaults(t *testing.T) {
	b := &mapBackend{data: map[string]any{
		"telegram.token": "test-token",
	}}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gemini.Model != "gemini-2.5-flash-lite" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Jobs.RetryDrain != "10m" {
		t.Errorf("Jobs.RetryDrain = %q, want 10m", cfg.Jobs.RetryDrain)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestMissingTelegramToken(t *testing.T) {
	b := &mapBackend{data: map[string]any{}}

	if _, err := loadWith(b); err == nil {
		t.Fatal("expected an error without a Telegram token")
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	b := &mapBackend{data: map[string]any{
		"telegram.token": "file-token",
		"server.port":    5000,
	}}
	t.Setenv("MENTORBOT_TELEGRAM_TOKEN", "env-token")
	t.Setenv("MENTORBOT_SERVER_PORT", "5001")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Telegram.Token = %q, want the env value", cfg.Telegram.Token)
	}
	if cfg.Server.Port != 5001 {
		t.Errorf("Server.Port = %d, want 5001", cfg.Server.Port)
	}
}

func TestAdminIDs(t *testing.T) {
	c := TelegramConfig{AdminChatIDs: " 100, 200 ,300"}
	ids, err := c.AdminIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 100 || ids[2] != 300 {
		t.Errorf("ids = %v", ids)
	}

	if _, err := (TelegramConfig{AdminChatIDs: "abc"}).AdminIDs(); err == nil {
		t.Error("expected an error for a non-numeric id")
	}
	if ids, err := (TelegramConfig{}).AdminIDs(); err != nil || ids != nil {
		t.Errorf("empty list: ids = %v, err = %v", ids, err)
	}
}

func TestParseSites(t *testing.T) {
	c := ScrapeConfig{Sites: `[{"name":"a","url":"https://a.example.com","item_class":"card"}]`}
	sites, err := c.ParseSites()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sites) != 1 || sites[0].ItemClass != "card" {
		t.Errorf("sites = %+v", sites)
	}

	if _, err := (ScrapeConfig{Sites: `[{"name":"a"}]`}).ParseSites(); err == nil {
		t.Error("expected an error for a site without url and item_class")
	}
	if _, err := (ScrapeConfig{Sites: "not json"}).ParseSites(); err == nil {
		t.Error("expected an error for malformed json")
	}
}

func TestJobDurations(t *testing.T) {
	cfg := defaults()
	reminder, retry, heartbeat, ingestion, report, cleanup, err := cfg.Jobs.Durations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reminder != 24*time.Hour || retry != 10*time.Minute || heartbeat != time.Hour {
		t.Errorf("got %v %v %v", reminder, retry, heartbeat)
	}
	if ingestion != 6*time.Hour || report != 24*time.Hour || cleanup != 24*time.Hour {
		t.Errorf("got %v %v %v", ingestion, report, cleanup)
	}

	bad := JobsConfig{Reminder: "soon", RetryDrain: "10m", Heartbeat: "1h", Ingestion: "6h", Report: "24h", Cleanup: "24h"}
	if _, _, _, _, _, _, err := bad.Durations(); err == nil {
		t.Error("expected an error for an unparseable interval")
	}
}

func TestSetKeyRefusesSecrets(t *testing.T) {
	if err := SetKey("telegram.token", "x"); err == nil {
		t.Error("expected an error when setting a secret key")
	}
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Telegram.Token = "secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "telegram.token" || info.Key == "gemini.api_key" || info.Key == "server.token" {
			t.Errorf("secret key %s exposed by ShowAll", info.Key)
		}
	}
}
