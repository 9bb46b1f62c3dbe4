package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
api:
  address: 127.0.0.1
  port: 8080
database:
  path: /tmp/prices.db
  data_retention_days: 14
tariff:
  exchange_cents_kwh: 7.1
market:
  granularity: 60
cache:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: sw
scheduler:
  run_at: "0 13 * * *"
logging:
  console_level: debug
  db_attrs_format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENTSOE_TOKEN", "secret-token")

	c, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("Values", func(t *testing.T) {
		if c.Api.Port != 8080 {
			t.Errorf("expected port 8080, got %d", c.Api.Port)
		}
		if c.Database.GetPath() != "/tmp/prices.db" {
			t.Errorf("unexpected database path %s", c.Database.GetPath())
		}
		if c.Database.GetDataRetentionDays() != 14 {
			t.Errorf("expected retention 14, got %d", c.Database.GetDataRetentionDays())
		}
		if c.Tariff.GetExchangeCents() != 7.1 {
			t.Errorf("expected exchange 7.1, got %f", c.Tariff.GetExchangeCents())
		}
		if c.Market.GetGranularity() != 60 {
			t.Errorf("expected granularity 60, got %d", c.Market.GetGranularity())
		}
		if c.Cache.GetBackend() != "redis" || c.Cache.Redis.Prefix != "sw" {
			t.Errorf("unexpected cache config %+v", c.Cache)
		}
		if c.Scheduler.GetRunAt() != "0 13 * * *" {
			t.Errorf("unexpected run_at %s", c.Scheduler.GetRunAt())
		}
		if c.Logging.GetConsoleLevel() != slog.LevelDebug {
			t.Errorf("expected debug console level, got %v", c.Logging.GetConsoleLevel())
		}
		if c.Logging.GetDbAttrsFormat() != "TEXT" {
			t.Errorf("expected TEXT attrs, got %s", c.Logging.GetDbAttrsFormat())
		}
	})

	t.Run("Environment", func(t *testing.T) {
		if c.Entsoe.Token != "secret-token" {
			t.Errorf("expected token from environment, got %q", c.Entsoe.Token)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		if c.Tariff.GetMarginCents() != 0.5 {
			t.Errorf("expected margin 0.5, got %f", c.Tariff.GetMarginCents())
		}
		if c.Database.GetDriver() != "sqlite" {
			t.Errorf("expected sqlite, got %s", c.Database.GetDriver())
		}
		if c.Market.GetTimezone() != "Europe/Helsinki" {
			t.Errorf("unexpected timezone %s", c.Market.GetTimezone())
		}
		if c.Entsoe.GetVat() != 1.255 {
			t.Errorf("expected vat 1.255, got %f", c.Entsoe.GetVat())
		}
		if c.Scheduler.GetTomorrowRunAt() != "30 12 * * *" || c.Scheduler.GetPublishRunAt() != "*/15 * * * *" {
			t.Errorf("unexpected scheduler defaults %+v", c.Scheduler)
		}
		if c.RateLimit.GetRps() != 10 || c.RateLimit.GetBurst() != 20 {
			t.Errorf("unexpected rate limit defaults")
		}
		if c.Mqtt.GetTopicPrefix() != "spotwindow" {
			t.Errorf("unexpected topic prefix %s", c.Mqtt.GetTopicPrefix())
		}
	})
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"postgres without dsn": "database:\n  driver: postgres\n",
		"granularity":          "market:\n  granularity: 30\n",
		"timezone":             "market:\n  timezone: Mars/Olympus\n",
		"cache backend":        "cache:\n  backend: memcached\n",
		"mqtt without broker":  "mqtt:\n  enabled: true\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, "logging:\n  console_level: info\n")
	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *AppConfig, 16)
	l.Watch(slog.Default(), func(c *AppConfig) {
		select {
		case changed <- c:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("logging:\n  console_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// a write can surface as several events, the last one carries the full file
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Logging.GetConsoleLevel() == slog.LevelDebug {
				return
			}
		case <-timeout:
			t.Fatal("no reload to debug within 5s")
		}
	}
}
