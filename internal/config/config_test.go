package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return NewManager(path)
}

const sampleYAML = `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
storage:
  driver: file
  path: ./data
watcher:
  enabled: true
  schedule: "@every 3m"
  timezone: "Europe/Berlin"
  request_delay: "500ms"
  startup_notify: true
backends:
  - name: primary
    url: "https://api.example.com/3/{host}/{port}"
    timeout: "8s"
    max_retries: 2
    retry_delay: "1s"
    parser:
      online: "online"
      players_online: "players.online"
      players_max: "players.max"
      players_list: "players.list[]"
      version: "version.name_clean"
      motd: "motd.clean"
notifier:
  rate_per_sec: 3
  single_delay: "300ms"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if !cfg.Watcher.Enabled || cfg.Watcher.Schedule != "@every 3m" {
		t.Fatalf("watcher = %+v", cfg.Watcher)
	}
	if len(cfg.Backends) != 1 {
		t.Fatalf("backends = %+v", cfg.Backends)
	}
	b := cfg.Backends[0]
	if b.Parser.PlayersList != "players.list[]" || b.MaxRetries != 2 {
		t.Fatalf("backend = %+v", b)
	}
	if cfg.Notifier.SingleDelay != "300ms" {
		t.Fatalf("notifier = %+v", cfg.Notifier)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "telegram:\n  token: x\n  typo_field: y\n")
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field must be rejected")
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("missing file must error")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, sampleYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestHashConfigGatesDuplicates(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "x"}}
	b := &Config{Telegram: TelegramConfig{Token: "x"}}
	c := &Config{Telegram: TelegramConfig{Token: "y"}}

	if hashConfig(a) != hashConfig(b) {
		t.Fatal("identical configs must hash equal")
	}
	if hashConfig(a) == hashConfig(c) {
		t.Fatal("different configs must hash differently")
	}
	if hashConfig(nil) != 0 {
		t.Fatal("nil config hashes to zero")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"500ms", 500 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		d, err := ParseDurationField("watcher.request_delay", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if d != tc.want {
			t.Fatalf("%q = %v, want %v", tc.raw, d, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 8*time.Second)
	if err != nil || d != 8*time.Second {
		t.Fatalf("empty must fall back to default, got %v %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "1s", 8*time.Second)
	if err != nil || d != time.Second {
		t.Fatalf("explicit value must win, got %v %v", d, err)
	}
}

func TestSubscribeDropOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Telegram: TelegramConfig{Token: "first"}}
	second := &Config{Telegram: TelegramConfig{Token: "second"}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got.Telegram.Token != "second" {
		t.Fatalf("slow subscriber must see the newest config, got %q", got.Telegram.Token)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra config %q", extra.Telegram.Token)
	default:
	}
}
