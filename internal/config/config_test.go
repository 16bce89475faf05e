package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "inkwell.db" {
		t.Errorf("Path = %q, want inkwell.db", cfg.Database.Path)
	}
	if cfg.Scheduler.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.Scheduler.SweepInterval)
	}
	if cfg.Scheduler.ManualCooldown != 5*time.Minute {
		t.Errorf("ManualCooldown = %v, want 5m", cfg.Scheduler.ManualCooldown)
	}
	if cfg.Scheduler.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Scheduler.Workers)
	}
	if cfg.Pipeline.CallTimeout != 60*time.Second {
		t.Errorf("CallTimeout = %v, want 60s", cfg.Pipeline.CallTimeout)
	}
	if cfg.Pipeline.MaxRetries == nil || *cfg.Pipeline.MaxRetries != 2 {
		t.Errorf("MaxRetries = %v, want 2", cfg.Pipeline.MaxRetries)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.API.Port)
	}
}

func TestParse_Full(t *testing.T) {
	data := []byte(`
database:
  driver: mysql
  host: db.internal
  port: 3307
  user: inkwell
  database: inkwell_prod
scheduler:
  sweep_interval: 1m
  pattern_interval: 30m
  workers: 8
  page_size: 100
  quiet_start: "22:00"
  quiet_end: "07:00"
pipeline:
  draft_command: "inkwell-draft --model default"
  call_timeout: 45s
notify:
  platform: slack
  bot_token: xoxb-test
  channel_id: C123
api:
  port: 9090
sources:
  - platform: slack
    fetch_command: "inkwell-fetch slack"
    rate_per_min: 10
  - platform: notion
    fetch_command: "inkwell-fetch notion"
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Scheduler.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v", cfg.Scheduler.SweepInterval)
	}
	if cfg.Scheduler.QuietStart != "22:00" {
		t.Errorf("QuietStart = %q", cfg.Scheduler.QuietStart)
	}
	if cfg.Notify.Platform != "slack" {
		t.Errorf("Notify.Platform = %q", cfg.Notify.Platform)
	}
	if got := cfg.Source("notion"); got == nil || got.FetchCommand != "inkwell-fetch notion" {
		t.Errorf("Source(notion) = %+v", got)
	}
	if got := cfg.Source("slack"); got == nil || got.RatePerMin != 10 {
		t.Errorf("Source(slack) = %+v", got)
	}
	if got := cfg.Source("gmail"); got != nil {
		t.Errorf("Source(gmail) = %+v, want nil", got)
	}
	// Unset per-source defaults fill in.
	if got := cfg.Source("notion"); got.RatePerMin != 30 || got.Timeout != 30*time.Second {
		t.Errorf("notion defaults = %+v", got)
	}
}

func TestParse_ExplicitZeroRetries(t *testing.T) {
	cfg, err := Parse([]byte("pipeline:\n  max_retries: 0\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Pipeline.MaxRetries == nil || *cfg.Pipeline.MaxRetries != 0 {
		t.Errorf("MaxRetries = %v, want explicit 0", cfg.Pipeline.MaxRetries)
	}
}

func TestParse_InvalidDriver(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "must be sqlite or mysql") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_NotifyRequiresToken(t *testing.T) {
	_, err := Parse([]byte("notify:\n  platform: discord\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "bot_token is required") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_SourceRequiresCommand(t *testing.T) {
	_, err := Parse([]byte("sources:\n  - platform: slack\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "fetch_command is required") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte(":\n  - ["))
	if err == nil {
		t.Fatal("expected parse error")
	}
}
