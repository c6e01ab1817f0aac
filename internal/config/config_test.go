package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cfg.json", `{"logging":{"level":"info"},"shceduler":{}}`)
	m := NewConfigManager(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("misspelled section accepted")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cfg.yaml", `
logging:
  level: debug
  console: true
scheduler:
  wait_cost: 5
  max_pid: 128
heartbeat:
  tick: 250ms
  drain_budget: 4
`)
	m := NewConfigManager(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if got := cfg.Scheduler.EffectiveWaitCost(); got != 5 {
		t.Fatalf("wait_cost = %d, want 5", got)
	}
	if cfg.Scheduler.MaxPID != 128 || cfg.Heartbeat.DrainBudget != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSchedulerDefaultsDistinguishOmittedFromZero(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cfg.json", `{"scheduler":{"wait_cost":0}}`)
	m := NewConfigManager(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Scheduler.EffectiveWaitCost(); got != 0 {
		t.Fatalf("explicit zero wait_cost = %d, want 0", got)
	}
	if got := cfg.Scheduler.EffectiveSurchargeFrequency(); got != 64 {
		t.Fatalf("omitted surcharge_frequency = %d, want default 64", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty is fine", cfg: Config{}},
		{name: "bad tick", cfg: Config{Heartbeat: HeartbeatConfig{Tick: "soon"}}, wantErr: true},
		{name: "negative budget", cfg: Config{Heartbeat: HeartbeatConfig{DrainBudget: -1}}, wantErr: true},
		{name: "unknown driver", cfg: Config{Storage: &StorageConfig{Driver: "postgres", Path: "x"}}, wantErr: true},
		{name: "sqlite without path", cfg: Config{Storage: &StorageConfig{Driver: "sqlite"}}, wantErr: true},
		{name: "sqlite ok", cfg: Config{Storage: &StorageConfig{Driver: "sqlite", Path: "./q.db"}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tc.cfg)
			if tc.wantErr && err == nil {
				t.Fatal("want error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
