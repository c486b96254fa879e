package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/querystats/sampling"
	"github.com/jonwraymond/querystats/store"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
store:
  capacity: 500
  max_idle: 1h
sampling:
  rate: 20
strict: true
observe:
  logging:
    level: debug
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Default()
	want.Store.Capacity = 500
	want.Store.MaxIdle = time.Hour
	want.Sampling.Rate = 20
	want.Strict = true
	want.Observe.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse(empty) error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Parse(empty) mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "stroe:\n  capacity: 1\n"},
		{"shards not power of two", "store:\n  shards: 3\n"},
		{"negative capacity", "store:\n  capacity: -1\n"},
		{"zero capacity", "store:\n  capacity: 0\n"},
		{"capacity below shards", "store:\n  capacity: 8\n"},
		{"ratio above one", "sampling:\n  ratio: 1.5\n"},
		{"negative rate", "sampling:\n  rate: -1\n"},
		{"bad duration", "store:\n  max_idle: soon\n"},
		{"bad log level", "observe:\n  logging:\n    level: loud\n"},
		{"missing service name", "observe:\n  service_name: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.yaml)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Parse() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Store.Shards = 6
	cfg.Sampling.Ratio = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"store.shards", "sampling.ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "querystats.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \"127.0.0.1:9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestConfig_StoreOptions(t *testing.T) {
	cfg := Default()
	cfg.Store.MaxIdle = time.Hour
	clock := quartz.NewMock(t)

	sc := cfg.StoreOptions(clock)
	if sc.Capacity != cfg.Store.Capacity || sc.Shards != cfg.Store.Shards || sc.MaxIdle != time.Hour {
		t.Errorf("StoreOptions() = %+v", sc)
	}
	if sc.Clock != clock {
		t.Error("StoreOptions() dropped the clock")
	}
}

func TestConfig_StoreOptionsBuildStore(t *testing.T) {
	cfg, err := Parse(strings.NewReader("store:\n  capacity: 8\n  shards: 8\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s, err := store.New(cfg.StoreOptions(quartz.NewMock(t)))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	if s.Capacity() != 8 || len(s.ShardLens()) != 8 {
		t.Errorf("store capacity %d over %d shards, want 8 over 8", s.Capacity(), len(s.ShardLens()))
	}

	cfg.Store.Capacity = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() with zero capacity error = %v, want ErrInvalidConfig", err)
	}
}

func TestConfig_Sampler(t *testing.T) {
	clock := quartz.NewMock(t)

	cfg := Default()
	s, err := cfg.Sampler(clock)
	if err != nil {
		t.Fatalf("Sampler() error = %v", err)
	}
	for range 100 {
		if !s.Sample() {
			t.Fatal("default sampler dropped a command")
		}
	}

	cfg.Sampling.Rate = 1
	cfg.Sampling.Burst = 2
	s, err = cfg.Sampler(clock)
	if err != nil {
		t.Fatalf("Sampler() error = %v", err)
	}
	admitted := 0
	for range 10 {
		if s.Sample() {
			admitted++
		}
	}
	if admitted != 2 {
		t.Errorf("rate limited sampler admitted %d, want the burst of 2", admitted)
	}

	cfg.Sampling.Rate = 0
	cfg.Sampling.Ratio = 0
	s, err = cfg.Sampler(clock)
	if err != nil {
		t.Fatalf("Sampler() error = %v", err)
	}
	if s.Sample() {
		t.Error("ratio 0 sampler admitted a command")
	}
}

func TestConfig_Breaker(t *testing.T) {
	cfg := Default()
	var changes []sampling.State
	b := cfg.Breaker(quartz.NewMock(t), func(_, to sampling.State) { changes = append(changes, to) })
	if b == nil {
		t.Fatal("Breaker() = nil with default settings")
	}
	for range cfg.Sampling.Breaker.MaxFailures {
		b.Done(true)
	}
	if b.State() != sampling.StateOpen || len(changes) != 1 {
		t.Errorf("state = %v, changes = %v", b.State(), changes)
	}

	cfg.Sampling.Breaker.MaxFailures = 0
	if cfg.Breaker(nil, nil) != nil {
		t.Error("Breaker() != nil with max_failures 0")
	}
}
