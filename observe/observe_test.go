package observe

import (
	"context"
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		ServiceName: "querystats-test",
		Version:     "1.0.0",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"unknown tracing exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }, ErrInvalidTracingExporter},
		{"sample pct too high", func(c *Config) { c.Tracing.SamplePct = 1.5 }, ErrInvalidSamplePct},
		{"sample pct negative", func(c *Config) { c.Tracing.SamplePct = -0.1 }, ErrInvalidSamplePct},
		{"unknown metrics exporter", func(c *Config) { c.Metrics.Exporter = "badvalue" }, ErrInvalidMetricsExporter},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"disabled subsystems skip checks", func(c *Config) {
			c.Tracing = TracingConfig{Exporter: "zipkin"}
			c.Metrics = MetricsConfig{Exporter: "badvalue"}
			c.Logging = LoggingConfig{Level: "verbose"}
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_AllEnabled(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, validConfig())
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("observer returned nil primitives")
	}
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "off"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if _, ok := obs.Logger().(nopLogger); !ok {
		t.Errorf("Logger() = %T, want nopLogger", obs.Logger())
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("NewObserver() error = %v, want ErrMissingServiceName", err)
	}
}

func TestNop(t *testing.T) {
	obs := Nop()
	ctx := context.Background()

	_, span := NewTracer(obs.Tracer()).Start(ctx, CommandMeta{Command: "find"})
	span.End()

	m, err := NewMetrics(obs.Meter())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RecordOutcome(ctx, CommandMeta{Command: "find"}, ReasonRecorded, 0)
	NopMetrics().RecordOutcome(ctx, CommandMeta{}, "internal", 0)

	l := obs.Logger().WithCommand(CommandMeta{Command: "find"})
	l.Info(ctx, "discarded")
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
