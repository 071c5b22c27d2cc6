package custodiand

import (
	"context"
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("custodiand", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCPort != 8090 {
		t.Fatalf("expected default port 8090, got %d", cfg.GRPCPort)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("expected default sweep interval 1m, got %v", cfg.SweepInterval)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("custodiand", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9001", "-db", "/tmp/custody.db", "-sweep-interval", "30s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCPort != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.GRPCPort)
	}
	if cfg.DBPath != "/tmp/custody.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("expected sweep interval 30s, got %v", cfg.SweepInterval)
	}
}

func TestParseConfigCheckFlag(t *testing.T) {
	fs := flag.NewFlagSet("custodiand", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-check", "127.0.0.1:8090"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.CheckAddr != "127.0.0.1:8090" {
		t.Fatalf("expected check address, got %q", cfg.CheckAddr)
	}
}

func TestRunHealthCheckFailsWithoutDaemon(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := Run(ctx, Config{CheckAddr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected the health check to fail with no daemon listening")
	}
}
