// Package custodiand parses custody daemon flags and launches the daemon.
package custodiand

import (
	"context"
	"flag"
	"log/slog"

	entrypoint "github.com/louisbranch/custody.space/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/custody.space/internal/platform/grpc"
	"github.com/louisbranch/custody.space/internal/platform/timeouts"
	"github.com/louisbranch/custody.space/internal/server"
)

// Config holds custody daemon command configuration.
type Config struct {
	server.Config
	// CheckAddr, when set, health-checks a running daemon at that address
	// instead of serving.
	CheckAddr string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.GRPCPort, "port", cfg.GRPCPort, "The custody daemon gRPC port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the custody SQLite database")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often the fee sweeper scans active vaults")
	fs.StringVar(&cfg.CheckAddr, "check", "", "Health-check a running daemon at this address and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the custody daemon, or health-checks a running one when the
// -check flag is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.CheckAddr != "" {
		return checkHealth(ctx, cfg.CheckAddr)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDaemon, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Config, server.Deps{}, nil)
	})
}

// checkHealth dials the daemon and waits for its gRPC health service.
func checkHealth(ctx context.Context, addr string) error {
	conn, err := platformgrpc.DialWithHealth(
		ctx, nil, addr, timeouts.GRPCDial, slog.Default(),
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		return err
	}
	return conn.Close()
}
