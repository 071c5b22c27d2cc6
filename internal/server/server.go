// Package server wires the custody daemon: the SQLite-backed engine, the
// periodic fee sweeper, and the gRPC health lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/louisbranch/custody.space/internal/auth"
	custodyservice "github.com/louisbranch/custody.space/internal/custody/service"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/storage/sqlite"
	"github.com/louisbranch/custody.space/internal/sweeper"
	vaultservice "github.com/louisbranch/custody.space/internal/vault/service"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config carries the daemon settings loaded from the environment.
type Config struct {
	GRPCPort      int           `env:"CUSTODY_SPACE_GRPC_PORT" envDefault:"8090"`
	DBPath        string        `env:"CUSTODY_SPACE_DB_PATH"`
	AuthSecret    string        `env:"CUSTODY_SPACE_AUTH_SECRET"`
	TokenTTL      time.Duration `env:"CUSTODY_SPACE_TOKEN_TTL" envDefault:"15m"`
	SweepInterval time.Duration `env:"CUSTODY_SPACE_SWEEP_INTERVAL" envDefault:"1m"`
}

// Deps are the marketplace collaborators the engine calls out to. Nil fields
// fall back to local stand-ins so the daemon can run on its own.
type Deps struct {
	Funds     vaultservice.FundsLedger
	Tokens    custodyservice.TokenLayer
	Fractions vaultservice.Fractionalizer
}

// Server hosts the custody engine, its sweeper, and the gRPC lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *sqlite.Store
	sweep      *sweeper.Sweeper
	logger     *slog.Logger

	// Auth issues and verifies the capability tokens callers present.
	Auth *auth.Verifier
	// Vaults is the custodian-fee ledger service.
	Vaults *vaultservice.Service
	// Custody drives the item custody state machine.
	Custody *custodyservice.Service
}

// New creates a configured custody daemon listening on the configured port.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AuthSecret == "" {
		return nil, errors.New("auth secret is required")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "custody.db")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", cfg.GRPCPort, err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	verifier, err := auth.NewVerifier([]byte(cfg.AuthSecret), cfg.TokenTTL)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	// The store doubles as a credit-only funds ledger when no external
	// distribution layer is plugged in.
	funds := deps.Funds
	if funds == nil {
		funds = store
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = loggingTokenLayer{logger: logger}
	}
	fractions := deps.Fractions
	if fractions == nil {
		fractions = loggingFractionalizer{logger: logger}
	}

	emitter := event.NewEmitter(store)
	vaults := vaultservice.New(store, emitter, funds, fractions, logger)
	custody := custodyservice.New(store, vaults, funds, tokens, verifier, emitter, logger)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(statusInterceptor),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		sweep:      sweeper.New(store, vaults, cfg.SweepInterval, logger),
		logger:     logger,
		Auth:       verifier,
		Vaults:     vaults,
		Custody:    custody,
	}, nil
}

// Addr returns the listener address for the daemon.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a custody daemon until context cancellation.
func Run(ctx context.Context, cfg Config, deps Deps, logger *slog.Logger) error {
	server, err := New(cfg, deps, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the sweeper and the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.logger.Info("custody daemon listening", "addr", s.listener.Addr().String())

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = s.sweep.Run(sweepCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		<-sweepDone
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		cancelSweep()
		<-sweepDone
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close releases daemon resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close custody store", "error", err)
		}
	}
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open custody sqlite store: %w", err)
	}
	return store, nil
}
