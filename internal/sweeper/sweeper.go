// Package sweeper periodically walks the active vaults and releases any due
// custodian fees. Vaults that are mid-period or blocked by an open auction
// are skipped; everything else surfaces in the logs.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
	"github.com/louisbranch/custody.space/internal/vault/domain"
	"github.com/louisbranch/custody.space/internal/vault/service"
)

// VaultLister enumerates the vaults that may owe fees.
type VaultLister interface {
	ListActiveVaults(ctx context.Context) ([]domain.Vault, error)
}

// Releaser settles due fee periods on one vault.
type Releaser interface {
	Release(ctx context.Context, target domain.Target) (service.ReleaseOutcome, error)
}

// Sweeper drives periodic fee releases.
type Sweeper struct {
	store    VaultLister
	vaults   Releaser
	interval time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New builds a sweeper that runs every interval.
func New(store VaultLister, vaults Releaser, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		vaults:   vaults,
		interval: interval,
		logger:   logger,
		tracer:   otel.Tracer("custody.space/sweeper"),
	}
}

// Run sweeps on the configured interval until the context ends.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep releases due fees on every active vault once.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "sweeper.sweep")
	defer span.End()

	vaults, err := s.store.ListActiveVaults(ctx)
	if err != nil {
		s.logger.Error("list active vaults", "error", err)
		return
	}
	span.SetAttributes(attribute.Int("vaults.active", len(vaults)))

	released := 0
	for _, v := range vaults {
		outcome, err := s.vaults.Release(ctx, v.Target)
		switch {
		case err == nil:
			released++
			if outcome.AuctionStarted {
				s.logger.Info("underfunded release raised auction",
					"target", v.Target.String(),
					"payout", outcome.Result.Payout,
					"auction_ends_at", outcome.Plan.AuctionEndsAt)
			} else {
				s.logger.Debug("released vault fees",
					"target", v.Target.String(),
					"payout", outcome.Result.Payout,
					"periods", outcome.Result.Periods)
			}
		case apperrors.IsCode(err, apperrors.CodeVaultPeriodNotOver),
			apperrors.IsCode(err, apperrors.CodeVaultAuctionOngoing),
			apperrors.IsCode(err, apperrors.CodeVaultInactive):
			// Not due yet, or waiting on an auction; next sweep will retry.
		default:
			s.logger.Warn("vault release failed", "target", v.Target.String(), "error", err)
		}
	}
	span.SetAttributes(attribute.Int("vaults.released", released))
}
