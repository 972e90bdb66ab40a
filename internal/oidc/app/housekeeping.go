package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/store"
)

// Housekeeper periodically deletes expired authorization codes and token
// records to prevent unbounded database growth. Expired rows are only
// needed while their artifacts could still be presented.
type Housekeeper struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeper creates a housekeeper with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeeper(st store.Store, logger *slog.Logger, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &Housekeeper{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Non-blocking; call Stop() to shut the worker down.
func (h *Housekeeper) Start() {
	go h.run()
	h.Logger.Info("housekeeper started", "interval", h.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until any in-progress cleanup has finished.
func (h *Housekeeper) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeper stopped")
}

func (h *Housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	h.cleanup()

	for {
		select {
		case <-ticker.C:
			h.cleanup()
		case <-h.stopCh:
			return
		}
	}
}

// cleanup deletes expired rows. Each deletion is independent; a failure in
// one repository does not stop the others.
func (h *Housekeeper) cleanup() {
	ctx := context.Background()
	now := time.Now()

	// Keep expired codes around for one extra lifetime so a late replay of
	// a consumed code still trips the cascade.
	codeCutoff := now.Add(-1 * time.Hour)

	if n, err := h.Store.AuthorizationCodes().DeleteExpired(ctx, codeCutoff); err != nil {
		h.Logger.Error("failed to delete expired authorization codes", "error", err)
	} else if n > 0 {
		h.Logger.Debug("deleted expired authorization codes", "count", n)
	}

	if n, err := h.Store.AccessTokens().DeleteExpired(ctx, now); err != nil {
		h.Logger.Error("failed to delete expired access tokens", "error", err)
	} else if n > 0 {
		h.Logger.Debug("deleted expired access tokens", "count", n)
	}

	if n, err := h.Store.RefreshTokens().DeleteExpired(ctx, now); err != nil {
		h.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else if n > 0 {
		h.Logger.Debug("deleted expired refresh tokens", "count", n)
	}

	if n, err := h.Store.PreAuthorizedCodes().DeleteExpired(ctx, now); err != nil {
		h.Logger.Error("failed to delete expired pre-authorized codes", "error", err)
	} else if n > 0 {
		h.Logger.Debug("deleted expired pre-authorized codes", "count", n)
	}

	h.Logger.Info("housekeeping cleanup completed")
}
