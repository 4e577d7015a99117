package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	bidding "market-connect/internal/biddingService"
	"market-connect/internal/biddingerrors"
	"market-connect/internal/metrics"
	"market-connect/internal/models"
	"market-connect/internal/repository"
	"market-connect/utils"
)

// Mutator is the per-auction serialization point shared with bid submission
type Mutator interface {
	Mutate(ctx context.Context, auctionID string, m bidding.Mutation) (models.Auction, bool, error)
}

// Scheduler flips auction states at their boundary timestamps. All writes go
// through the Mutator so a transition and a last-moment bid are ordered.
type Scheduler struct {
	store    repository.AuctionStore
	mutator  Mutator
	interval time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewScheduler creates a Scheduler ticking every interval
func NewScheduler(store repository.AuctionStore, mutator Mutator, interval time.Duration, now func() time.Time, m *metrics.Metrics) *Scheduler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Scheduler{
		store:    store,
		mutator:  mutator,
		interval: interval,
		now:      now,
		metrics:  m,
	}
}

// Run ticks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	utils.Info("lifecycle scheduler started", map[string]any{"interval": s.interval.String()})
	for {
		select {
		case <-ctx.Done():
			utils.Info("lifecycle scheduler stopped", nil)
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick applies every due transition once and returns how many were applied.
// Failures are logged and retried on the next tick.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()
	// nothing that starts in the future is due: start precedes end
	candidates, err := s.store.ListAuctions(ctx, repository.ListFilter{
		Statuses:     []models.Status{models.StatusPending, models.StatusActive},
		StartsBefore: now.Add(time.Nanosecond),
	})
	if err != nil {
		utils.Error("lifecycle tick: failed to list auctions", map[string]any{"error": err.Error()})
		return 0
	}

	applied := 0
	for _, a := range candidates {
		if _, due := Next(a, now); !due {
			continue
		}
		n, err := s.Advance(ctx, a.ID)
		if err != nil {
			utils.Warn("lifecycle tick: transition failed", map[string]any{
				"auction_id": a.ID,
				"error":      err.Error(),
			})
			continue
		}
		applied += n
	}
	return applied
}

// Advance re-evaluates one auction under its lock and applies every due
// transition. Calling it when nothing is due is a no-op.
func (s *Scheduler) Advance(ctx context.Context, auctionID string) (int, error) {
	applied := 0
	// a Pending auction whose end already passed needs two steps
	for i := 0; i < 2; i++ {
		next, ok, err := s.mutator.Mutate(ctx, auctionID, func(cur models.Auction, now time.Time) (*bidding.Change, error) {
			to, due := Next(cur, now)
			if !due {
				return nil, nil
			}
			a, ev := transition(cur, to, now)
			return &bidding.Change{Auction: a, Events: []models.Event{ev}}, nil
		})
		if err != nil {
			return applied, err
		}
		if !ok {
			break
		}
		applied++
		s.metrics.Transitions.WithLabelValues(string(next.Status)).Inc()
		utils.Info("auction transitioned", map[string]any{
			"auction_id": auctionID,
			"status":     string(next.Status),
			"sequence":   next.Sequence,
		})
	}
	return applied, nil
}

// Cancel moves an auction to Cancelled. Pending auctions can always be
// cancelled; Active ones only while no bid has been accepted. Cancelling an
// already cancelled auction succeeds without another event.
func (s *Scheduler) Cancel(ctx context.Context, auctionID, actorID string) (models.Auction, error) {
	next, applied, err := s.mutator.Mutate(ctx, auctionID, func(cur models.Auction, now time.Time) (*bidding.Change, error) {
		switch cur.Status {
		case models.StatusCancelled:
			return nil, nil
		case models.StatusCompleted:
			return nil, fmt.Errorf("service: %w - auction %s already completed", biddingerrors.ErrAuctionNotActive, cur.ID)
		case models.StatusActive:
			if to, due := Next(cur, now); due && to == models.StatusCompleted {
				return nil, fmt.Errorf("service: %w - auction %s has reached its end time", biddingerrors.ErrAuctionNotActive, cur.ID)
			}
			if len(cur.BidHistory) > 0 {
				return nil, fmt.Errorf("service: %w - auction %s already has %d bids", biddingerrors.ErrAuctionInProgress, cur.ID, len(cur.BidHistory))
			}
		}

		a, ev := transition(cur, models.StatusCancelled, now)
		a.CancelledBy = actorID
		cancelledAt := now
		a.CancelledAt = &cancelledAt
		outcome := a.Outcome()
		ev.Outcome = &outcome
		return &bidding.Change{Auction: a, Events: []models.Event{ev}}, nil
	})
	if err != nil {
		if !errors.Is(err, biddingerrors.ErrAuctionInProgress) && !errors.Is(err, biddingerrors.ErrAuctionNotActive) {
			utils.Error("cancel auction failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
		}
		return models.Auction{}, err
	}

	if applied {
		s.metrics.Transitions.WithLabelValues(string(models.StatusCancelled)).Inc()
		utils.Info("auction cancelled", map[string]any{
			"auction_id": auctionID,
			"actor_id":   actorID,
			"sequence":   next.Sequence,
		})
	}
	return next, nil
}
