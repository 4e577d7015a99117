package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-connect/internal/biddingerrors"
	model "market-connect/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// ListFilter narrows an auction listing. Zero values mean "no constraint".
type ListFilter struct {
	Statuses      []model.Status
	StartsAfter   time.Time
	StartsBefore  time.Time
	IncludeBidLog bool
}

// Matches reports whether the auction passes the filter
func (f ListFilter) Matches(a model.Auction) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.StartsAfter.IsZero() && !a.StartTime.After(f.StartsAfter) {
		return false
	}
	if !f.StartsBefore.IsZero() && !a.StartTime.Before(f.StartsBefore) {
		return false
	}
	return true
}

// AuctionStore is the durable record of auctions and their bid history.
// It owns no business rules; callers serialize writes per auction.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAuctions(ctx context.Context, filter ListFilter) ([]model.Auction, error)
	// UpdateAuction replaces the auction fields (never the bid history).
	// prevSequence must match the stored sequence.
	UpdateAuction(ctx context.Context, auction model.Auction, prevSequence uint64) error
	// CommitBid appends bid and stores the updated auction atomically.
	// prevSequence must match the stored sequence.
	CommitBid(ctx context.Context, auction model.Auction, bid model.Bid, prevSequence uint64) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionStore
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction // key: auctionID -> value: auction without history
	bids     map[string][]model.Bid   // key: auctionID -> value: accepted bids in sequence order
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.ID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.ID, biddingerrors.ErrAuctionExists)
	}

	stored := auction.Clone()
	r.bids[auction.ID] = stored.BidHistory
	stored.BidHistory = nil
	r.auctions[auction.ID] = stored
	return nil
}

// GetAuction returns a snapshot of an auction including its bid history
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return r.snapshot(a, true), nil
}

// ListAuctions returns auctions matching filter ordered by start time
func (r *MemoryRepo) ListAuctions(_ context.Context, filter ListFilter) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if filter.Matches(a) {
			out = append(out, r.snapshot(a, filter.IncludeBidLog))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// UpdateAuction replaces the stored auction fields
func (r *MemoryRepo) UpdateAuction(_ context.Context, auction model.Auction, prevSequence uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkSequence(auction.ID, prevSequence); err != nil {
		return fmt.Errorf("update auction %s: %w", auction.ID, err)
	}

	stored := auction.Clone()
	stored.BidHistory = nil
	r.auctions[auction.ID] = stored
	return nil
}

// CommitBid appends a bid and stores the auction in one step
func (r *MemoryRepo) CommitBid(_ context.Context, auction model.Auction, bid model.Bid, prevSequence uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkSequence(auction.ID, prevSequence); err != nil {
		return fmt.Errorf("commit bid on auction %s: %w", auction.ID, err)
	}

	stored := auction.Clone()
	stored.BidHistory = nil
	r.auctions[auction.ID] = stored
	r.bids[auction.ID] = append(r.bids[auction.ID], bid)
	return nil
}

func (r *MemoryRepo) checkSequence(auctionID string, prevSequence uint64) error {
	current, ok := r.auctions[auctionID]
	if !ok {
		return biddingerrors.ErrAuctionNotFound
	}
	if current.Sequence != prevSequence {
		return fmt.Errorf("%w - stored %d, expected %d", biddingerrors.ErrSequenceConflict, current.Sequence, prevSequence)
	}
	return nil
}

func (r *MemoryRepo) snapshot(a model.Auction, withBids bool) model.Auction {
	out := a.Clone()
	if withBids {
		out.BidHistory = append([]model.Bid{}, r.bids[a.ID]...)
	} else {
		out.BidHistory = nil
	}
	return out
}
