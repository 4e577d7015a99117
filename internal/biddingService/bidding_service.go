package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-connect/internal/biddingerrors"
	"market-connect/internal/metrics"
	"market-connect/internal/models"
	"market-connect/internal/repository"
	"market-connect/utils"
)

// Publisher receives events after they have been committed
type Publisher interface {
	Publish(auctionID string, event models.Event)
}

// Change is what a Mutation wants committed: the new auction fields and the
// events to publish once the write is durable.
type Change struct {
	Auction models.Auction
	Events  []models.Event
}

// Mutation inspects the current auction inside its critical section. It
// returns nil when there is nothing to do.
type Mutation func(current models.Auction, now time.Time) (*Change, error)

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock replaces time.Now as the authoritative server clock
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) { s.now = now }
}

// WithPublisher sets where committed events are sent
func WithPublisher(p Publisher) Option {
	return func(s *BiddingService) { s.publisher = p }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BiddingService) { s.metrics = m }
}

// BiddingService is the per-auction serialization point. Every write to an
// auction's price, status or sequence goes through SubmitBid or Mutate, which
// hold that auction's lock; different auctions never contend.
type BiddingService struct {
	repo      repository.AuctionStore
	locks     *auctionLocks
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionStore, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:      repo,
		locks:     newAuctionLocks(),
		publisher: noopPublisher{},
		metrics:   metrics.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the server time used for every acceptance decision
func (s *BiddingService) Now() time.Time {
	return s.now()
}

// SubmitBid validates and commits a bid. On success the returned Bid carries
// the new current price and the auction sequence assigned to it. Rejections
// wrap one of the biddingerrors sentinels; a BidTooLow rejection is a
// *biddingerrors.BidTooLowError carrying the price it was evaluated against.
func (s *BiddingService) SubmitBid(ctx context.Context, auctionID string, bidder models.Bidder, amount int64) (models.Bid, error) {
	if err := validateBidInput(auctionID, bidder, amount); err != nil {
		s.reject(err)
		return models.Bid{}, err
	}

	release, err := s.enter(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: bid on auction %s not admitted: %w", auctionID, err)
	}
	defer release()

	// the outcome is decided from here on, so a caller hanging up must not abort the commit
	ctx = context.WithoutCancel(ctx)

	bid, err := s.acceptLocked(ctx, auctionID, bidder, amount)
	if err != nil {
		s.reject(err)
		return models.Bid{}, err
	}

	s.metrics.BidsAccepted.Inc()
	return bid, nil
}

func (s *BiddingService) acceptLocked(ctx context.Context, auctionID string, bidder models.Bidder, amount int64) (models.Bid, error) {
	current, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	now := s.now()
	if !current.AcceptsBids(now) {
		return models.Bid{}, fmt.Errorf("service: %w - auction %s is %s, ends %s", biddingerrors.ErrAuctionNotActive, auctionID, current.Status, current.EndTime.Format(time.RFC3339))
	}
	if bidder.UserID == current.SellerID {
		return models.Bid{}, fmt.Errorf("service: %w - seller cannot bid on own auction %s", biddingerrors.ErrUnauthorized, auctionID)
	}
	// a saturated minimum still has to beat the current price
	if minimum := current.MinimumBid(); amount < minimum || amount <= current.CurrentBid {
		return models.Bid{}, fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{CurrentBid: current.CurrentBid, MinimumBid: minimum})
	}

	next := current.Clone()
	next.Sequence++
	bid := models.Bid{
		BidID:      utils.GenerateID(),
		AuctionID:  auctionID,
		Bidder:     bidder,
		Amount:     amount,
		AcceptedAt: now,
		Sequence:   next.Sequence,
	}
	next.CurrentBid = amount
	leader := bidder
	next.HighestBidder = &leader
	next.BidHistory = append(next.BidHistory, bid)
	next.UpdatedAt = now

	if err := s.repo.CommitBid(ctx, next, bid, current.Sequence); err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by user %s: %w", auctionID, bidder.UserID, err)
	}

	s.publish(auctionID, models.Event{
		Kind:          models.EventBidAccepted,
		AuctionID:     auctionID,
		ProductID:     next.ProductID,
		Sequence:      bid.Sequence,
		CurrentBid:    bid.Amount,
		HighestBidder: &leader,
		Bid:           &bid,
	})

	utils.Debug("bid accepted", map[string]any{
		"auction_id": auctionID,
		"user_id":    bidder.UserID,
		"amount":     amount,
		"sequence":   bid.Sequence,
	})
	return bid, nil
}

// Mutate runs m against the current auction inside the auction's critical
// section and commits the returned change. It reports whether anything was
// written. Status may only move forward and the sequence may only grow.
func (s *BiddingService) Mutate(ctx context.Context, auctionID string, m Mutation) (models.Auction, bool, error) {
	release, err := s.enter(ctx, auctionID)
	if err != nil {
		return models.Auction{}, false, fmt.Errorf("service: mutation on auction %s not admitted: %w", auctionID, err)
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	current, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, false, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	change, err := m(current.Clone(), s.now())
	if err != nil {
		return current, false, err
	}
	if change == nil {
		return current, false, nil
	}

	next := change.Auction
	if next.ID != current.ID {
		return current, false, fmt.Errorf("service: mutation changed auction id %s to %s", current.ID, next.ID)
	}
	if next.Status != current.Status && !current.Status.CanAdvanceTo(next.Status) {
		return current, false, fmt.Errorf("service: illegal transition %s -> %s on auction %s", current.Status, next.Status, auctionID)
	}
	if next.Sequence < current.Sequence {
		return current, false, fmt.Errorf("service: mutation rewound sequence on auction %s", auctionID)
	}

	if err := s.repo.UpdateAuction(ctx, next, current.Sequence); err != nil {
		return current, false, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}

	for _, ev := range change.Events {
		s.publish(auctionID, ev)
	}
	return next, true, nil
}

// GetBidsForAuction returns the accepted bids of an auction in sequence order
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return a.BidHistory, nil
}

// GetWinningBid returns the leading bid of an auction
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	bids, err := s.GetBidsForAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	if len(bids) == 0 {
		return models.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	// the history is strictly increasing, so the last entry leads
	return bids[len(bids)-1], nil
}

func (s *BiddingService) enter(ctx context.Context, auctionID string) (func(), error) {
	start := time.Now()
	release, err := s.locks.acquire(ctx, auctionID)
	s.metrics.SerializerWait.Observe(time.Since(start).Seconds())
	return release, err
}

func (s *BiddingService) publish(auctionID string, ev models.Event) {
	s.publisher.Publish(auctionID, ev)
}

func (s *BiddingService) reject(err error) {
	s.metrics.BidsRejected.WithLabelValues(biddingerrors.Reason(err)).Inc()
}

// validateBidInput checks input validity before touching the auction
func validateBidInput(auctionID string, bidder models.Bidder, amount int64) error {
	if auctionID == "" || bidder.UserID == "" {
		return fmt.Errorf("service: %w - missing auctionID or userID", biddingerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	return nil
}

// IsRejection reports whether err is a business rejection rather than a failure
func IsRejection(err error) bool {
	return errors.Is(err, biddingerrors.ErrAuctionNotActive) ||
		errors.Is(err, biddingerrors.ErrAuctionNotFound) ||
		errors.Is(err, biddingerrors.ErrBidTooLow) ||
		errors.Is(err, biddingerrors.ErrUnauthorized) ||
		errors.Is(err, biddingerrors.ErrInvalidBid)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, models.Event) {}
