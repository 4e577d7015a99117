package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"market-connect/internal/auth"
	bidding "market-connect/internal/biddingService"
	"market-connect/internal/biddingerrors"
	"market-connect/internal/catalog"
	"market-connect/internal/models"
	"market-connect/internal/repository"
	"market-connect/utils"
)

// Mutator runs a change inside an auction's critical section
type Mutator interface {
	Mutate(ctx context.Context, auctionID string, m bidding.Mutation) (models.Auction, bool, error)
}

// Canceller moves an auction to Cancelled under the lifecycle rules
type Canceller interface {
	Cancel(ctx context.Context, auctionID, actorID string) (models.Auction, error)
}

// CreateAuctionInput is what a seller supplies to open an auction
type CreateAuctionInput struct {
	ProductID    string
	StartPrice   int64
	MinIncrement int64
	StartTime    time.Time
	EndTime      time.Time
}

// UpdateAuctionInput changes a Pending auction. Nil fields stay as they are.
type UpdateAuctionInput struct {
	StartTime  *time.Time
	EndTime    *time.Time
	StartPrice *int64
}

// Registry is the catalog-facing side of auctions: creation, listing,
// schedule edits and cancellation.
type Registry struct {
	store     repository.AuctionStore
	mutator   Mutator
	canceller Canceller
	catalog   catalog.Catalog
	now       func() time.Time

	// serializes creates so a product never gets two live auctions
	createMu sync.Mutex
}

// NewRegistry creates a Registry. A nil now uses the UTC wall clock.
func NewRegistry(store repository.AuctionStore, mutator Mutator, canceller Canceller, cat catalog.Catalog, now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{
		store:     store,
		mutator:   mutator,
		canceller: canceller,
		catalog:   cat,
		now:       now,
	}
}

// Create opens an auction for a catalog product. The auction starts Active
// when its start time has already come, Pending otherwise.
func (r *Registry) Create(ctx context.Context, caller auth.Identity, in CreateAuctionInput) (models.Auction, error) {
	now := r.now()
	if in.ProductID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing product id", biddingerrors.ErrInvalidAuction)
	}
	if err := validateTerms(in.StartTime, in.EndTime, in.StartPrice, in.MinIncrement, now); err != nil {
		return models.Auction{}, err
	}

	product, err := r.catalog.Product(ctx, in.ProductID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to look up product %s: %w", in.ProductID, err)
	}
	if !canManage(caller, product.SellerID) {
		return models.Auction{}, fmt.Errorf("service: %w - user %s does not own product %s", biddingerrors.ErrUnauthorized, caller.UserID, product.ID)
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if live, err := r.liveAuction(ctx, product.ID); err == nil {
		return models.Auction{}, fmt.Errorf("service: %w - product %s already has auction %s", biddingerrors.ErrAuctionExists, product.ID, live.ID)
	} else if !errors.Is(err, biddingerrors.ErrAuctionNotFound) {
		return models.Auction{}, err
	}

	status := models.StatusPending
	if !now.Before(in.StartTime) {
		status = models.StatusActive
	}
	a := models.Auction{
		ID:           utils.GenerateID(),
		ProductID:    product.ID,
		SellerID:     product.SellerID,
		Title:        product.Title,
		Images:       product.Images,
		StartPrice:   in.StartPrice,
		CurrentBid:   in.StartPrice,
		MinIncrement: in.MinIncrement,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Status:       status,
		BidHistory:   []models.Bid{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.CreateAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for product %s: %w", product.ID, err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id": a.ID,
		"product_id": a.ProductID,
		"status":     string(a.Status),
		"created_by": caller.UserID,
	})
	return a, nil
}

// Get returns the auction snapshot with its bid history
func (r *Registry) Get(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	a, err := r.store.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// ListActive returns the auctions currently taking bids
func (r *Registry) ListActive(ctx context.Context) ([]models.Auction, error) {
	return r.list(ctx, repository.ListFilter{Statuses: []models.Status{models.StatusActive}})
}

// ListUpcoming returns Pending auctions that have not reached their start time
func (r *Registry) ListUpcoming(ctx context.Context) ([]models.Auction, error) {
	return r.list(ctx, repository.ListFilter{
		Statuses:    []models.Status{models.StatusPending},
		StartsAfter: r.now(),
	})
}

// ListAll returns every auction in every status. Admins only.
func (r *Registry) ListAll(ctx context.Context, caller auth.Identity) ([]models.Auction, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("service: %w - listing all auctions requires admin", biddingerrors.ErrUnauthorized)
	}
	return r.list(ctx, repository.ListFilter{})
}

func (r *Registry) list(ctx context.Context, filter repository.ListFilter) ([]models.Auction, error) {
	auctions, err := r.store.ListAuctions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// Update edits the schedule or start price of a Pending auction. It runs in
// the auction's critical section, so it cannot interleave with the start.
func (r *Registry) Update(ctx context.Context, caller auth.Identity, auctionID string, in UpdateAuctionInput) (models.Auction, error) {
	if in.StartTime == nil && in.EndTime == nil && in.StartPrice == nil {
		return models.Auction{}, fmt.Errorf("service: %w - nothing to update", biddingerrors.ErrInvalidAuction)
	}

	updated, _, err := r.mutator.Mutate(ctx, auctionID, func(cur models.Auction, now time.Time) (*bidding.Change, error) {
		if !canManage(caller, cur.SellerID) {
			return nil, fmt.Errorf("service: %w - user %s cannot edit auction %s", biddingerrors.ErrUnauthorized, caller.UserID, cur.ID)
		}
		if cur.Status != models.StatusPending {
			return nil, fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionInProgress, cur.ID, cur.Status)
		}

		next := cur.Clone()
		if in.StartTime != nil {
			next.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			next.EndTime = *in.EndTime
		}
		if in.StartPrice != nil {
			next.StartPrice = *in.StartPrice
			next.CurrentBid = *in.StartPrice
		}
		if err := validateTerms(next.StartTime, next.EndTime, next.StartPrice, next.MinIncrement, now); err != nil {
			return nil, err
		}
		next.UpdatedAt = now
		return &bidding.Change{Auction: next}, nil
	})
	if err != nil {
		return models.Auction{}, err
	}

	utils.Info("auction updated", map[string]any{
		"auction_id": auctionID,
		"updated_by": caller.UserID,
	})
	return updated, nil
}

// Cancel cancels an auction on behalf of its seller or an admin
func (r *Registry) Cancel(ctx context.Context, caller auth.Identity, auctionID string) (models.Auction, error) {
	cur, err := r.Get(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	if !canManage(caller, cur.SellerID) {
		return models.Auction{}, fmt.Errorf("service: %w - user %s cannot cancel auction %s", biddingerrors.ErrUnauthorized, caller.UserID, auctionID)
	}
	return r.canceller.Cancel(ctx, auctionID, caller.UserID)
}

// LiveAuctionForProduct returns the id of the product's Pending or Active auction
func (r *Registry) LiveAuctionForProduct(ctx context.Context, productID string) (string, error) {
	a, err := r.liveAuction(ctx, productID)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

func (r *Registry) liveAuction(ctx context.Context, productID string) (models.Auction, error) {
	live, err := r.list(ctx, repository.ListFilter{Statuses: []models.Status{models.StatusActive, models.StatusPending}})
	if err != nil {
		return models.Auction{}, err
	}
	for _, a := range live {
		if a.ProductID == productID {
			return a, nil
		}
	}
	return models.Auction{}, fmt.Errorf("service: %w - no live auction for product %s", biddingerrors.ErrAuctionNotFound, productID)
}

func canManage(caller auth.Identity, sellerID string) bool {
	return caller.IsAdmin() || (caller.UserID != "" && caller.UserID == sellerID)
}

// validateTerms checks the fields shared by Create and Update
func validateTerms(start, end time.Time, startPrice, minIncrement int64, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("service: %w - start and end time are required", biddingerrors.ErrInvalidAuction)
	}
	if !start.Before(end) {
		return fmt.Errorf("service: %w - start time must be before end time", biddingerrors.ErrInvalidAuction)
	}
	if !now.Before(end) {
		return fmt.Errorf("service: %w - end time is in the past", biddingerrors.ErrInvalidAuction)
	}
	if startPrice < 0 {
		return fmt.Errorf("service: %w - negative start price", biddingerrors.ErrInvalidAuction)
	}
	if minIncrement < 0 {
		return fmt.Errorf("service: %w - negative minimum increment", biddingerrors.ErrInvalidAuction)
	}
	if startPrice > math.MaxInt64-max(minIncrement, 1) {
		return fmt.Errorf("service: %w - start price leaves no room for a bid", biddingerrors.ErrInvalidAuction)
	}
	return nil
}
