package auction

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-connect/internal/auth"
	bidding "market-connect/internal/biddingService"
	"market-connect/internal/biddingerrors"
	"market-connect/internal/catalog"
	"market-connect/internal/lifecycle"
	"market-connect/internal/models"
	"market-connect/internal/repository"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

var (
	seller = auth.Identity{UserID: "seller1", Name: "Sam", Role: models.RoleSeller}
	other  = auth.Identity{UserID: "seller2", Name: "Kim", Role: models.RoleSeller}
	admin  = auth.Identity{UserID: "root", Name: "Root", Role: models.RoleAdmin}
	buyer  = auth.Identity{UserID: "u1", Name: "Ada", Role: models.RoleBidder}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	clock     *clock
	repo      *repository.MemoryRepo
	svc       *bidding.BiddingService
	scheduler *lifecycle.Scheduler
	registry  *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{now: t0}
	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, bidding.WithClock(clk.Now))
	sched := lifecycle.NewScheduler(repo, svc, time.Second, clk.Now, nil)
	cat := catalog.NewStaticCatalog(
		catalog.Product{ID: "p1", Title: "Camera", Images: []string{"cam.jpg"}, SellerID: "seller1"},
		catalog.Product{ID: "p2", Title: "Lamp", SellerID: "seller1"},
	)
	return &fixture{
		clock:     clk,
		repo:      repo,
		svc:       svc,
		scheduler: sched,
		registry:  NewRegistry(repo, svc, sched, cat, clk.Now),
	}
}

func (f *fixture) create(t *testing.T, productID string, start, end time.Time) models.Auction {
	t.Helper()
	a, err := f.registry.Create(context.Background(), seller, CreateAuctionInput{
		ProductID:    productID,
		StartPrice:   1000,
		MinIncrement: 100,
		StartTime:    start,
		EndTime:      end,
	})
	require.NoError(t, err)
	return a
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		caller  auth.Identity
		input   CreateAuctionInput
		wantErr error
		want    models.Status
	}{
		{
			name:   "future_start_is_pending",
			caller: seller,
			input:  CreateAuctionInput{ProductID: "p1", StartPrice: 1000, MinIncrement: 100, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)},
			want:   models.StatusPending,
		},
		{
			name:   "past_start_is_active",
			caller: seller,
			input:  CreateAuctionInput{ProductID: "p1", StartPrice: 1000, StartTime: t0.Add(-time.Minute), EndTime: t0.Add(time.Hour)},
			want:   models.StatusActive,
		},
		{
			name:   "admin_may_create",
			caller: admin,
			input:  CreateAuctionInput{ProductID: "p1", StartPrice: 0, StartTime: t0, EndTime: t0.Add(time.Hour)},
			want:   models.StatusActive,
		},
		{
			name:    "not_the_owner",
			caller:  other,
			input:   CreateAuctionInput{ProductID: "p1", StartPrice: 1000, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)},
			wantErr: biddingerrors.ErrUnauthorized,
		},
		{
			name:    "unknown_product",
			caller:  seller,
			input:   CreateAuctionInput{ProductID: "nope", StartPrice: 1000, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)},
			wantErr: biddingerrors.ErrProductNotFound,
		},
		{
			name:    "end_before_start",
			caller:  seller,
			input:   CreateAuctionInput{ProductID: "p1", StartPrice: 1000, StartTime: t0.Add(2 * time.Hour), EndTime: t0.Add(time.Hour)},
			wantErr: biddingerrors.ErrInvalidAuction,
		},
		{
			name:    "end_in_past",
			caller:  seller,
			input:   CreateAuctionInput{ProductID: "p1", StartPrice: 1000, StartTime: t0.Add(-2 * time.Hour), EndTime: t0.Add(-time.Hour)},
			wantErr: biddingerrors.ErrInvalidAuction,
		},
		{
			name:    "negative_price",
			caller:  seller,
			input:   CreateAuctionInput{ProductID: "p1", StartPrice: -1, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)},
			wantErr: biddingerrors.ErrInvalidAuction,
		},
		{
			name:    "negative_increment",
			caller:  seller,
			input:   CreateAuctionInput{ProductID: "p1", StartPrice: 1, MinIncrement: -5, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)},
			wantErr: biddingerrors.ErrInvalidAuction,
		},
		{
			name:    "price_at_int64_limit",
			caller:  seller,
			input:   CreateAuctionInput{ProductID: "p1", StartPrice: math.MaxInt64 - 10, MinIncrement: 100, StartTime: t0.Add(-time.Minute), EndTime: t0.Add(time.Hour)},
			wantErr: biddingerrors.ErrInvalidAuction,
		},
		{
			name:    "missing_product",
			caller:  seller,
			input:   CreateAuctionInput{StartPrice: 1, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)},
			wantErr: biddingerrors.ErrInvalidAuction,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			a, err := f.registry.Create(context.Background(), tt.caller, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				all, listErr := f.repo.ListAuctions(context.Background(), repository.ListFilter{})
				require.NoError(t, listErr)
				require.Empty(t, all)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, a.Status)
			require.Equal(t, tt.input.StartPrice, a.CurrentBid)
			require.Equal(t, uint64(0), a.Sequence)
			require.Equal(t, "seller1", a.SellerID)
			require.Equal(t, "Camera", a.Title)
			require.Nil(t, a.HighestBidder)

			stored, err := f.registry.Get(context.Background(), a.ID)
			require.NoError(t, err)
			require.Equal(t, a.ID, stored.ID)
			require.Equal(t, tt.want, stored.Status)
		})
	}
}

func TestRegistry_OneLiveAuctionPerProduct(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "p1", t0.Add(time.Hour), t0.Add(2*time.Hour))
	_, err := f.registry.Create(ctx, seller, CreateAuctionInput{ProductID: "p1", StartPrice: 1, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)})
	require.ErrorIs(t, err, biddingerrors.ErrAuctionExists)

	id, err := f.registry.LiveAuctionForProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, first.ID, id)

	_, err = f.registry.Cancel(ctx, seller, first.ID)
	require.NoError(t, err)

	_, err = f.registry.LiveAuctionForProduct(ctx, "p1")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	f.create(t, "p1", t0.Add(time.Hour), t0.Add(2*time.Hour))
}

func TestRegistry_Listings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	active := f.create(t, "p1", t0.Add(-time.Minute), t0.Add(time.Hour))
	upcoming := f.create(t, "p2", t0.Add(time.Hour), t0.Add(2*time.Hour))

	list, err := f.registry.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, active.ID, list[0].ID)

	list, err = f.registry.ListUpcoming(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, upcoming.ID, list[0].ID)

	_, err = f.registry.ListAll(ctx, seller)
	require.ErrorIs(t, err, biddingerrors.ErrUnauthorized)

	list, err = f.registry.ListAll(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = f.registry.Get(ctx, "missing")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	_, err = f.registry.Get(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)
}

func TestRegistry_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	price := func(v int64) *int64 { return &v }
	at := func(d time.Duration) *time.Time { ts := t0.Add(d); return &ts }

	t.Run("pending_fields_change", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(time.Hour), t0.Add(2*time.Hour))

		updated, err := f.registry.Update(ctx, seller, a.ID, UpdateAuctionInput{
			StartTime:  at(30 * time.Minute),
			EndTime:    at(3 * time.Hour),
			StartPrice: price(2500),
		})
		require.NoError(t, err)
		require.Equal(t, int64(2500), updated.StartPrice)
		require.Equal(t, int64(2500), updated.CurrentBid)
		require.Equal(t, t0.Add(30*time.Minute), updated.StartTime)
		require.Equal(t, a.Sequence, updated.Sequence)

		stored, err := f.registry.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, t0.Add(3*time.Hour), stored.EndTime)
	})

	t.Run("active_auction_is_in_progress", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(-time.Minute), t0.Add(time.Hour))

		_, err := f.registry.Update(ctx, seller, a.ID, UpdateAuctionInput{StartPrice: price(500)})
		require.ErrorIs(t, err, biddingerrors.ErrAuctionInProgress)

		stored, err := f.registry.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1000), stored.StartPrice)
	})

	t.Run("started_by_scheduler_then_update", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(time.Minute), t0.Add(time.Hour))

		f.clock.Set(t0.Add(time.Minute))
		require.Equal(t, 1, f.scheduler.Tick(ctx))

		_, err := f.registry.Update(ctx, seller, a.ID, UpdateAuctionInput{EndTime: at(2 * time.Hour)})
		require.ErrorIs(t, err, biddingerrors.ErrAuctionInProgress)
	})

	t.Run("invalid_window", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(time.Hour), t0.Add(2*time.Hour))

		_, err := f.registry.Update(ctx, seller, a.ID, UpdateAuctionInput{EndTime: at(30 * time.Minute)})
		require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)

		_, err = f.registry.Update(ctx, seller, a.ID, UpdateAuctionInput{})
		require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)
	})

	t.Run("other_seller", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(time.Hour), t0.Add(2*time.Hour))

		_, err := f.registry.Update(ctx, other, a.ID, UpdateAuctionInput{StartPrice: price(1)})
		require.ErrorIs(t, err, biddingerrors.ErrUnauthorized)

		_, err = f.registry.Update(ctx, admin, a.ID, UpdateAuctionInput{StartPrice: price(1)})
		require.NoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.registry.Update(ctx, admin, "missing", UpdateAuctionInput{StartPrice: price(1)})
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

func TestRegistry_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("seller_cancels_pending", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(time.Hour), t0.Add(2*time.Hour))

		_, err := f.registry.Cancel(ctx, other, a.ID)
		require.ErrorIs(t, err, biddingerrors.ErrUnauthorized)
		_, err = f.registry.Cancel(ctx, buyer, a.ID)
		require.ErrorIs(t, err, biddingerrors.ErrUnauthorized)

		cancelled, err := f.registry.Cancel(ctx, seller, a.ID)
		require.NoError(t, err)
		require.Equal(t, models.StatusCancelled, cancelled.Status)
		require.Equal(t, "seller1", cancelled.CancelledBy)
	})

	t.Run("active_with_bids", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := f.create(t, "p1", t0.Add(-time.Minute), t0.Add(time.Hour))

		_, err := f.svc.SubmitBid(ctx, a.ID, buyer.Bidder(), 1100)
		require.NoError(t, err)

		_, err = f.registry.Cancel(ctx, admin, a.ID)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionInProgress)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.registry.Cancel(ctx, admin, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}
