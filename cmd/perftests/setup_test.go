package perftests

import (
	"context"
	"fmt"
	"testing"
	"time"

	bidding "market-connect/internal/biddingService"
	"market-connect/internal/models"
	"market-connect/internal/realtime"
	"market-connect/internal/repository"
)

// setupAuctions creates a bidding service over numAuctions active auctions
// named auction_0..auction_n-1, each starting at 100 with increment 1.
func setupAuctions(b *testing.B, numAuctions int, opts ...bidding.Option) (*repository.MemoryRepo, *bidding.BiddingService) {
	b.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := repository.NewMemoryRepo()
	for i := 0; i < numAuctions; i++ {
		err := repo.CreateAuction(ctx, models.Auction{
			ID:           auctionID(i),
			ProductID:    fmt.Sprintf("product_%d", i),
			SellerID:     "seller",
			Title:        fmt.Sprintf("title_%d", i),
			StartPrice:   100,
			CurrentBid:   100,
			MinIncrement: 1,
			StartTime:    now.Add(-time.Minute),
			EndTime:      now.Add(time.Hour),
			Status:       models.StatusActive,
		})
		if err != nil {
			b.Fatalf("failed to create auction: %v", err)
		}
	}
	return repo, bidding.NewBiddingService(repo, opts...)
}

// setupAuctionsWithHub also publishes every accepted bid to a hub with one
// draining subscriber per auction room.
func setupAuctionsWithHub(b *testing.B, numAuctions int) *bidding.BiddingService {
	b.Helper()

	hub := realtime.NewHub(1024, nil, nil)
	_, svc := setupAuctions(b, numAuctions, bidding.WithPublisher(hub))

	ctx, cancel := context.WithCancel(context.Background())
	b.Cleanup(func() {
		cancel()
		hub.Close()
	})
	for i := 0; i < numAuctions; i++ {
		connID := fmt.Sprintf("watcher_%d", i)
		sub := hub.Register(connID)
		if err := hub.Join(ctx, auctionID(i), connID); err != nil {
			b.Fatalf("failed to join room: %v", err)
		}
		go func() {
			for {
				select {
				case <-sub.Out():
				case <-sub.Canceled():
					return
				}
			}
		}()
	}
	return svc
}

func auctionID(i int) string {
	return fmt.Sprintf("auction_%d", i)
}

func bidder(n int) models.Bidder {
	id := fmt.Sprintf("user_%d", n)
	return models.Bidder{UserID: id, Name: id}
}
