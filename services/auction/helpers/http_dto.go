package helpers

import (
	"time"

	"market-connect/internal/models"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	ProductID    string    `json:"product_id" binding:"required"`
	StartPrice   int64     `json:"start_price" binding:"gte=0"`
	MinIncrement int64     `json:"min_increment" binding:"gte=0"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required"`
}

// UpdateAuctionRequest only carries the fields a seller may still change
type UpdateAuctionRequest struct {
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	StartPrice *int64     `json:"start_price" binding:"omitempty,gte=0"`
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
	// UserID is optional; when present it must match the token
	UserID string `json:"user_id"`
}

type BidResponse struct {
	BidID      string `json:"bid_id"`
	AuctionID  string `json:"auction_id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	Sequence   uint64 `json:"sequence"`
	AcceptedAt string `json:"accepted_at"`
}

type AuctionResponse struct {
	ID            string         `json:"id"`
	ProductID     string         `json:"product_id"`
	SellerID      string         `json:"seller_id"`
	Title         string         `json:"title"`
	Images        []string       `json:"images"`
	StartPrice    int64          `json:"start_price"`
	CurrentBid    int64          `json:"current_bid"`
	MinIncrement  int64          `json:"min_increment"`
	MinimumBid    int64          `json:"minimum_bid"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	Status        models.Status  `json:"status"`
	HighestBidder *models.Bidder `json:"highest_bidder,omitempty"`
	Sequence      uint64         `json:"sequence"`
	BidHistory    []BidResponse  `json:"bid_history,omitempty"`
	CancelledBy   string         `json:"cancelled_by,omitempty"`
}

// BidTooLowDetails lets a client retry straight away
type BidTooLowDetails struct {
	CurrentBid int64 `json:"current_bid"`
	MinimumBid int64 `json:"minimum_bid"`
}

// ToBidResponse converts an accepted bid
func ToBidResponse(b models.Bid) BidResponse {
	return BidResponse{
		BidID:      b.BidID,
		AuctionID:  b.AuctionID,
		UserID:     b.Bidder.UserID,
		Name:       b.Bidder.Name,
		Amount:     b.Amount,
		Sequence:   b.Sequence,
		AcceptedAt: b.AcceptedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToBidResponses converts a bid history, never returning nil
func ToBidResponses(bids []models.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, ToBidResponse(b))
	}
	return out
}

// ToAuctionResponse converts a snapshot. The bid history is included only
// when withBids is set.
func ToAuctionResponse(a models.Auction, withBids bool) AuctionResponse {
	images := a.Images
	if images == nil {
		images = []string{}
	}
	resp := AuctionResponse{
		ID:            a.ID,
		ProductID:     a.ProductID,
		SellerID:      a.SellerID,
		Title:         a.Title,
		Images:        images,
		StartPrice:    a.StartPrice,
		CurrentBid:    a.CurrentBid,
		MinIncrement:  a.MinIncrement,
		MinimumBid:    a.MinimumBid(),
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Status:        a.Status,
		HighestBidder: a.HighestBidder,
		Sequence:      a.Sequence,
		CancelledBy:   a.CancelledBy,
	}
	if withBids {
		resp.BidHistory = ToBidResponses(a.BidHistory)
	}
	return resp
}

// ToAuctionResponses converts a listing without bid histories
func ToAuctionResponses(auctions []models.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, ToAuctionResponse(a, false))
	}
	return out
}
