package models

import (
	"math"
	"time"
)

// Status is the lifecycle state of an auction
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can leave this status
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// rank orders statuses along Pending -> Active -> {Completed, Cancelled}
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted, StatusCancelled:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the status moving forward
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Role is the caller role supplied by the identity collaborator
type Role string

const (
	RoleBidder Role = "bidder"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Bidder is a weak reference to a participant: identity plus display name
type Bidder struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Bid is an accepted offer on an auction. Bids are never edited or deleted.
type Bid struct {
	BidID      string    `json:"bid_id"`
	AuctionID  string    `json:"auction_id"`
	Bidder     Bidder    `json:"bidder"`
	Amount     int64     `json:"amount"`
	AcceptedAt time.Time `json:"accepted_at"`
	Sequence   uint64    `json:"sequence"`
}

// Auction is a time-bounded sale of one catalog product
type Auction struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	SellerID     string    `json:"seller_id"`
	Title        string    `json:"title"`
	Images       []string  `json:"images,omitempty"`
	StartPrice   int64     `json:"start_price"`
	CurrentBid   int64     `json:"current_bid"`
	MinIncrement int64     `json:"min_increment"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       Status    `json:"status"`
	// HighestBidder is nil until the first bid is accepted
	HighestBidder *Bidder    `json:"highest_bidder,omitempty"`
	BidHistory    []Bid      `json:"bid_history"`
	Sequence      uint64     `json:"sequence"`
	CancelledBy   string     `json:"cancelled_by,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MinimumBid returns the smallest amount the next bid may carry. It saturates
// at math.MaxInt64 instead of wrapping.
func (a Auction) MinimumBid() int64 {
	step := max(a.MinIncrement, 1)
	if a.CurrentBid > math.MaxInt64-step {
		return math.MaxInt64
	}
	return a.CurrentBid + step
}

// AcceptsBids reports whether a bid may be accepted at the given server time
func (a Auction) AcceptsBids(now time.Time) bool {
	return a.Status == StatusActive && now.Before(a.EndTime)
}

// Clone returns a deep copy so callers never share the bid history slice
func (a Auction) Clone() Auction {
	out := a
	if a.Images != nil {
		out.Images = append([]string(nil), a.Images...)
	}
	out.BidHistory = append([]Bid(nil), a.BidHistory...)
	if a.HighestBidder != nil {
		hb := *a.HighestBidder
		out.HighestBidder = &hb
	}
	if a.CancelledAt != nil {
		ca := *a.CancelledAt
		out.CancelledAt = &ca
	}
	return out
}

// Outcome is the final result of an auction carried by auctionEnded events
type Outcome struct {
	Status        Status  `json:"status"`
	FinalBid      int64   `json:"final_bid"`
	HighestBidder *Bidder `json:"highest_bidder,omitempty"`
}

// Outcome reports the auction result as it currently stands
func (a Auction) Outcome() Outcome {
	out := Outcome{Status: a.Status, FinalBid: a.CurrentBid}
	if a.HighestBidder != nil {
		hb := *a.HighestBidder
		out.HighestBidder = &hb
	}
	return out
}

// EventKind identifies a broadcast event
type EventKind string

const (
	EventBidAccepted    EventKind = "bidAccepted"
	EventAuctionStarted EventKind = "auctionStarted"
	EventAuctionEnded   EventKind = "auctionEnded"
)

// Event is published to every subscriber of an auction room.
// Sequence is the auction sequence after the mutation that produced it.
type Event struct {
	Kind          EventKind `json:"kind"`
	AuctionID     string    `json:"auction_id"`
	ProductID     string    `json:"product_id"`
	Sequence      uint64    `json:"sequence"`
	CurrentBid    int64     `json:"current_bid"`
	HighestBidder *Bidder   `json:"highest_bidder,omitempty"`
	Bid           *Bid      `json:"bid,omitempty"`
	Outcome       *Outcome  `json:"outcome,omitempty"`
}
