package realtime

import (
	"encoding/json"
	"fmt"

	"market-connect/internal/models"
)

// Kind is the "type" field of a websocket envelope.
type Kind string

// client -> server
const (
	KindJoinRoom  Kind = "joinAuctionRoom"
	KindLeaveRoom Kind = "leaveAuctionRoom"
	KindPlaceBid  Kind = "placeBid"
)

// server -> client
const (
	KindJoined         Kind = "joined"
	KindBidUpdate      Kind = "bidUpdate"
	KindBidError       Kind = "bidError"
	KindAuctionStarted Kind = "auctionStarted"
	KindAuctionEnded   Kind = "auctionEnded"
	KindError          Kind = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomRequest is the payload of joinAuctionRoom and leaveAuctionRoom.
type RoomRequest struct {
	AuctionID string `json:"auctionId"`
}

// PlaceBidRequest is the payload of placeBid. Either AuctionID or ProductID
// selects the auction; ProductID resolves to the product's live auction.
// UserID is optional and must match the authenticated identity when given.
type PlaceBidRequest struct {
	AuctionID string `json:"auctionId,omitempty"`
	ProductID string `json:"productId,omitempty"`
	BidAmount int64  `json:"bidAmount"`
	UserID    string `json:"userId,omitempty"`
}

// Joined confirms a room join and carries the snapshot to start from.
type Joined struct {
	AuctionID string          `json:"auctionId"`
	Auction   *models.Auction `json:"auction,omitempty"`
}

// BidUpdate announces an accepted bid.
type BidUpdate struct {
	AuctionID     string         `json:"auctionId"`
	ProductID     string         `json:"productId"`
	Sequence      uint64         `json:"sequence"`
	CurrentBid    int64          `json:"currentBid"`
	HighestBidder *models.Bidder `json:"highestBidder,omitempty"`
	Bid           *models.Bid    `json:"bid,omitempty"`
}

// BidError is sent only to the submitter of a rejected bid.
type BidError struct {
	AuctionID  string `json:"auctionId"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
	CurrentBid *int64 `json:"currentBid,omitempty"`
	MinimumBid *int64 `json:"minimumBid,omitempty"`
}

// AuctionStarted announces Pending -> Active.
type AuctionStarted struct {
	AuctionID string `json:"auctionId"`
	ProductID string `json:"productId"`
	Sequence  uint64 `json:"sequence"`
}

// AuctionEnded announces a terminal transition with its outcome.
type AuctionEnded struct {
	AuctionID string          `json:"auctionId"`
	ProductID string          `json:"productId"`
	Sequence  uint64          `json:"sequence"`
	Outcome   *models.Outcome `json:"outcome,omitempty"`
}

// ErrorMessage reports a malformed or unknown inbound message.
type ErrorMessage struct {
	Message string `json:"message"`
}

// NewEnvelope marshals payload under the given kind.
func NewEnvelope(kind Kind, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("realtime: encode %s: %w", kind, err)
	}
	return Envelope{Type: kind, Payload: raw}, nil
}

// EventEnvelope maps a room event onto its outbound message.
func EventEnvelope(ev models.Event) (Envelope, error) {
	switch ev.Kind {
	case models.EventBidAccepted:
		return NewEnvelope(KindBidUpdate, BidUpdate{
			AuctionID:     ev.AuctionID,
			ProductID:     ev.ProductID,
			Sequence:      ev.Sequence,
			CurrentBid:    ev.CurrentBid,
			HighestBidder: ev.HighestBidder,
			Bid:           ev.Bid,
		})
	case models.EventAuctionStarted:
		return NewEnvelope(KindAuctionStarted, AuctionStarted{
			AuctionID: ev.AuctionID,
			ProductID: ev.ProductID,
			Sequence:  ev.Sequence,
		})
	case models.EventAuctionEnded:
		return NewEnvelope(KindAuctionEnded, AuctionEnded{
			AuctionID: ev.AuctionID,
			ProductID: ev.ProductID,
			Sequence:  ev.Sequence,
			Outcome:   ev.Outcome,
		})
	default:
		return Envelope{}, fmt.Errorf("realtime: unknown event kind %q", ev.Kind)
	}
}

// DecodeEvent turns an outbound room message back into the event it came from.
// It is the client-side inverse of EventEnvelope.
func DecodeEvent(env Envelope) (models.Event, error) {
	switch env.Type {
	case KindBidUpdate:
		var p BidUpdate
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return models.Event{}, fmt.Errorf("realtime: decode %s: %w", env.Type, err)
		}
		return models.Event{
			Kind:          models.EventBidAccepted,
			AuctionID:     p.AuctionID,
			ProductID:     p.ProductID,
			Sequence:      p.Sequence,
			CurrentBid:    p.CurrentBid,
			HighestBidder: p.HighestBidder,
			Bid:           p.Bid,
		}, nil
	case KindAuctionStarted:
		var p AuctionStarted
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return models.Event{}, fmt.Errorf("realtime: decode %s: %w", env.Type, err)
		}
		return models.Event{Kind: models.EventAuctionStarted, AuctionID: p.AuctionID, ProductID: p.ProductID, Sequence: p.Sequence}, nil
	case KindAuctionEnded:
		var p AuctionEnded
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return models.Event{}, fmt.Errorf("realtime: decode %s: %w", env.Type, err)
		}
		return models.Event{Kind: models.EventAuctionEnded, AuctionID: p.AuctionID, ProductID: p.ProductID, Sequence: p.Sequence, Outcome: p.Outcome}, nil
	default:
		return models.Event{}, fmt.Errorf("realtime: %q is not a room event", env.Type)
	}
}
