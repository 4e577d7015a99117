package realtime

import (
	"errors"
	"fmt"

	"market-connect/internal/models"
)

// ErrSequenceGap means at least one event was missed; resync from a snapshot.
var ErrSequenceGap = errors.New("event sequence gap")

// View is the client-side picture of an auction.
type View struct {
	AuctionID     string
	Status        models.Status
	CurrentBid    int64
	HighestBidder *models.Bidder
	Bids          []models.Bid
	Sequence      uint64
}

// Tracker follows one auction from a snapshot plus the room events after it.
// It is not safe for concurrent use.
type Tracker struct {
	view View
}

// NewTracker starts from snapshot.
func NewTracker(snapshot models.Auction) *Tracker {
	t := &Tracker{}
	t.Resync(snapshot)
	return t
}

// Apply folds ev into the view. Events at or below the known sequence are
// ignored. An event further ahead than the next sequence returns
// ErrSequenceGap and leaves the view untouched.
func (t *Tracker) Apply(ev models.Event) error {
	if ev.AuctionID != t.view.AuctionID {
		return fmt.Errorf("tracker: event for auction %s, tracking %s", ev.AuctionID, t.view.AuctionID)
	}
	if ev.Sequence <= t.view.Sequence {
		return nil
	}
	if ev.Sequence != t.view.Sequence+1 {
		return fmt.Errorf("tracker: %w - have %d, got %d", ErrSequenceGap, t.view.Sequence, ev.Sequence)
	}

	switch ev.Kind {
	case models.EventBidAccepted:
		t.view.CurrentBid = ev.CurrentBid
		t.view.HighestBidder = cloneBidder(ev.HighestBidder)
		if ev.Bid != nil {
			t.view.Bids = append(t.view.Bids, *ev.Bid)
		}
	case models.EventAuctionStarted:
		t.view.Status = models.StatusActive
	case models.EventAuctionEnded:
		if ev.Outcome != nil {
			t.view.Status = ev.Outcome.Status
		}
	}
	t.view.Sequence = ev.Sequence
	return nil
}

// Resync replaces the view with snapshot unless the view is already newer.
func (t *Tracker) Resync(snapshot models.Auction) {
	if t.view.AuctionID == snapshot.ID && snapshot.Sequence < t.view.Sequence {
		return
	}
	t.view = View{
		AuctionID:     snapshot.ID,
		Status:        snapshot.Status,
		CurrentBid:    snapshot.CurrentBid,
		HighestBidder: cloneBidder(snapshot.HighestBidder),
		Bids:          append([]models.Bid{}, snapshot.BidHistory...),
		Sequence:      snapshot.Sequence,
	}
}

// View returns a copy of the current picture.
func (t *Tracker) View() View {
	out := t.view
	out.HighestBidder = cloneBidder(t.view.HighestBidder)
	out.Bids = append([]models.Bid{}, t.view.Bids...)
	return out
}

func cloneBidder(b *models.Bidder) *models.Bidder {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
