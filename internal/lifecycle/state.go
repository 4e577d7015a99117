// Package lifecycle drives auctions through Pending -> Active ->
// {Completed, Cancelled} on the server clock.
package lifecycle

import (
	"time"

	"market-connect/internal/models"
)

// Next returns the status a should move to at now, and false when no
// time-driven transition is due. It is a pure function of its inputs.
func Next(a models.Auction, now time.Time) (models.Status, bool) {
	switch a.Status {
	case models.StatusPending:
		if !now.Before(a.StartTime) {
			return models.StatusActive, true
		}
	case models.StatusActive:
		if !now.Before(a.EndTime) {
			return models.StatusCompleted, true
		}
	}
	return a.Status, false
}

// transition applies one step to a copy of a and returns the event that
// announces it. The sequence grows by exactly one.
func transition(a models.Auction, to models.Status, now time.Time) (models.Auction, models.Event) {
	next := a.Clone()
	next.Status = to
	next.Sequence++
	next.UpdatedAt = now

	ev := models.Event{
		AuctionID:     next.ID,
		ProductID:     next.ProductID,
		Sequence:      next.Sequence,
		CurrentBid:    next.CurrentBid,
		HighestBidder: next.HighestBidder,
	}
	switch to {
	case models.StatusActive:
		ev.Kind = models.EventAuctionStarted
	default:
		ev.Kind = models.EventAuctionEnded
		outcome := next.Outcome()
		ev.Outcome = &outcome
	}
	return next, ev
}
