package biddingerrors

import (
	"context"
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionExists    = errors.New("auction already exists")
	ErrSequenceConflict = errors.New("auction sequence conflict")
	ErrNoBids           = errors.New("no bids found for auction")
)

// business logic errors
var (
	ErrInvalidBid        = errors.New("invalid bid")
	ErrInvalidAuction    = errors.New("invalid auction")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrAuctionNotActive  = errors.New("auction not active")
	ErrAuctionInProgress = errors.New("auction in progress")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrProductNotFound   = errors.New("product not found")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// BidTooLowError carries the price a rejected bid was evaluated against,
// so the client can retry with MinimumBid straight away.
type BidTooLowError struct {
	CurrentBid int64
	MinimumBid int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s - current bid is %d, minimum acceptable is %d", ErrBidTooLow, e.CurrentBid, e.MinimumBid)
}

// Unwrap lets errors.Is(err, ErrBidTooLow) match
func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// Reason returns the short machine-readable rejection reason for err
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return "NotFound"
	case errors.Is(err, ErrAuctionNotActive):
		return "AuctionNotActive"
	case errors.Is(err, ErrBidTooLow):
		return "BidTooLow"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrAuctionInProgress):
		return "AuctionInProgress"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrProductNotFound):
		return "ProductNotFound"
	case errors.Is(err, ErrAuctionExists):
		return "AuctionExists"
	case errors.Is(err, ErrInvalidBid), errors.Is(err, ErrInvalidAuction):
		return "InvalidRequest"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// never admitted; the client resyncs from a snapshot
		return "Unknown"
	default:
		return "Internal"
	}
}
