package helpers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"market-connect/internal/biddingerrors"
	"market-connect/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusNotFound, "no winning bid found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrAuctionExists):
		return http.StatusConflict, "product already has a live auction"
	case errors.Is(err, biddingerrors.ErrAuctionInProgress):
		return http.StatusConflict, "auction already in progress"
	case errors.Is(err, biddingerrors.ErrSequenceConflict):
		return http.StatusConflict, "auction changed concurrently"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusUnprocessableEntity, "auction not active"
	case errors.Is(err, biddingerrors.ErrUnauthorized):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, biddingerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "bid outcome unknown, fetch the auction"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteServiceError maps err, writes the error envelope and logs it. A bid
// rejected as too low also carries the price it was evaluated against.
func WriteServiceError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	wrapped := fmt.Errorf("%s: %w", message, err)

	var tooLow *biddingerrors.BidTooLowError
	if errors.As(err, &tooLow) {
		utils.JSONErrorDetails(c, status, wrapped, message, BidTooLowDetails{
			CurrentBid: tooLow.CurrentBid,
			MinimumBid: tooLow.MinimumBid,
		})
	} else {
		utils.JSONError(c, status, wrapped, message)
	}

	logFields := map[string]any{"handler": handlerName, "error": err.Error()}
	for k, v := range fields {
		logFields[k] = v
	}
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": "+message, logFields)
		return
	}
	utils.Warn(handlerName+": "+message, logFields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
