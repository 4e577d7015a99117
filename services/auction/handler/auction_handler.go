package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"market-connect/internal/auth"
	auction "market-connect/internal/auctionService"
	"market-connect/internal/biddingerrors"
	"market-connect/internal/models"
	"market-connect/internal/ratelimit"
	"market-connect/services/auction/helpers"
	"market-connect/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_handler.go -package=handler

type AuctionRegistryInterface interface {
	Create(ctx context.Context, caller auth.Identity, in auction.CreateAuctionInput) (models.Auction, error)
	Get(ctx context.Context, auctionID string) (models.Auction, error)
	ListActive(ctx context.Context) ([]models.Auction, error)
	ListUpcoming(ctx context.Context) ([]models.Auction, error)
	ListAll(ctx context.Context, caller auth.Identity) ([]models.Auction, error)
	Update(ctx context.Context, caller auth.Identity, auctionID string, in auction.UpdateAuctionInput) (models.Auction, error)
	Cancel(ctx context.Context, caller auth.Identity, auctionID string) (models.Auction, error)
}

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, auctionID string, bidder models.Bidder, amount int64) (models.Bid, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error)
}

type AuctionHandler struct {
	registry      AuctionRegistryInterface
	bidding       BiddingServiceInterface
	limits        *ratelimit.Visitors
	submitTimeout time.Duration
}

// NewAuctionHandler wires the handler. limits may be nil to disable bid rate
// limiting; a zero submitTimeout waits as long as the request does.
func NewAuctionHandler(registry AuctionRegistryInterface, bidding BiddingServiceInterface, limits *ratelimit.Visitors, submitTimeout time.Duration) *AuctionHandler {
	return &AuctionHandler{registry: registry, bidding: bidding, limits: limits, submitTimeout: submitTimeout}
}

func identity(c *gin.Context, handlerName string) (auth.Identity, bool) {
	id, ok := auth.FromContext(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "authentication required")
		utils.Warn(handlerName+": missing identity", nil)
		return auth.Identity{}, false
	}
	return id, true
}

// ListActiveHandler handles GET /auctions
func (h *AuctionHandler) ListActiveHandler(c *gin.Context) {
	auctions, err := h.registry.ListActive(c.Request.Context())
	if err != nil {
		helpers.WriteServiceError(c, "ListActiveHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponses(auctions), "active auctions retrieved successfully")
	helpers.LogSuccess("ListActiveHandler", "active auctions retrieved successfully", map[string]any{"count": len(auctions)})
}

// ListUpcomingHandler handles GET /auctions/upcoming
func (h *AuctionHandler) ListUpcomingHandler(c *gin.Context) {
	auctions, err := h.registry.ListUpcoming(c.Request.Context())
	if err != nil {
		helpers.WriteServiceError(c, "ListUpcomingHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponses(auctions), "upcoming auctions retrieved successfully")
	helpers.LogSuccess("ListUpcomingHandler", "upcoming auctions retrieved successfully", map[string]any{"count": len(auctions)})
}

// GetAuctionHandler handles GET /auctions/detail/:id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("id")
	a, err := h.registry.Get(c.Request.Context(), auctionID)
	if err != nil {
		helpers.WriteServiceError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponse(a, true), "auction retrieved successfully")
}

// ListAllHandler handles GET /auctions/admin/all
func (h *AuctionHandler) ListAllHandler(c *gin.Context) {
	caller, ok := identity(c, "ListAllHandler")
	if !ok {
		return
	}

	auctions, err := h.registry.ListAll(c.Request.Context(), caller)
	if err != nil {
		helpers.WriteServiceError(c, "ListAllHandler", err, map[string]any{"user_id": caller.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("ListAllHandler", "auctions retrieved successfully", map[string]any{
		"user_id": caller.UserID,
		"count":   len(auctions),
	})
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	caller, ok := identity(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	a, err := h.registry.Create(c.Request.Context(), caller, auction.CreateAuctionInput{
		ProductID:    req.ProductID,
		StartPrice:   req.StartPrice,
		MinIncrement: req.MinIncrement,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		helpers.WriteServiceError(c, "CreateAuctionHandler", err, map[string]any{
			"product_id": req.ProductID,
			"user_id":    caller.UserID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToAuctionResponse(a, false), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": a.ID,
		"product_id": a.ProductID,
		"status":     string(a.Status),
	})
}

// UpdateAuctionHandler handles PUT /auctions/:id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	caller, ok := identity(c, "UpdateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auctionID := c.Param("id")
	a, err := h.registry.Update(c.Request.Context(), caller, auctionID, auction.UpdateAuctionInput{
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		StartPrice: req.StartPrice,
	})
	if err != nil {
		helpers.WriteServiceError(c, "UpdateAuctionHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    caller.UserID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponse(a, false), "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{"auction_id": auctionID})
}

// CancelAuctionHandler handles DELETE /auctions/:id
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	caller, ok := identity(c, "CancelAuctionHandler")
	if !ok {
		return
	}

	auctionID := c.Param("id")
	a, err := h.registry.Cancel(c.Request.Context(), caller, auctionID)
	if err != nil {
		helpers.WriteServiceError(c, "CancelAuctionHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    caller.UserID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponse(a, false), "auction cancelled successfully")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled successfully", map[string]any{"auction_id": auctionID})
}

// PlaceBidHandler handles POST /auctions/:id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	caller, ok := identity(c, "PlaceBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auctionID := c.Param("id")
	fields := map[string]any{"auction_id": auctionID, "user_id": caller.UserID}
	if req.UserID != "" && req.UserID != caller.UserID {
		helpers.WriteServiceError(c, "PlaceBidHandler", fmt.Errorf("handler: %w - user_id does not match token", biddingerrors.ErrUnauthorized), fields)
		return
	}
	if h.limits != nil && !h.limits.Allow(caller.UserID) {
		helpers.WriteServiceError(c, "PlaceBidHandler", biddingerrors.ErrRateLimited, fields)
		return
	}

	ctx := c.Request.Context()
	if h.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.submitTimeout)
		defer cancel()
	}
	bid, err := h.bidding.SubmitBid(ctx, auctionID, caller.Bidder(), req.Amount)
	if err != nil {
		helpers.WriteServiceError(c, "PlaceBidHandler", err, fields)
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"user_id":    caller.UserID,
		"amount":     bid.Amount,
		"sequence":   bid.Sequence,
	})
}

// GetBidsHandler handles GET /auctions/detail/:id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("id")
	bids, err := h.bidding.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.WriteServiceError(c, "GetBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetWinningBidHandler handles GET /auctions/detail/:id/winning
func (h *AuctionHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("id")
	bid, err := h.bidding.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		helpers.WriteServiceError(c, "GetWinningBidHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved successfully")
}
