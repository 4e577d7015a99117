package server

import (
	"net/http"

	"market-connect/internal/auth"
	"market-connect/internal/models"
	handler "market-connect/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// RouterDeps is everything the router mounts
type RouterDeps struct {
	Auctions  *handler.AuctionHandler
	Websocket *handler.WebsocketHandler
	Auth      *auth.Service
	// Metrics serves the Prometheus exposition format; nil leaves /metrics unmounted
	Metrics http.Handler
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	router.GET("/healthz", HealthHandler)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	requireAuth := auth.Middleware(deps.Auth)

	auctions := router.Group("/auctions")
	{
		auctions.GET("", deps.Auctions.ListActiveHandler)
		auctions.GET("/upcoming", deps.Auctions.ListUpcomingHandler)
		auctions.GET("/detail/:id", deps.Auctions.GetAuctionHandler)
		auctions.GET("/detail/:id/bids", deps.Auctions.GetBidsHandler)
		auctions.GET("/detail/:id/winning", deps.Auctions.GetWinningBidHandler)
		auctions.GET("/admin/all", requireAuth, auth.RequireRole(models.RoleAdmin), deps.Auctions.ListAllHandler)

		auctions.POST("", requireAuth, auth.RequireRole(models.RoleSeller, models.RoleAdmin), deps.Auctions.CreateAuctionHandler)
		auctions.PUT("/:id", requireAuth, auth.RequireRole(models.RoleSeller, models.RoleAdmin), deps.Auctions.UpdateAuctionHandler)
		auctions.DELETE("/:id", requireAuth, auth.RequireRole(models.RoleSeller, models.RoleAdmin), deps.Auctions.CancelAuctionHandler)
		auctions.POST("/:id/bids", requireAuth, deps.Auctions.PlaceBidHandler)
	}

	if deps.Websocket != nil {
		router.GET("/ws", requireAuth, deps.Websocket.ServeWS)
	}

	return router
}
