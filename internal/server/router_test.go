package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"market-connect/internal/auth"
	auction "market-connect/internal/auctionService"
	bidding "market-connect/internal/biddingService"
	"market-connect/internal/catalog"
	"market-connect/internal/lifecycle"
	"market-connect/internal/models"
	"market-connect/internal/repository"
	handler "market-connect/services/auction/handler"
)

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo)
	sched := lifecycle.NewScheduler(repo, svc, time.Second, time.Now, nil)
	reg := auction.NewRegistry(repo, svc, sched, catalog.NewStaticCatalog(), time.Now)
	authSvc := auth.NewService("router-secret", time.Hour)

	return SetupRouter(RouterDeps{
		Auctions: handler.NewAuctionHandler(reg, svc, nil, 0),
		Auth:     authSvc,
	}), authSvc
}

func TestSetupRouter(t *testing.T) {
	router, authSvc := newTestRouter(t)

	bidderToken, err := authSvc.GenerateToken(auth.Identity{UserID: "u1", Role: models.RoleBidder})
	require.NoError(t, err)
	adminToken, err := authSvc.GenerateToken(auth.Identity{UserID: "root", Role: models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"public list", http.MethodGet, "/auctions", "", http.StatusOK},
		{"unknown auction", http.MethodGet, "/auctions/detail/missing", "", http.StatusNotFound},
		{"admin list without token", http.MethodGet, "/auctions/admin/all", "", http.StatusUnauthorized},
		{"admin list as bidder", http.MethodGet, "/auctions/admin/all", bidderToken, http.StatusForbidden},
		{"admin list as admin", http.MethodGet, "/auctions/admin/all", adminToken, http.StatusOK},
		{"create as bidder", http.MethodPost, "/auctions", bidderToken, http.StatusForbidden},
		{"metrics unmounted", http.MethodGet, "/metrics", "", http.StatusNotFound},
		{"ws unmounted", http.MethodGet, "/ws", bidderToken, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
