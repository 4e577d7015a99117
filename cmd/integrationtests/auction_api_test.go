package integrationtests

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-connect/internal/models"
)

func TestAuctionLifecycle(t *testing.T) {
	s := SetupTestServer(t)
	ctx := context.Background()
	now := s.clock.Now()

	id := s.createAuction(t, "product1", now.Add(time.Minute), now.Add(time.Hour))
	bidder1 := s.token(t, "bidder1", models.RoleBidder)
	bidder2 := s.token(t, "bidder2", models.RoleBidder)
	seller := s.token(t, "seller1", models.RoleSeller)

	resp, status := s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions/upcoming", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"].([]any), 1)

	_, status = s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions/"+id+"/bids", bidder1, map[string]any{"amount": 1100})
	require.Equal(t, http.StatusUnprocessableEntity, status, "pending auctions reject bids")

	// a second live auction on the same product is refused
	_, status = s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions", seller, map[string]any{
		"product_id":  "product1",
		"start_price": 10,
		"start_time":  now.Add(time.Minute),
		"end_time":    now.Add(time.Hour),
	})
	require.Equal(t, http.StatusConflict, status)

	s.clock.Advance(time.Minute)
	require.Equal(t, 1, s.app.Scheduler.Tick(ctx))

	resp, status = s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions", "", nil)
	require.Equal(t, http.StatusOK, status)
	active := resp["data"].([]any)
	require.Len(t, active, 1)
	require.Equal(t, "active", active[0].(map[string]any)["status"])

	t.Run("Bid_Accepted", func(t *testing.T) {
		resp, status := s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions/"+id+"/bids", bidder1, map[string]any{"amount": 1100})
		require.Equal(t, http.StatusCreated, status)
		bid := resp["data"].(map[string]any)
		require.Equal(t, "bidder1", bid["user_id"])
		require.Equal(t, 1100.0, bid["amount"])
		require.Equal(t, 2.0, bid["sequence"])
	})

	t.Run("Bid_Too_Low", func(t *testing.T) {
		resp, status := s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions/"+id+"/bids", bidder2, map[string]any{"amount": 1150})
		require.Equal(t, http.StatusConflict, status)
		details := resp["details"].(map[string]any)
		require.Equal(t, 1100.0, details["current_bid"])
		require.Equal(t, 1200.0, details["minimum_bid"])
	})

	t.Run("Update_Active_Auction", func(t *testing.T) {
		_, status := s.ExecuteRequestAndParse(t, http.MethodPut, "/auctions/"+id, seller, map[string]any{"start_price": 1})
		require.Equal(t, http.StatusConflict, status)
	})

	t.Run("Cancel_With_Bids", func(t *testing.T) {
		_, status := s.ExecuteRequestAndParse(t, http.MethodDelete, "/auctions/"+id, seller, nil)
		require.Equal(t, http.StatusConflict, status)
	})

	resp, status = s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions/detail/"+id+"/bids", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"].([]any), 1)

	s.clock.Advance(time.Hour)
	require.Equal(t, 1, s.app.Scheduler.Tick(ctx))

	resp, status = s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions/detail/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	detail := resp["data"].(map[string]any)
	require.Equal(t, "completed", detail["status"])
	require.Equal(t, 3.0, detail["sequence"])
	require.Equal(t, "bidder1", detail["highest_bidder"].(map[string]any)["user_id"])

	resp, status = s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions/detail/"+id+"/winning", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1100.0, resp["data"].(map[string]any)["amount"])

	_, status = s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions/"+id+"/bids", bidder2, map[string]any{"amount": 5000})
	require.Equal(t, http.StatusUnprocessableEntity, status, "completed auctions reject bids")

	// the product is free again once its auction is over
	s.createAuction(t, "product1", s.clock.Now(), s.clock.Now().Add(time.Hour))
}

func TestPendingAuctionManagement(t *testing.T) {
	s := SetupTestServer(t)
	now := s.clock.Now()
	seller := s.token(t, "seller1", models.RoleSeller)
	other := s.token(t, "seller2", models.RoleSeller)

	id := s.createAuction(t, "product2", now.Add(time.Hour), now.Add(2*time.Hour))

	_, status := s.ExecuteRequestAndParse(t, http.MethodPut, "/auctions/"+id, other, map[string]any{"start_price": 1})
	require.Equal(t, http.StatusForbidden, status)

	resp, status := s.ExecuteRequestAndParse(t, http.MethodPut, "/auctions/"+id, seller, map[string]any{"start_price": 2500})
	require.Equal(t, http.StatusOK, status)
	updated := resp["data"].(map[string]any)
	require.Equal(t, 2500.0, updated["current_bid"])
	require.Equal(t, 0.0, updated["sequence"])

	resp, status = s.ExecuteRequestAndParse(t, http.MethodDelete, "/auctions/"+id, seller, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "cancelled", resp["data"].(map[string]any)["status"])
	require.Equal(t, "seller1", resp["data"].(map[string]any)["cancelled_by"])

	// cancelling twice is harmless
	_, status = s.ExecuteRequestAndParse(t, http.MethodDelete, "/auctions/"+id, seller, nil)
	require.Equal(t, http.StatusOK, status)

	resp, status = s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions/admin/all", s.token(t, "root", models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"].([]any), 1)
}

func TestAccessControl(t *testing.T) {
	s := SetupTestServer(t)
	now := s.clock.Now()
	body := map[string]any{
		"product_id":  "product1",
		"start_price": 10,
		"start_time":  now,
		"end_time":    now.Add(time.Hour),
	}

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
	}{
		{"Create_Without_Token", http.MethodPost, "/auctions", "", body, http.StatusUnauthorized},
		{"Create_With_Garbage_Token", http.MethodPost, "/auctions", "not-a-jwt", body, http.StatusUnauthorized},
		{"Create_As_Bidder", http.MethodPost, "/auctions", s.token(t, "bidder1", models.RoleBidder), body, http.StatusForbidden},
		{"Admin_List_As_Seller", http.MethodGet, "/auctions/admin/all", s.token(t, "seller1", models.RoleSeller), nil, http.StatusForbidden},
		{"Bid_Without_Token", http.MethodPost, "/auctions/x/bids", "", map[string]any{"amount": 1}, http.StatusUnauthorized},
		{"Public_List", http.MethodGet, "/auctions", "", nil, http.StatusOK},
		{"Health", http.MethodGet, "/healthz", "", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status := s.ExecuteRequestAndParse(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := SetupTestServer(t)

	res, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "auction_bids_accepted_total")
}

func TestConcurrentEqualBids(t *testing.T) {
	s := SetupTestServer(t)
	now := s.clock.Now()
	id := s.createAuction(t, "product1", now, now.Add(time.Hour))

	const bidders = 8
	tokens := make([]string, bidders)
	for i := range tokens {
		tokens[i] = s.token(t, "bidder"+string(rune('a'+i)), models.RoleBidder)
	}

	statuses := make([]int, bidders)
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, statuses[i] = s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions/"+id+"/bids", tokens[i], map[string]any{"amount": 1100})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, st := range statuses {
		switch st {
		case http.StatusCreated:
			accepted++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", st)
		}
	}
	require.Equal(t, 1, accepted)

	resp, status := s.ExecuteRequestAndParse(t, http.MethodGet, "/auctions/detail/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	detail := resp["data"].(map[string]any)
	require.Equal(t, 1.0, detail["sequence"])
	require.Len(t, detail["bid_history"].([]any), 1)
}
