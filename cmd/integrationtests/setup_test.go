package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"market-connect/internal/app"
	"market-connect/internal/auth"
	"market-connect/internal/config"
	"market-connect/internal/models"
	"market-connect/internal/realtime"
)

// manualClock is the server clock; tests move it forward explicitly.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	app   *app.App
	srv   *httptest.Server
	clock *manualClock
}

// SetupTestServer wires the whole server on the in-memory store with a
// catalog of two products owned by seller1.
func SetupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.Bidding.RatePerSecond = 0 // unlimited
	cfg.Catalog.Products = []config.ProductConfig{
		{ID: "product1", Title: "title1", SellerID: "seller1"},
		{ID: "product2", Title: "title2", SellerID: "seller1"},
	}
	require.NoError(t, cfg.Validate())

	clock := &manualClock{now: time.Now().UTC().Truncate(time.Second)}
	a, err := app.New(cfg, app.WithClock(clock.Now), app.WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return &testServer{app: a, srv: srv, clock: clock}
}

func (s *testServer) token(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	tok, err := s.app.Auth.GenerateToken(auth.Identity{UserID: userID, Name: "Name " + userID, Role: role})
	require.NoError(t, err)
	return tok
}

// ExecuteRequestAndParse sends a JSON request and decodes the response envelope.
func (s *testServer) ExecuteRequestAndParse(t *testing.T, method, path, token string, body any) (map[string]any, int) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		resp = nil
	}
	return resp, res.StatusCode
}

// createAuction creates an auction on product as seller1 and returns its id.
func (s *testServer) createAuction(t *testing.T, product string, start, end time.Time) string {
	t.Helper()
	resp, status := s.ExecuteRequestAndParse(t, http.MethodPost, "/auctions", s.token(t, "seller1", models.RoleSeller), map[string]any{
		"product_id":    product,
		"start_price":   1000,
		"min_increment": 100,
		"start_time":    start,
		"end_time":      end,
	})
	require.Equal(t, http.StatusCreated, status, "response: %v", resp)
	return resp["data"].(map[string]any)["id"].(string)
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?token=" + token
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, kind realtime.Kind, payload any) {
	t.Helper()
	env, err := realtime.NewEnvelope(kind, payload)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(env))
}

func recvKind[T any](t *testing.T, c *websocket.Conn, kind realtime.Kind) T {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env realtime.Envelope
	require.NoError(t, c.ReadJSON(&env))
	require.Equal(t, kind, env.Type, "payload: %s", env.Payload)
	var out T
	require.NoError(t, json.Unmarshal(env.Payload, &out))
	return out
}
