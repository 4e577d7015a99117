package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"market-connect/internal/biddingerrors"
	"market-connect/internal/models"
	"market-connect/internal/ratelimit"
	"market-connect/utils"
)

// BidPlacer submits bids through the auction's serialization point.
type BidPlacer interface {
	SubmitBid(ctx context.Context, auctionID string, bidder models.Bidder, amount int64) (models.Bid, error)
}

// AuctionResolver maps a product onto its live auction for clients that bid
// by product id.
type AuctionResolver interface {
	LiveAuctionForProduct(ctx context.Context, productID string) (string, error)
}

// ConnConfig tunes one websocket connection.
type ConnConfig struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SubmitTimeout  time.Duration
	ReplyBuffer    int
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithResolver lets placeBid select the auction by productId.
func WithResolver(r AuctionResolver) ConnOption {
	return func(c *Conn) { c.resolver = r }
}

// WithRateLimit limits bids per identity, shared with other connections and
// the HTTP endpoint.
func WithRateLimit(v *ratelimit.Visitors) ConnOption {
	return func(c *Conn) { c.limits = v }
}

// Conn is one authenticated websocket client. The read pump dispatches
// inbound messages through inboundHandlers; the write pump is the only writer
// and drains both the hub subscription and direct replies.
type Conn struct {
	id       string
	ws       *websocket.Conn
	hub      *Hub
	placer   BidPlacer
	resolver AuctionResolver
	limits   *ratelimit.Visitors
	bidder   models.Bidder
	cfg      ConnConfig
	replies  chan Envelope
}

// NewConn wraps an upgraded websocket for bidder.
func NewConn(ws *websocket.Conn, hub *Hub, placer BidPlacer, bidder models.Bidder, cfg ConnConfig, opts ...ConnOption) *Conn {
	if cfg.ReplyBuffer < 1 {
		cfg.ReplyBuffer = 16
	}
	c := &Conn{
		id:      utils.GenerateID(),
		ws:      ws,
		hub:     hub,
		placer:  placer,
		bidder:  bidder,
		cfg:     cfg,
		replies: make(chan Envelope, cfg.ReplyBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the connection id used in the hub.
func (c *Conn) ID() string { return c.id }

// Serve runs the connection until the client goes away, the subscription is
// cancelled or ctx is done.
func (c *Conn) Serve(ctx context.Context) error {
	sub := c.hub.Register(c.id)
	defer c.hub.Unregister(c.id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	utils.Info("realtime connection opened", map[string]any{
		"conn_id": c.id,
		"user_id": c.bidder.UserID,
	})

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(ctx, sub)
	}()

	err := c.readPump(ctx)
	cancel()
	<-writeDone

	fields := map[string]any{"conn_id": c.id, "user_id": c.bidder.UserID}
	if subErr := sub.Err(); subErr != nil {
		fields["reason"] = subErr.Error()
	}
	utils.Info("realtime connection closed", fields)
	return err
}

func (c *Conn) readPump(ctx context.Context) error {
	if c.cfg.MaxMessageSize > 0 {
		c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	}
	if c.cfg.PongWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		})
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				utils.Warn("realtime read failed", map[string]any{"conn_id": c.id, "error": err.Error()})
				return err
			}
			return nil
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.replyError(ctx, "malformed message")
			continue
		}
		handle, ok := inboundHandlers[env.Type]
		if !ok {
			c.replyError(ctx, fmt.Sprintf("unknown message type %q", env.Type))
			continue
		}
		if err := handle(ctx, c, env.Payload); err != nil {
			c.replyError(ctx, err.Error())
		}
	}
}

func (c *Conn) writePump(ctx context.Context, sub *Subscription) {
	var ping <-chan time.Time
	if c.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	// closing the socket unblocks the read pump
	defer c.ws.Close()

	for {
		select {
		case <-ctx.Done():
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		case <-sub.Canceled():
			if errors.Is(sub.Err(), ErrOutOfCapacity) {
				c.writeClose(websocket.CloseTryAgainLater, "resync required")
			}
			return
		case msg := <-sub.Out():
			env, err := messageEnvelope(msg)
			if err != nil {
				utils.Error("failed to encode room message", map[string]any{"conn_id": c.id, "error": err.Error()})
				continue
			}
			if err := c.write(env); err != nil {
				return
			}
		case env := <-c.replies:
			if err := c.write(env); err != nil {
				return
			}
		case <-ping:
			c.setWriteDeadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) write(env Envelope) error {
	c.setWriteDeadline()
	if err := c.ws.WriteJSON(env); err != nil {
		utils.Warn("realtime write failed", map[string]any{"conn_id": c.id, "type": env.Type, "error": err.Error()})
		return err
	}
	return nil
}

func (c *Conn) writeClose(code int, text string) {
	c.setWriteDeadline()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

func (c *Conn) setWriteDeadline() {
	if c.cfg.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
}

// reply queues a direct message for this connection only.
func (c *Conn) reply(ctx context.Context, env Envelope) {
	select {
	case c.replies <- env:
	case <-ctx.Done():
	}
}

func (c *Conn) replyError(ctx context.Context, message string) {
	env, err := NewEnvelope(KindError, ErrorMessage{Message: message})
	if err != nil {
		return
	}
	c.reply(ctx, env)
}

func messageEnvelope(msg Message) (Envelope, error) {
	if msg.Event != nil {
		return EventEnvelope(*msg.Event)
	}
	return NewEnvelope(KindJoined, Joined{AuctionID: msg.Joined, Auction: msg.Snapshot})
}

type handlerFunc func(ctx context.Context, c *Conn, payload json.RawMessage) error

var inboundHandlers = map[Kind]handlerFunc{
	KindJoinRoom:  handleJoinRoom,
	KindLeaveRoom: handleLeaveRoom,
	KindPlaceBid:  handlePlaceBid,
}

func handleJoinRoom(ctx context.Context, c *Conn, payload json.RawMessage) error {
	var req RoomRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.AuctionID == "" {
		return errors.New("joinAuctionRoom requires auctionId")
	}
	if err := c.hub.Join(ctx, req.AuctionID, c.id); err != nil {
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			return fmt.Errorf("auction %s not found", req.AuctionID)
		}
		return fmt.Errorf("could not join auction %s", req.AuctionID)
	}
	return nil
}

func handleLeaveRoom(_ context.Context, c *Conn, payload json.RawMessage) error {
	var req RoomRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.AuctionID == "" {
		return errors.New("leaveAuctionRoom requires auctionId")
	}
	c.hub.Leave(req.AuctionID, c.id)
	return nil
}

func handlePlaceBid(ctx context.Context, c *Conn, payload json.RawMessage) error {
	var req PlaceBidRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errors.New("placeBid payload is malformed")
	}

	auctionID, err := c.placeBid(ctx, req)
	if err != nil {
		c.reply(ctx, bidErrorEnvelope(auctionID, err))
	}
	return nil
}

func (c *Conn) placeBid(ctx context.Context, req PlaceBidRequest) (string, error) {
	auctionID := req.AuctionID
	if req.UserID != "" && req.UserID != c.bidder.UserID {
		return auctionID, fmt.Errorf("realtime: %w - userId does not match the authenticated user", biddingerrors.ErrUnauthorized)
	}
	if auctionID == "" && req.ProductID != "" && c.resolver != nil {
		resolved, err := c.resolver.LiveAuctionForProduct(ctx, req.ProductID)
		if err != nil {
			return "", err
		}
		auctionID = resolved
	}
	if c.limits != nil && !c.limits.Allow(c.bidder.UserID) {
		return auctionID, fmt.Errorf("realtime: %w", biddingerrors.ErrRateLimited)
	}

	submitCtx := ctx
	if c.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, c.cfg.SubmitTimeout)
		defer cancel()
	}
	bid, err := c.placer.SubmitBid(submitCtx, auctionID, c.bidder, req.BidAmount)
	if err != nil {
		return auctionID, err
	}

	// room members get the broadcast; anyone else still needs an answer
	if !c.hub.InRoom(auctionID, c.id) {
		productID := req.ProductID
		if productID == "" {
			productID = c.hub.productOf(ctx, auctionID)
		}
		leader := bid.Bidder
		env, err := NewEnvelope(KindBidUpdate, BidUpdate{
			AuctionID:     auctionID,
			ProductID:     productID,
			Sequence:      bid.Sequence,
			CurrentBid:    bid.Amount,
			HighestBidder: &leader,
			Bid:           &bid,
		})
		if err == nil {
			c.reply(ctx, env)
		}
	}
	return auctionID, nil
}

func bidErrorEnvelope(auctionID string, err error) Envelope {
	payload := BidError{
		AuctionID: auctionID,
		Reason:    biddingerrors.Reason(err),
		Message:   err.Error(),
	}
	var tooLow *biddingerrors.BidTooLowError
	if errors.As(err, &tooLow) {
		current, minimum := tooLow.CurrentBid, tooLow.MinimumBid
		payload.CurrentBid = &current
		payload.MinimumBid = &minimum
	}
	if payload.Reason == "Internal" {
		utils.Error("bid submission failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
		payload.Message = "bid could not be processed"
	}
	env, encErr := NewEnvelope(KindBidError, payload)
	if encErr != nil {
		return Envelope{Type: KindBidError}
	}
	return env
}
