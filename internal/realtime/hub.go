// Package realtime fans auction events out to websocket subscribers grouped
// into one room per auction.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"market-connect/internal/metrics"
	"market-connect/internal/models"
	"market-connect/utils"
)

// ErrNotRegistered is returned when joining with an unknown or cancelled connection.
var ErrNotRegistered = errors.New("connection not registered")

// SnapshotFunc loads the current state of an auction, history included.
type SnapshotFunc func(ctx context.Context, auctionID string) (models.Auction, error)

// Message is one item on a subscription: a room event, or the marker that
// opens a room for the subscriber.
type Message struct {
	Event *models.Event
	// Joined is set on the marker. Snapshot accompanies it when the hub has a
	// SnapshotFunc.
	Joined   string
	Snapshot *models.Auction
}

// Hub tracks which connection sits in which auction room. Publish never
// blocks: a subscriber whose buffer is full is cancelled instead.
type Hub struct {
	mtx   sync.RWMutex
	subs  map[string]*Subscription
	rooms map[string]map[string]*Subscription
	// connection id -> joined auction ids
	joined map[string]map[string]struct{}
	// auction id -> connection id -> join waiting on its snapshot
	pending map[string]map[string]*pendingJoin

	capacity int
	snapshot SnapshotFunc
	metrics  *metrics.Metrics
}

// NewHub creates a hub whose subscriptions buffer up to capacity messages.
// snapshot may be nil, in which case Join does not enqueue a snapshot.
func NewHub(capacity int, snapshot SnapshotFunc, m *metrics.Metrics) *Hub {
	if capacity < 1 {
		capacity = 1
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Hub{
		subs:     make(map[string]*Subscription),
		rooms:    make(map[string]map[string]*Subscription),
		joined:   make(map[string]map[string]struct{}),
		pending:  make(map[string]map[string]*pendingJoin),
		capacity: capacity,
		snapshot: snapshot,
		metrics:  m,
	}
}

// Register creates the subscription for connID. Registering an id twice
// returns the live subscription.
func (h *Hub) Register(connID string) *Subscription {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if sub, ok := h.subs[connID]; ok && !sub.isCanceled() {
		return sub
	}
	h.removeLocked(connID)

	sub := newSubscription(connID, h.capacity)
	h.subs[connID] = sub
	h.joined[connID] = make(map[string]struct{})
	h.metrics.Subscribers.Inc()
	return sub
}

// Join adds connID to the room of auctionID and enqueues the joined marker
// ahead of any event published after the join. When the hub has a
// SnapshotFunc the marker carries the auction snapshot. The snapshot is loaded
// outside the hub lock; events published meanwhile are held back and follow
// the marker, so the subscriber may see an event the snapshot already covers
// but never misses one.
func (h *Hub) Join(ctx context.Context, auctionID, connID string) error {
	if h.snapshot == nil {
		h.mtx.Lock()
		defer h.mtx.Unlock()
		sub, ok := h.subs[connID]
		if !ok || sub.isCanceled() {
			return fmt.Errorf("hub: join %s: %w", auctionID, ErrNotRegistered)
		}
		return h.admitLocked(auctionID, sub, Message{Joined: auctionID}, nil)
	}

	h.mtx.Lock()
	sub, ok := h.subs[connID]
	if !ok || sub.isCanceled() {
		h.mtx.Unlock()
		return fmt.Errorf("hub: join %s: %w", auctionID, ErrNotRegistered)
	}
	p := &pendingJoin{limit: h.capacity}
	if h.pending[auctionID] == nil {
		h.pending[auctionID] = make(map[string]*pendingJoin)
	}
	h.pending[auctionID][connID] = p
	h.mtx.Unlock()

	snap, snapErr := h.snapshot(ctx, auctionID)

	h.mtx.Lock()
	defer h.mtx.Unlock()
	if waiting := h.pending[auctionID]; waiting[connID] == p {
		delete(waiting, connID)
		if len(waiting) == 0 {
			delete(h.pending, auctionID)
		}
	}
	if snapErr != nil {
		return fmt.Errorf("hub: join %s: %w", auctionID, snapErr)
	}
	if h.subs[connID] != sub || sub.isCanceled() {
		return fmt.Errorf("hub: join %s: %w", auctionID, ErrNotRegistered)
	}
	if p.overflow {
		if sub.cancel(ErrOutOfCapacity) {
			h.metrics.SlowSubscribers.Inc()
		}
		h.removeLocked(connID)
		return fmt.Errorf("hub: join %s: %w", auctionID, ErrOutOfCapacity)
	}
	return h.admitLocked(auctionID, sub, Message{Joined: auctionID, Snapshot: &snap}, p.msgs)
}

// admitLocked enqueues the marker and held-back events, then adds sub to the room.
func (h *Hub) admitLocked(auctionID string, sub *Subscription, marker Message, held []Message) error {
	for _, msg := range append([]Message{marker}, held...) {
		if !h.offerLocked(sub, msg) {
			h.removeLocked(sub.id)
			return fmt.Errorf("hub: join %s: %w", auctionID, ErrOutOfCapacity)
		}
	}

	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[string]*Subscription)
		h.rooms[auctionID] = room
	}
	room[sub.id] = sub
	h.joined[sub.id][auctionID] = struct{}{}
	return nil
}

// Leave removes connID from the room of auctionID. Leaving a room the
// connection is not in is a no-op.
func (h *Hub) Leave(auctionID, connID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.leaveLocked(auctionID, connID)
}

// Unregister removes connID from every room and cancels its subscription.
func (h *Hub) Unregister(connID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if sub, ok := h.subs[connID]; ok {
		sub.cancel(ErrUnsubscribed)
	}
	h.removeLocked(connID)
}

// Publish delivers ev to every subscriber in the auction's room. Callers
// publish from inside the auction's critical section, so events of one
// auction arrive in sequence order.
func (h *Hub) Publish(auctionID string, ev models.Event) {
	var slow []*Subscription

	h.mtx.RLock()
	for _, sub := range h.rooms[auctionID] {
		if sub.isCanceled() {
			continue
		}
		event := ev
		if !h.offerLocked(sub, Message{Event: &event}) {
			slow = append(slow, sub)
		}
	}
	for _, p := range h.pending[auctionID] {
		event := ev
		p.hold(Message{Event: &event})
	}
	h.mtx.RUnlock()

	h.metrics.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()

	if len(slow) == 0 {
		return
	}
	h.mtx.Lock()
	for _, sub := range slow {
		if h.subs[sub.id] == sub {
			h.removeLocked(sub.id)
		}
	}
	h.mtx.Unlock()
}

// RoomSize returns how many connections sit in the auction's room.
func (h *Hub) RoomSize(auctionID string) int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.rooms[auctionID])
}

// InRoom reports whether connID sits in the auction's room.
func (h *Hub) InRoom(auctionID, connID string) bool {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	_, ok := h.rooms[auctionID][connID]
	return ok
}

// Rooms returns the auction ids connID has joined.
func (h *Hub) Rooms(connID string) []string {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	out := make([]string, 0, len(h.joined[connID]))
	for id := range h.joined[connID] {
		out = append(out, id)
	}
	return out
}

// productOf returns the product the auction sells, or "" when it cannot be loaded.
func (h *Hub) productOf(ctx context.Context, auctionID string) string {
	if h.snapshot == nil {
		return ""
	}
	a, err := h.snapshot(ctx, auctionID)
	if err != nil {
		return ""
	}
	return a.ProductID
}

// Close cancels every subscription.
func (h *Hub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for connID, sub := range h.subs {
		sub.cancel(ErrUnsubscribed)
		h.removeLocked(connID)
	}
}

// offerLocked enqueues msg without blocking. A full buffer cancels the
// subscription. Callers hold h.mtx in either mode.
func (h *Hub) offerLocked(sub *Subscription, msg Message) bool {
	select {
	case sub.out <- msg:
		return true
	default:
		if sub.cancel(ErrOutOfCapacity) {
			h.metrics.SlowSubscribers.Inc()
			utils.Warn("dropping slow realtime subscriber", map[string]any{
				"conn_id":  sub.id,
				"capacity": h.capacity,
			})
		}
		return false
	}
}

func (h *Hub) leaveLocked(auctionID, connID string) {
	if room, ok := h.rooms[auctionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, auctionID)
		}
	}
	if joined, ok := h.joined[connID]; ok {
		delete(joined, auctionID)
	}
}

func (h *Hub) removeLocked(connID string) {
	if _, ok := h.subs[connID]; !ok {
		return
	}
	for auctionID := range h.joined[connID] {
		h.leaveLocked(auctionID, connID)
	}
	delete(h.joined, connID)
	delete(h.subs, connID)
	h.metrics.Subscribers.Dec()
}

// pendingJoin holds the events published while a join loads its snapshot.
// More than limit held events means the subscriber cannot catch up.
type pendingJoin struct {
	mu       sync.Mutex
	msgs     []Message
	limit    int
	overflow bool
}

func (p *pendingJoin) hold(msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) >= p.limit {
		p.overflow = true
		return
	}
	p.msgs = append(p.msgs, msg)
}
