package bidding

import (
	"context"
	"sync"
)

// auctionLocks hands out one single-slot semaphore per auction id. Entries
// are reference counted and removed once nobody holds or waits on them, so
// the map only grows with the number of auctions currently being mutated.
type auctionLocks struct {
	mu    sync.Mutex
	slots map[string]*auctionSlot
}

type auctionSlot struct {
	sem  chan struct{}
	refs int
}

func newAuctionLocks() *auctionLocks {
	return &auctionLocks{slots: make(map[string]*auctionSlot)}
}

// acquire blocks until the caller owns auctionID's critical section or ctx
// is done. The returned func releases it and must be called exactly once.
func (l *auctionLocks) acquire(ctx context.Context, auctionID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[auctionID]
	if !ok {
		slot = &auctionSlot{sem: make(chan struct{}, 1)}
		l.slots[auctionID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		return func() {
			<-slot.sem
			l.unref(auctionID, slot)
		}, nil
	case <-ctx.Done():
		l.unref(auctionID, slot)
		return nil, ctx.Err()
	}
}

func (l *auctionLocks) unref(auctionID string, slot *auctionSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, auctionID)
	}
}

// size reports how many auctions currently have a live slot.
func (l *auctionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
