package realtime

import (
	"errors"
	"sync"
)

var (
	// ErrUnsubscribed is returned by Err when the connection unregistered.
	ErrUnsubscribed = errors.New("subscriber unregistered")

	// ErrOutOfCapacity is returned by Err when a subscriber is not draining
	// events fast enough. The subscription is terminated and the client has to
	// resync from a snapshot.
	ErrOutOfCapacity = errors.New("subscriber is not draining events fast enough")
)

// Subscription is the outbound side of one connection: every event of every
// room the connection joined lands on Out, in publish order per auction.
type Subscription struct {
	id  string
	out chan Message

	canceled chan struct{}
	mtx      sync.RWMutex
	err      error
}

func newSubscription(id string, capacity int) *Subscription {
	return &Subscription{
		id:       id,
		out:      make(chan Message, capacity),
		canceled: make(chan struct{}),
	}
}

// ID returns the connection id the subscription was registered under.
func (s *Subscription) ID() string { return s.id }

// Out returns the message channel. It is never closed, select on Canceled too.
func (s *Subscription) Out() <-chan Message { return s.out }

// Canceled returns a channel that's closed when the subscription is terminated.
func (s *Subscription) Canceled() <-chan struct{} { return s.canceled }

// Err returns nil until Canceled is closed, then the reason:
//   - ErrUnsubscribed if the connection went away,
//   - ErrOutOfCapacity if the subscriber fell behind.
func (s *Subscription) Err() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.err
}

// cancel terminates the subscription once. It reports whether this call did it.
func (s *Subscription) cancel(err error) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.err != nil {
		return false
	}
	s.err = err
	close(s.canceled)
	return true
}

func (s *Subscription) isCanceled() bool {
	return s.Err() != nil
}
