package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a time-ordered UUIDv7 string, so ids of auctions and
// bids sort by creation. It falls back to a random UUIDv4 if the clock
// source fails.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
