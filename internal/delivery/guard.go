package delivery

import (
	"sync"
	"time"
)

// Guard serializes deliveries per requester and remembers what was last
// delivered to each of them.
//
// The lock is per user id, not global: concurrent requests from different
// users proceed independently. There is no reentrancy; a second TryAcquire
// for the same user fails closed until Release.
type Guard struct {
	mu       sync.Mutex
	inFlight map[int64]bool
	recent   map[int64]recentEntry

	clock func() time.Time
}

type recentEntry struct {
	fileUniqueID string
	at           time.Time
}

func NewGuard() *Guard {
	return &Guard{
		inFlight: make(map[int64]bool),
		recent:   make(map[int64]recentEntry),
		clock:    time.Now,
	}
}

// TryAcquire reports whether the caller may start a delivery for this user.
// False means a request is already in flight; the caller must answer with a
// "still processing" notice and do nothing else.
func (g *Guard) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[userID] {
		return false
	}
	g.inFlight[userID] = true
	return true
}

// Release must run on every exit path of the guarded operation.
func (g *Guard) Release(userID int64) {
	g.mu.Lock()
	delete(g.inFlight, userID)
	g.mu.Unlock()
}

// WasRecentlyDelivered reports whether a delivery completed for this user
// within the window. Used to suppress a second physical send when two
// trigger paths race.
func (g *Guard) WasRecentlyDelivered(userID int64, within time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.recent[userID]
	if !ok {
		return false
	}
	return g.clock().Sub(e.at) < within
}

// RecordDelivery overwrites the user's entry with the just-delivered file.
// Entries are superseded, never purged; volume is low enough that stale
// entries are harmless.
func (g *Guard) RecordDelivery(userID int64, fileUniqueID string) {
	g.mu.Lock()
	g.recent[userID] = recentEntry{fileUniqueID: fileUniqueID, at: g.clock()}
	g.mu.Unlock()
}

// LastDelivered returns the platform file id of the user's most recent
// delivery, if any.
func (g *Guard) LastDelivered(userID int64) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.recent[userID]
	return e.fileUniqueID, ok
}
