// Package presence maintains a best-effort online/offline snapshot for user
// identities. Absence of an entry means "unknown", which is distinct from
// offline. Entries are refreshed on demand and on a periodic timer.
package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultQueryInterval bounds staleness for watched identities.
const DefaultQueryInterval = 30 * time.Second

// Querier requests a presence snapshot from the server. Results arrive later
// through Apply; a user the server does not answer for keeps its last state.
type Querier interface {
	QueryOnline(userIDs []string) error
}

// Tracker holds the user-id to online mapping. It is safe for concurrent
// reads while the session read loop applies inbound snapshots.
type Tracker struct {
	querier  Querier
	log      *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	statuses map[string]bool
	watched  map[string]struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTracker constructs a tracker and starts its periodic re-query loop.
// interval <= 0 falls back to DefaultQueryInterval.
func NewTracker(querier Querier, interval time.Duration, log *zap.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultQueryInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		querier:  querier,
		log:      log,
		interval: interval,
		statuses: make(map[string]bool),
		watched:  make(map[string]struct{}),
		stop:     make(chan struct{}),
	}
	go t.loop()
	return t
}

// Query requests a one-shot snapshot for the given identities. No error is
// surfaced for unanswered ids; they stay at their last known value.
func (t *Tracker) Query(userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	if err := t.querier.QueryOnline(userIDs); err != nil {
		t.log.Debug("presence query failed", zap.Error(err))
	}
}

// Watch replaces the set of identities the periodic loop keeps fresh and
// queries them immediately.
func (t *Tracker) Watch(userIDs []string) {
	t.mu.Lock()
	t.watched = make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		t.watched[id] = struct{}{}
	}
	t.mu.Unlock()
	t.Query(userIDs)
}

// Apply merges a presence snapshot into the mapping. Overwrite semantics per
// id; ids not present in the snapshot are never cleared.
func (t *Tracker) Apply(statuses map[string]bool) {
	if len(statuses) == 0 {
		return
	}
	t.mu.Lock()
	for id, online := range statuses {
		t.statuses[id] = online
	}
	t.mu.Unlock()
}

// Online reports the last known state for the user. known is false when the
// tracker has never seen an answer for this id.
func (t *Tracker) Online(userID string) (online bool, known bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	online, known = t.statuses[userID]
	return online, known
}

// Stop cancels the periodic loop. The timer never fires after Stop returns
// its channel closed; Stop is idempotent.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.mu.RLock()
			ids := make([]string, 0, len(t.watched))
			for id := range t.watched {
				ids = append(ids, id)
			}
			t.mu.RUnlock()
			t.Query(ids)
		}
	}
}
