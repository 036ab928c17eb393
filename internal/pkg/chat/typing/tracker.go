// Package typing tracks which remote users are composing a message, per
// conversation. Entries are ephemeral: every entry self-expires after a
// bounded inactivity window so a dropped typing-stop event cannot leave a
// stale indicator behind.
package typing

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultExpiry matches the sender-side debounce window: a live typist
// refreshes the entry at least this often.
const DefaultExpiry = 2 * time.Second

// Tracker holds the conversation-id to typing-user-set mapping.
type Tracker struct {
	log    *zap.Logger
	expiry time.Duration

	mu     sync.Mutex
	timers map[string]map[string]*time.Timer // conversation -> user -> expiry timer
	closed bool
}

// NewTracker constructs a tracker. expiry <= 0 falls back to DefaultExpiry.
func NewTracker(expiry time.Duration, log *zap.Logger) *Tracker {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		log:    log,
		expiry: expiry,
		timers: make(map[string]map[string]*time.Timer),
	}
}

// Start records that userID is typing in the conversation and (re)arms its
// expiry timer.
func (t *Tracker) Start(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	users := t.timers[conversationID]
	if users == nil {
		users = make(map[string]*time.Timer)
		t.timers[conversationID] = users
	}
	if timer, ok := users[userID]; ok {
		timer.Reset(t.expiry)
		return
	}
	users[userID] = time.AfterFunc(t.expiry, func() {
		t.expire(conversationID, userID)
	})
}

// Stop removes userID from the conversation's typing set. Stopping a user
// that is not typing is a no-op.
func (t *Tracker) Stop(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(conversationID, userID)
}

// Typing returns the sorted set of users currently composing in the
// conversation.
func (t *Tracker) Typing(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.timers[conversationID]
	if len(users) == 0 {
		return nil
	}
	out := make([]string, 0, len(users))
	for id := range users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close cancels all expiry timers. No timer fires after Close.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, users := range t.timers {
		for _, timer := range users {
			timer.Stop()
		}
	}
	t.timers = make(map[string]map[string]*time.Timer)
}

func (t *Tracker) expire(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.log.Debug("typing entry expired",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID))
	t.removeLocked(conversationID, userID)
}

func (t *Tracker) removeLocked(conversationID, userID string) {
	users := t.timers[conversationID]
	timer, ok := users[userID]
	if !ok {
		return
	}
	timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(t.timers, conversationID)
	}
}
