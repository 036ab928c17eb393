// Package directory owns the ordered set of conversations visible to the
// current user, each annotated with a last-message preview and a client-local
// unread counter. The set is rebuilt from authoritative server responses on
// load and mutated incrementally by inbound events; the incremental view
// must never diverge from what a full reload would produce.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/api"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/cache/port"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

const (
	snapshotTTL     = 24 * time.Hour
	reloadTimeout   = 10 * time.Second
	snapshotKeyBase = "chat:directory:"
)

// Loader is the authoritative source of the conversation list.
type Loader interface {
	Conversations(ctx context.Context) ([]domain.Conversation, error)
}

// Directory is the exclusive owner of the conversation records and their
// unread counters for one logical session.
type Directory struct {
	loader    Loader
	cache     port.Cache // optional; nil disables warm-start snapshots
	localUser string
	log       *zap.Logger

	mu            sync.RWMutex
	conversations []domain.Conversation
	openID        string
	state         domain.LoadState
	lastErr       string
	retries       int
	stale         bool // serving a warm-start snapshot, not a live load
	loading       bool // single-flight guard for event-triggered reloads

	onLoaded func() // invoked after each successful live load
}

// New constructs a directory for the given local user. cache may be nil.
func New(loader Loader, cache port.Cache, localUser string, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		loader:    loader,
		cache:     cache,
		localUser: localUser,
		log:       log,
	}
}

// SetOnLoaded registers a hook run after every successful live load, e.g. to
// refresh the presence watch set. Must be set before the first load.
func (d *Directory) SetOnLoaded(fn func()) {
	d.mu.Lock()
	d.onLoaded = fn
	d.mu.Unlock()
}

// WarmStart pre-populates the list from the cached snapshot of a previous
// run. The view is flagged stale until the first live load succeeds; a live
// load always overwrites it. Missing or unreadable snapshots are ignored.
func (d *Directory) WarmStart(ctx context.Context) {
	if d.cache == nil {
		return
	}
	raw, err := d.cache.Get(ctx, d.snapshotKey())
	if err != nil {
		if !errors.Is(err, port.ErrMiss) {
			d.log.Debug("snapshot read failed", zap.Error(err))
		}
		return
	}
	var convs []domain.Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		d.log.Warn("snapshot corrupt, ignoring", zap.Error(err))
		return
	}

	d.mu.Lock()
	if d.state == domain.LoadInitial {
		d.conversations = convs
		d.stale = true
	}
	d.mu.Unlock()
}

// LoadAll replaces the full conversation set from the server. Failures are
// classified: an auth failure flips the directory into LoadAuthRequired,
// anything else into LoadFailed with the literal error text and a
// display-only retry count. Success resets both and clears staleness.
// Previously loaded conversations are kept on failure as last-known state.
func (d *Directory) LoadAll(ctx context.Context) error {
	convs, err := d.loader.Conversations(ctx)
	if err != nil {
		d.mu.Lock()
		if errors.Is(err, api.ErrUnauthorized) {
			d.state = domain.LoadAuthRequired
		} else {
			d.state = domain.LoadFailed
		}
		d.lastErr = err.Error()
		d.retries++
		d.mu.Unlock()
		d.log.Warn("conversation load failed", zap.Error(err))
		return err
	}

	d.mu.Lock()
	d.conversations = convs
	// an open conversation is by definition fully seen, whatever the server counted
	if d.openID != "" {
		if i := d.indexLocked(d.openID); i >= 0 {
			d.conversations[i].Unread = 0
		}
	}
	d.state = domain.LoadReady
	d.lastErr = ""
	d.retries = 0
	d.stale = false
	hook := d.onLoaded
	d.mu.Unlock()

	d.writeSnapshot(ctx, convs)
	if hook != nil {
		hook()
	}
	return nil
}

// ApplyIncomingMessage reconciles one inbound message event. Preview fields
// update unconditionally; the unread counter increments only when the
// conversation is not the open one and the sender is not the local user. A
// message for a conversation the directory has never seen signals missed
// state and triggers a full reload instead of being dropped.
func (d *Directory) ApplyIncomingMessage(conversationID string, msg domain.Message) {
	d.mu.Lock()
	i := d.indexLocked(conversationID)
	if i < 0 {
		d.mu.Unlock()
		d.reloadAsync(conversationID)
		return
	}

	conv := &d.conversations[i]
	conv.ApplyPreview(msg)
	if conversationID != d.openID && msg.SenderID != d.localUser {
		conv.Unread++
	}
	// keep list order consistent with a reload: most recent activity first
	if i > 0 {
		moved := d.conversations[i]
		copy(d.conversations[1:i+1], d.conversations[0:i])
		d.conversations[0] = moved
	}
	d.mu.Unlock()
}

// MarkViewed resets the conversation's unread counter to zero and records it
// as the open one. Called exactly when the UI transitions to showing it.
func (d *Directory) MarkViewed(conversationID string) {
	d.mu.Lock()
	d.openID = conversationID
	if i := d.indexLocked(conversationID); i >= 0 {
		d.conversations[i].Unread = 0
	}
	d.mu.Unlock()
}

// ClearOpen records that no conversation is currently open.
func (d *Directory) ClearOpen() {
	d.mu.Lock()
	d.openID = ""
	d.mu.Unlock()
}

// Conversations returns a copy of the current list in display order.
func (d *Directory) Conversations() []domain.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// OtherParticipants returns the distinct other-participant ids across the
// loaded conversations, for the presence watch set.
func (d *Directory) OtherParticipants() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, conv := range d.conversations {
		for _, id := range conv.Participants {
			if id == d.localUser {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Status reports the render classification plus the literal error text and
// display-only retry count.
func (d *Directory) Status() (state domain.LoadState, lastErr string, retries int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state, d.lastErr, d.retries
}

// Stale reports whether the list is a warm-start snapshot not yet confirmed
// by a live load.
func (d *Directory) Stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stale
}

func (d *Directory) indexLocked(conversationID string) int {
	for i := range d.conversations {
		if d.conversations[i].ID == conversationID {
			return i
		}
	}
	return -1
}

// reloadAsync runs LoadAll off the event path, single-flighted so a burst of
// messages for an unknown conversation triggers one reload.
func (d *Directory) reloadAsync(conversationID string) {
	d.mu.Lock()
	if d.loading {
		d.mu.Unlock()
		return
	}
	d.loading = true
	d.mu.Unlock()

	d.log.Info("message for unknown conversation, reloading directory",
		zap.String("conversation_id", conversationID))

	go func() {
		defer func() {
			d.mu.Lock()
			d.loading = false
			d.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		_ = d.LoadAll(ctx)
	}()
}

func (d *Directory) writeSnapshot(ctx context.Context, convs []domain.Conversation) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(convs)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, d.snapshotKey(), string(raw), snapshotTTL); err != nil {
		d.log.Debug("snapshot write failed", zap.Error(err))
	}
}

func (d *Directory) snapshotKey() string {
	return snapshotKeyBase + d.localUser
}
