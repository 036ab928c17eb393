// Package thread owns the ordered message list of the single currently-open
// conversation. It merges inbound messages and read receipts, deduplicates
// double delivery by message id, and issues mark-read requests for messages
// the local user has now seen.
package thread

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/api"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

// Loader is the authoritative source of a conversation's message history.
type Loader interface {
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// RoomClient is the slice of the transport the reconciler drives: room
// membership plus read reporting.
type RoomClient interface {
	Join(conversationID string) error
	Leave(conversationID string) error
	MarkRead(conversationID string, messageIDs []string) error
}

// Reconciler holds the open thread. A full load is the sole source of truth
// on open; inbound events mutate it incrementally afterwards. Appended
// messages keep arrival order: the event stream is assumed to deliver
// messages of one conversation in creation order, and no sorting pass hides
// a violation of that assumption.
type Reconciler struct {
	loader    Loader
	rooms     RoomClient
	localUser string
	log       *zap.Logger

	mu             sync.Mutex
	conversationID string
	messages       []domain.Message
	byID           map[string]int
	inflight       map[string]struct{} // mark-read ids sent but not yet receipted
	state          domain.LoadState
	lastErr        string
	retries        int
}

// New constructs a reconciler for the given local user.
func New(loader Loader, rooms RoomClient, localUser string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		loader:    loader,
		rooms:     rooms,
		localUser: localUser,
		log:       log,
		byID:      make(map[string]int),
		inflight:  make(map[string]struct{}),
	}
}

// Load opens the conversation: joins its room, replaces the message list
// from the server and reports any unread incoming messages as read. Switching
// from another open conversation leaves its room first, so room memberships
// never accumulate across back-to-back opens. Retrying a failed load is
// idempotent; the retry count is display-only.
func (r *Reconciler) Load(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("thread: conversation id is required")
	}

	r.mu.Lock()
	prev := r.conversationID
	r.mu.Unlock()
	if prev != "" && prev != conversationID {
		_ = r.rooms.Leave(prev)
	}

	if err := r.rooms.Join(conversationID); err != nil {
		// membership is recorded either way; the room is re-established on reconnect
		r.log.Debug("join not delivered", zap.Error(err))
	}

	msgs, err := r.loader.Messages(ctx, conversationID)
	if err != nil {
		r.mu.Lock()
		r.conversationID = conversationID
		if errors.Is(err, api.ErrUnauthorized) {
			r.state = domain.LoadAuthRequired
		} else {
			r.state = domain.LoadFailed
		}
		r.lastErr = err.Error()
		r.retries++
		r.mu.Unlock()
		r.log.Warn("thread load failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return err
	}

	r.mu.Lock()
	r.conversationID = conversationID
	r.messages = msgs
	r.byID = make(map[string]int, len(msgs))
	for i := range msgs {
		r.byID[msgs[i].ID] = i
	}
	r.inflight = make(map[string]struct{})
	r.state = domain.LoadReady
	r.lastErr = ""
	r.retries = 0
	r.reportUnreadLocked()
	r.mu.Unlock()
	return nil
}

// ApplyIncoming merges one inbound message event. Events for other
// conversations are ignored; a message id already present is dropped, which
// is the single defense against double delivery of the sender's own
// server-echoed message.
func (r *Reconciler) ApplyIncoming(msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conversationID == "" || msg.ConversationID != r.conversationID {
		return
	}
	if _, ok := r.byID[msg.ID]; ok {
		return
	}
	r.byID[msg.ID] = len(r.messages)
	r.messages = append(r.messages, msg)
	r.reportUnreadLocked()
}

// ApplyReadReceipts marks the listed messages read at the receipt time.
// Unknown ids and receipts for other conversations are silent no-ops;
// re-applying a receipt leaves state unchanged.
func (r *Reconciler) ApplyReadReceipts(conversationID string, messageIDs []string, readAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conversationID == "" || conversationID != r.conversationID {
		return
	}
	for _, id := range messageIDs {
		i, ok := r.byID[id]
		if !ok {
			continue
		}
		r.messages[i].MarkRead(readAt)
		delete(r.inflight, id)
	}
}

// Messages returns a copy of the thread in arrival order.
func (r *Reconciler) Messages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// ConversationID returns the id of the open conversation, or "".
func (r *Reconciler) ConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversationID
}

// Status reports the render classification plus the literal error text and
// display-only retry count.
func (r *Reconciler) Status() (state domain.LoadState, lastErr string, retries int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.lastErr, r.retries
}

// Close leaves the room and clears the thread. Closing an already-closed
// reconciler is a no-op.
func (r *Reconciler) Close() {
	r.mu.Lock()
	id := r.conversationID
	r.conversationID = ""
	r.messages = nil
	r.byID = make(map[string]int)
	r.inflight = make(map[string]struct{})
	r.state = domain.LoadInitial
	r.mu.Unlock()
	if id != "" {
		_ = r.rooms.Leave(id)
	}
}

// reportUnreadLocked recomputes the set of unread messages from other users
// and issues one mark-read request for exactly the ids not already in an
// unacknowledged request. Re-invocations as new messages append never repeat
// ids, preventing duplicate mark-read storms.
func (r *Reconciler) reportUnreadLocked() {
	var ids []string
	for i := range r.messages {
		m := &r.messages[i]
		if m.Read || m.SenderID == r.localUser {
			continue
		}
		if _, sent := r.inflight[m.ID]; sent {
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		r.inflight[id] = struct{}{}
	}
	if err := r.rooms.MarkRead(r.conversationID, ids); err != nil {
		// drop the claim so the ids are retried on the next state change
		for _, id := range ids {
			delete(r.inflight, id)
		}
		r.log.Debug("mark-read not delivered", zap.Error(err))
	}
}
