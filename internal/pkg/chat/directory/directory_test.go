package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/api"
	cacheadapter "github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/cache/adapter"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

type fakeLoader struct {
	mu    sync.Mutex
	convs []domain.Conversation
	err   error
	calls int
}

func (f *fakeLoader) Conversations(context.Context) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Conversation, len(f.convs))
	copy(out, f.convs)
	return out, nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func conv(id, other string, unread int) domain.Conversation {
	return domain.Conversation{
		ID:           id,
		Participants: []string{"me", other},
		Other:        domain.UserSummary{ID: other},
		Unread:       unread,
	}
}

func msg(id, convID, sender, body string, at time.Time) domain.Message {
	return domain.Message{ID: id, ConversationID: convID, SenderID: sender, Body: body, CreatedAt: at}
}

// A message for a conversation that is not open bumps its unread counter and
// preview; opening the conversation resets the counter to zero.
func TestIncomingMessageIncrementsUnreadAndUpdatesPreview(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0)}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))

	d.ApplyIncomingMessage("c1", msg("m1", "c1", "userB", "hi", time.Now()))

	convs := d.Conversations()
	require.Len(t, convs, 1)
	require.Equal(t, 1, convs[0].Unread)
	require.NotNil(t, convs[0].LastMessage)
	require.Equal(t, "hi", convs[0].LastMessage.Body)

	d.MarkViewed("c1")
	require.Equal(t, 0, d.Conversations()[0].Unread)
}

func TestUnreadCountsOnlyForeignMessages(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0)}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))

	now := time.Now()
	d.ApplyIncomingMessage("c1", msg("m1", "c1", "userB", "one", now))
	d.ApplyIncomingMessage("c1", msg("m2", "c1", "me", "mine", now.Add(time.Second)))
	d.ApplyIncomingMessage("c1", msg("m3", "c1", "userB", "two", now.Add(2*time.Second)))

	c := d.Conversations()[0]
	require.Equal(t, 2, c.Unread, "own messages never increment unread")
	require.Equal(t, "two", c.LastMessage.Body, "preview updates unconditionally")
}

func TestNoIncrementWhileConversationOpen(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0)}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))

	d.MarkViewed("c1")
	d.ApplyIncomingMessage("c1", msg("m1", "c1", "userB", "hi", time.Now()))
	require.Equal(t, 0, d.Conversations()[0].Unread)

	d.ClearOpen()
	d.ApplyIncomingMessage("c1", msg("m2", "c1", "userB", "hi again", time.Now()))
	require.Equal(t, 1, d.Conversations()[0].Unread)
}

func TestIncomingMessageMovesConversationToFront(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{
		conv("c1", "userB", 0),
		conv("c2", "userC", 0),
		conv("c3", "userD", 0),
	}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))

	d.ApplyIncomingMessage("c3", msg("m1", "c3", "userD", "fresh", time.Now()))

	ids := []string{}
	for _, c := range d.Conversations() {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"c3", "c1", "c2"}, ids)
}

func TestUnknownConversationTriggersReload(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0)}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))
	require.Equal(t, 1, loader.callCount())

	loader.mu.Lock()
	loader.convs = append(loader.convs, conv("c9", "userZ", 1))
	loader.mu.Unlock()

	d.ApplyIncomingMessage("c9", msg("m1", "c9", "userZ", "new conv", time.Now()))

	require.Eventually(t, func() bool {
		convs := d.Conversations()
		return loader.callCount() == 2 && len(convs) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuthFailureIsDistinctFromNetworkFailure(t *testing.T) {
	loader := &fakeLoader{err: api.ErrUnauthorized}
	d := New(loader, nil, "me", nil)

	require.Error(t, d.LoadAll(context.Background()))
	state, _, _ := d.Status()
	require.Equal(t, domain.LoadAuthRequired, state)

	loader.mu.Lock()
	loader.err = errors.New("connection refused")
	loader.mu.Unlock()
	require.Error(t, d.LoadAll(context.Background()))
	state, lastErr, retries := d.Status()
	require.Equal(t, domain.LoadFailed, state)
	require.Contains(t, lastErr, "connection refused")
	require.Equal(t, 2, retries)

	// success clears the error and the retry count
	loader.mu.Lock()
	loader.err = nil
	loader.convs = []domain.Conversation{conv("c1", "userB", 0)}
	loader.mu.Unlock()
	require.NoError(t, d.LoadAll(context.Background()))
	state, lastErr, retries = d.Status()
	require.Equal(t, domain.LoadReady, state)
	require.Empty(t, lastErr)
	require.Zero(t, retries)
}

func TestFailedLoadKeepsLastKnownConversations(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0)}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))

	loader.mu.Lock()
	loader.err = errors.New("boom")
	loader.mu.Unlock()
	require.Error(t, d.LoadAll(context.Background()))
	require.Len(t, d.Conversations(), 1)
}

func TestWarmStartServesSnapshotUntilLiveLoad(t *testing.T) {
	cache := cacheadapter.NewMemoryCache()
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0)}}

	first := New(loader, cache, "me", nil)
	require.NoError(t, first.LoadAll(context.Background()))

	// a fresh directory for the same user starts from the snapshot
	loader2 := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 0), conv("c2", "userC", 0)}}
	second := New(loader2, cache, "me", nil)
	second.WarmStart(context.Background())
	require.True(t, second.Stale())
	require.Len(t, second.Conversations(), 1)

	require.NoError(t, second.LoadAll(context.Background()))
	require.False(t, second.Stale())
	require.Len(t, second.Conversations(), 2, "live load always overwrites the snapshot")
}

func TestOtherParticipantsAreDistinct(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{
		conv("c1", "userB", 0),
		conv("c2", "userB", 0),
		conv("c3", "userC", 0),
	}}
	d := New(loader, nil, "me", nil)
	require.NoError(t, d.LoadAll(context.Background()))

	require.ElementsMatch(t, []string{"userB", "userC"}, d.OtherParticipants())
}

func TestReloadZeroesOpenConversationUnread(t *testing.T) {
	loader := &fakeLoader{convs: []domain.Conversation{conv("c1", "userB", 3)}}
	d := New(loader, nil, "me", nil)
	d.MarkViewed("c1")

	require.NoError(t, d.LoadAll(context.Background()))
	require.Equal(t, 0, d.Conversations()[0].Unread)
}
