package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	mu      sync.Mutex
	queries [][]string
	err     error
}

func (f *fakeQuerier) QueryOnline(userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	f.queries = append(f.queries, ids)
	return f.err
}

func (f *fakeQuerier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func TestApplyMergesWithoutClearing(t *testing.T) {
	tr := NewTracker(&fakeQuerier{}, time.Hour, nil)
	defer tr.Stop()

	tr.Apply(map[string]bool{"userA": true, "userB": false})
	tr.Apply(map[string]bool{"userA": false})

	online, known := tr.Online("userA")
	require.True(t, known)
	require.False(t, online)

	// userB was not in the second snapshot and keeps its value
	online, known = tr.Online("userB")
	require.True(t, known)
	require.False(t, online)
}

func TestUnknownIsDistinctFromOffline(t *testing.T) {
	tr := NewTracker(&fakeQuerier{}, time.Hour, nil)
	defer tr.Stop()

	// snapshot answers only for userA
	tr.Apply(map[string]bool{"userA": true})

	online, known := tr.Online("userA")
	require.True(t, known)
	require.True(t, online)

	_, known = tr.Online("userB")
	require.False(t, known, "userB must remain unknown, not offline")
}

func TestWatchQueriesImmediately(t *testing.T) {
	q := &fakeQuerier{}
	tr := NewTracker(q, time.Hour, nil)
	defer tr.Stop()

	tr.Watch([]string{"userA", "userB"})
	require.Equal(t, 1, q.count())
	require.ElementsMatch(t, []string{"userA", "userB"}, q.queries[0])
}

func TestPeriodicRequeryOfWatchedSet(t *testing.T) {
	q := &fakeQuerier{}
	tr := NewTracker(q, 20*time.Millisecond, nil)
	defer tr.Stop()

	tr.Watch([]string{"userA"})
	require.Eventually(t, func() bool { return q.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestNoQueriesAfterStop(t *testing.T) {
	q := &fakeQuerier{}
	tr := NewTracker(q, 10*time.Millisecond, nil)
	tr.Watch([]string{"userA"})
	tr.Stop()
	tr.Stop() // idempotent

	time.Sleep(30 * time.Millisecond)
	after := q.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, q.count(), "ticker fired after teardown")
}

func TestEmptyQueryIsSkipped(t *testing.T) {
	q := &fakeQuerier{}
	tr := NewTracker(q, time.Hour, nil)
	defer tr.Stop()

	tr.Query(nil)
	require.Zero(t, q.count())
}
