package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartAndStop(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	defer tr.Close()

	tr.Start("c1", "userB")
	tr.Start("c1", "userC")
	require.Equal(t, []string{"userB", "userC"}, tr.Typing("c1"))

	tr.Stop("c1", "userB")
	require.Equal(t, []string{"userC"}, tr.Typing("c1"))

	// stopping a user that is not typing is a no-op
	tr.Stop("c1", "userB")
	tr.Stop("c9", "userB")
	require.Equal(t, []string{"userC"}, tr.Typing("c1"))
}

// A dropped typing-stop event must not leave a stale indicator: the entry
// self-expires after the inactivity window.
func TestEntryExpiresWithoutStopSignal(t *testing.T) {
	tr := NewTracker(40*time.Millisecond, nil)
	defer tr.Close()

	tr.Start("c1", "userB")
	require.Equal(t, []string{"userB"}, tr.Typing("c1"))

	require.Eventually(t, func() bool {
		return len(tr.Typing("c1")) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRepeatedStartExtendsExpiry(t *testing.T) {
	tr := NewTracker(60*time.Millisecond, nil)
	defer tr.Close()

	tr.Start("c1", "userB")
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		tr.Start("c1", "userB")
	}
	// 120ms past the original arm time, still alive thanks to the resets
	require.Equal(t, []string{"userB"}, tr.Typing("c1"))
}

func TestCloseCancelsTimers(t *testing.T) {
	tr := NewTracker(20*time.Millisecond, nil)
	tr.Start("c1", "userB")
	tr.Close()
	tr.Close() // idempotent

	require.Empty(t, tr.Typing("c1"))
	// a late fire must not panic or resurrect state
	time.Sleep(40 * time.Millisecond)
	require.Empty(t, tr.Typing("c1"))
}

func TestConversationsAreIndependent(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	defer tr.Close()

	tr.Start("c1", "userB")
	tr.Start("c2", "userB")
	tr.Stop("c1", "userB")

	require.Empty(t, tr.Typing("c1"))
	require.Equal(t, []string{"userB"}, tr.Typing("c2"))
}
