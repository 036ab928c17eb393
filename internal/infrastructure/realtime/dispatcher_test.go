package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var got []string
	d.Subscribe("message", func(json.RawMessage) { got = append(got, "first") })
	d.Subscribe("message", func(json.RawMessage) { got = append(got, "second") })
	d.Subscribe("other", func(json.RawMessage) { got = append(got, "other") })

	d.Dispatch("message", nil)

	require.Equal(t, []string{"first", "second"}, got)
}

func TestUnsubscribeDetaches(t *testing.T) {
	d := NewDispatcher()
	var calls int
	sub := d.Subscribe("message", func(json.RawMessage) { calls++ })
	d.Dispatch("message", nil)
	require.Equal(t, 1, calls)

	sub.Unsubscribe()
	d.Dispatch("message", nil)
	require.Equal(t, 1, calls)

	// double unsubscribe is a no-op
	sub.Unsubscribe()
}

func TestUnsubscribeOnlyRemovesItsOwnHandler(t *testing.T) {
	d := NewDispatcher()
	var first, second int
	subA := d.Subscribe("message", func(json.RawMessage) { first++ })
	d.Subscribe("message", func(json.RawMessage) { second++ })

	subA.Unsubscribe()
	d.Dispatch("message", nil)

	require.Equal(t, 0, first)
	require.Equal(t, 1, second)
}

func TestDispatchUnknownEventIsNoop(t *testing.T) {
	d := NewDispatcher()
	require.NotPanics(t, func() { d.Dispatch("nobody-listens", json.RawMessage(`{}`)) })
}
