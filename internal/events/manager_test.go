package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManagerDispatchesToSubscribers(t *testing.T) {
	m := NewManager(false)

	var got []Event
	m.Subscribe(func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	}, "compute.instance.create.end", "compute.instance.delete.end")

	m.Dispatch(context.Background(), Event{Type: "compute.instance.create.end", Timestamp: 100})
	m.Dispatch(context.Background(), Event{Type: "volume.create.end", Timestamp: 101})
	m.Dispatch(context.Background(), Event{Type: "compute.instance.delete.end", Timestamp: 102})

	assert.Len(t, got, 2)
	assert.Equal(t, "compute.instance.create.end", got[0].Type)
	assert.Equal(t, "compute.instance.delete.end", got[1].Type)
}

func TestManagerDeliversToAllHandlers(t *testing.T) {
	m := NewManager(false)

	first, second := 0, 0
	m.Subscribe(func(context.Context, Event) error {
		first++
		return errors.New("boom")
	}, "network.create.end")
	m.Subscribe(func(context.Context, Event) error {
		second++
		return nil
	}, "network.create.end")

	m.Dispatch(context.Background(), Event{Type: "network.create.end"})

	// A failing handler must not block the others
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestManagerSubscribed(t *testing.T) {
	m := NewManager(false)
	assert.False(t, m.Subscribed("volume.create.end"))

	m.Subscribe(func(context.Context, Event) error { return nil }, "volume.create.end")
	assert.True(t, m.Subscribed("volume.create.end"))
}
