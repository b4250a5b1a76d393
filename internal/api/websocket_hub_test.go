package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client

	require.NoError(t, hub.BroadcastEvent(EventCoordinatesUpdated, map[string]any{"ids": []string{"machine-A"}}))

	select {
	case message := <-client.send:
		var event LandscapeEvent
		require.NoError(t, json.Unmarshal(message, &event))
		assert.Equal(t, EventCoordinatesUpdated, event.Type)
		assert.NotZero(t, event.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}

	assert.Equal(t, 1, hub.ClientCount())

	hub.unregister <- client
	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on unregister")
	}
	assert.Equal(t, 0, hub.ClientCount())
}
