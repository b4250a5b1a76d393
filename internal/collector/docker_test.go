package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-landscape/landscaper/internal/events"
)

func TestDockerDeleteEventExpiresContainer(t *testing.T) {
	db := newFakeDB()
	c := &DockerCollector{db: db}

	err := c.HandleEvent(context.Background(), events.Event{
		Type:      "docker.destroy",
		Payload:   map[string]any{"id": "ctr-1", "actor": "container"},
		Timestamp: 300,
	})
	require.NoError(t, err)
	assert.Contains(t, db.expired, "ctr-1")
}

func TestDockerEventWithoutIDFails(t *testing.T) {
	c := &DockerCollector{db: newFakeDB()}

	err := c.HandleEvent(context.Background(), events.Event{
		Type:    "docker.create",
		Payload: map[string]any{},
	})
	assert.Error(t, err)
}
