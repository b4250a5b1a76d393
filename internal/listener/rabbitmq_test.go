package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNotificationPlain(t *testing.T) {
	body := []byte(`{
		"event_type": "compute.instance.create.end",
		"timestamp": "2024-05-01 12:00:00.000000",
		"payload": {"instance_id": "vm-1"}
	}`)

	event, ok := DecodeNotification(body)
	require.True(t, ok)
	assert.Equal(t, "compute.instance.create.end", event.Type)

	payload, _ := event.Payload["payload"].(map[string]any)
	assert.Equal(t, "vm-1", payload["instance_id"])

	// 2024-05-01T12:00:00Z
	assert.Equal(t, int64(1714564800), event.Timestamp)
}

func TestDecodeNotificationOsloEnvelope(t *testing.T) {
	body := []byte(`{
		"oslo.version": "2.0",
		"oslo.message": "{\"event_type\": \"volume.create.end\", \"payload\": {\"volume_id\": \"vol-1\"}}"
	}`)

	event, ok := DecodeNotification(body)
	require.True(t, ok)
	assert.Equal(t, "volume.create.end", event.Type)
}

func TestDecodeNotificationRejectsJunk(t *testing.T) {
	_, ok := DecodeNotification([]byte(`not json`))
	assert.False(t, ok)

	_, ok = DecodeNotification([]byte(`{"no_event_type": true}`))
	assert.False(t, ok)
}

func TestMachineFromPath(t *testing.T) {
	machine, ok := MachineFromPath("/data/machine-A_hwloc.xml")
	require.True(t, ok)
	assert.Equal(t, "machine-A", machine)

	_, ok = MachineFromPath("/data/machine-A_cpuinfo.txt")
	assert.False(t, ok)
}
