package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/models"
)

func TestNovaCreateEventAddsInstance(t *testing.T) {
	db := newFakeDB()
	db.AddNode(context.Background(), "machine-A", machineIdentity(), nil, 1)

	c := NewNovaCollector(db, nil)

	err := c.HandleEvent(context.Background(), events.Event{
		Type:      "compute.instance.create.end",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{
				"instance_id":  "vm-1",
				"vcpus":        float64(2),
				"memory_mb":    float64(4096),
				"display_name": "web-server",
				"host":         "machine-A",
			},
		},
	})
	require.NoError(t, err)

	node, ok := db.nodes["vm-1"]
	require.True(t, ok)
	assert.Equal(t, "vm", node.identity.Type)
	assert.Equal(t, "virtual", node.identity.Layer)
	assert.Equal(t, float64(2), node.state["vcpu"])
	assert.Equal(t, "web-server", node.state["vm_name"])
	assert.True(t, db.hasEdge("vm-1", "machine-A", "DEPLOYED_ON"))
}

func TestNovaPartialCreateEventIsIgnored(t *testing.T) {
	db := newFakeDB()
	c := NewNovaCollector(db, nil)

	err := c.HandleEvent(context.Background(), events.Event{
		Type:      "compute.instance.update",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{"instance_id": "vm-1"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, db.nodes)
}

func TestNovaDeleteEventExpiresInstance(t *testing.T) {
	db := newFakeDB()
	c := NewNovaCollector(db, nil)

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "compute.instance.create.end",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{
				"instance_id":  "vm-1",
				"vcpus":        float64(1),
				"memory_mb":    float64(512),
				"display_name": "db",
				"host":         "machine-A",
			},
		},
	}))

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "compute.instance.delete.end",
		Timestamp: 200,
		Payload: map[string]any{
			"payload": map[string]any{"instance_id": "vm-1"},
		},
	}))

	assert.Contains(t, db.expired, "vm-1")
}

func TestNeutronNetworkLifecycle(t *testing.T) {
	db := newFakeDB()
	c := NewNeutronCollector(db, nil)

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "network.create.end",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{
				"network": map[string]any{"id": "net-1", "name": "private"},
			},
		},
	}))
	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "subnet.create.end",
		Timestamp: 101,
		Payload: map[string]any{
			"payload": map[string]any{
				"subnet": map[string]any{"id": "subnet-1", "cidr": "10.0.0.0/24", "network_id": "net-1"},
			},
		},
	}))

	require.Contains(t, db.nodes, "net-1")
	require.Contains(t, db.nodes, "subnet-1")
	assert.Equal(t, "10.0.0.0/24", db.nodes["subnet-1"].state["cidr"])
	assert.True(t, db.hasEdge("subnet-1", "net-1", "REQUIRES"))

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "network.delete.end",
		Timestamp: 102,
		Payload: map[string]any{
			"payload": map[string]any{"network_id": "net-1"},
		},
	}))
	assert.Contains(t, db.expired, "net-1")
}

func TestNeutronPortEventConnectsDeviceAndNetwork(t *testing.T) {
	db := newFakeDB()
	c := NewNeutronCollector(db, nil)

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "port.create.end",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{
				"port": map[string]any{
					"id":          "port-1",
					"mac_address": "fa:16:3e:00:00:01",
					"device_id":   "vm-1",
					"network_id":  "net-1",
					"fixed_ips": []any{
						map[string]any{"ip_address": "10.0.0.5"},
					},
				},
			},
		},
	}))

	node := db.nodes["port-1"]
	assert.Equal(t, "vnic", node.identity.Type)
	assert.Equal(t, "10.0.0.5", node.state["ip"])
	assert.True(t, db.hasEdge("vm-1", "port-1", "REQUIRES"))
	assert.True(t, db.hasEdge("port-1", "net-1", "REQUIRES"))
}

func TestCinderVolumeLifecycle(t *testing.T) {
	db := newFakeDB()
	c := NewCinderCollector(db, nil)

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "volume.create.end",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{
				"volume_id": "vol-1",
				"size":      float64(20),
				"host":      "machine-A@lvm#pool",
				"volume_attachment": []any{
					map[string]any{"instance_uuid": "vm-1"},
				},
			},
		},
	}))

	node := db.nodes["vol-1"]
	assert.Equal(t, "volume", node.identity.Type)
	assert.Equal(t, "storage", node.identity.Category)
	assert.Equal(t, float64(20), node.state["size"])
	// Backend suffix is stripped from the host
	assert.True(t, db.hasEdge("vol-1", "machine-A", "DEPLOYED_ON"))
	assert.True(t, db.hasEdge("vm-1", "vol-1", "REQUIRES"))

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "volume.delete.end",
		Timestamp: 200,
		Payload: map[string]any{
			"payload": map[string]any{"volume_id": "vol-1"},
		},
	}))
	assert.Contains(t, db.expired, "vol-1")
}

func TestHeatStackEvents(t *testing.T) {
	db := newFakeDB()
	c := NewHeatCollector(db)

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "orchestration.stack.create.end",
		Timestamp: 100,
		Payload: map[string]any{
			"payload": map[string]any{
				"stack_identity": "arn:openstack:heat::tenant:stacks/web/stack-1",
				"stack_name":     "web",
			},
		},
	}))

	node, ok := db.nodes["stack-1"]
	require.True(t, ok)
	assert.Equal(t, "stack", node.identity.Type)
	assert.Equal(t, "service", node.identity.Layer)
	assert.Equal(t, "web", node.state["stack_name"])

	require.NoError(t, c.HandleEvent(context.Background(), events.Event{
		Type:      "orchestration.stack.delete.end",
		Timestamp: 200,
		Payload: map[string]any{
			"payload": map[string]any{"stack_id": "stack-1"},
		},
	}))
	assert.Contains(t, db.expired, "stack-1")
}

func machineIdentity() models.Identity {
	return models.Identity{Layer: models.LayerPhysical, Category: "compute", Type: "machine"}
}
