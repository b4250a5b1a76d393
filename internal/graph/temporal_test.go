package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-landscape/landscaper/models"
)

func TestSafeLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{"plain category", "compute", false},
		{"with underscore", "compute_state", false},
		{"uppercase relationship", "DEPLOYED_ON", false},
		{"empty", "", true},
		{"leading digit", "1compute", true},
		{"injection attempt", "compute) DETACH DELETE (n", true},
		{"dash", "compute-node", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := safeLabel(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, got)
		})
	}
}

func TestEncodeAttrs(t *testing.T) {
	state := models.State{
		"vcpu":    4,
		"vm_name": "instance-1",
		"active":  true,
		"limits":  map[string]any{"cpu": 2, "mem": 4096},
		"tags":    []string{"web", "prod"},
	}

	encoded := encodeAttrs(state)

	// Scalars pass through untouched
	assert.Equal(t, 4, encoded["vcpu"])
	assert.Equal(t, "instance-1", encoded["vm_name"])
	assert.Equal(t, true, encoded["active"])

	// Nested values become JSON strings
	assert.IsType(t, "", encoded["limits"])
	assert.IsType(t, "", encoded["tags"])
	assert.JSONEq(t, `{"cpu":2,"mem":4096}`, encoded["limits"].(string))
	assert.JSONEq(t, `["web","prod"]`, encoded["tags"].(string))
}

func TestDecodeAttrsRoundTrip(t *testing.T) {
	encoded := map[string]any{
		"vcpu":   int64(4),
		"limits": `{"cpu":2,"mem":4096}`,
		"tags":   `["web","prod"]`,
		"note":   "plain text, not json",
	}

	decoded := decodeAttrs(encoded)

	assert.Equal(t, int64(4), decoded["vcpu"])
	assert.Equal(t, map[string]any{"cpu": float64(2), "mem": float64(4096)}, decoded["limits"])
	assert.Equal(t, []any{"web", "prod"}, decoded["tags"])
	assert.Equal(t, "plain text, not json", decoded["note"])
}

func TestStateEqualAfterStorageRoundTrip(t *testing.T) {
	state := models.State{
		"vcpu":    4,
		"vm_name": "instance-1",
		"limits":  map[string]any{"cpu": 2, "mem": 4096},
		"tags":    []string{"web", "prod"},
	}

	// Encoding for storage and decoding on read must not make an
	// identical state look changed, or no-op updates grow the history.
	stored := models.State(decodeAttrs(encodeAttrs(state)))
	assert.True(t, stored.Equal(state))
	assert.True(t, state.Equal(stored))
}

func TestMergeAttributes(t *testing.T) {
	identity := map[string]any{
		"name":     "machine-A",
		"layer":    "physical",
		"category": "compute",
		"type":     "machine",
	}
	state := map[string]any{
		"serial": "abc123",
	}

	merged := mergeAttributes(identity, state)

	assert.Equal(t, "machine-A", merged["name"])
	assert.Equal(t, "abc123", merged["serial"])
	assert.Len(t, merged, 5)
}

func TestMergeAttributesRenamesClashes(t *testing.T) {
	identity := map[string]any{
		"name":     "vm-1",
		"layer":    "virtual",
		"category": "compute",
		"type":     "vm",
	}
	state := map[string]any{
		"name": "instance-name-from-nova",
		"vcpu": 2,
	}

	merged := mergeAttributes(identity, state)

	// Identity wins the reserved key, the state value moves aside
	assert.Equal(t, "vm-1", merged["name"])
	assert.Equal(t, "instance-name-from-nova", merged["vm-name"])
	assert.Equal(t, 2, merged["vcpu"])
}

func TestUniqueAttributeNameSuffixes(t *testing.T) {
	taken := map[string]any{
		"name":      "x",
		"vm-name":   "y",
		"vm-name_1": "z",
	}

	assert.Equal(t, "vm-name_2", uniqueAttributeName("name", "vm", taken))
	assert.Equal(t, "free", uniqueAttributeName("free", "vm", taken))
}

func TestNodeErrorMessage(t *testing.T) {
	err := &NodeError{ID: "machine-X", Reason: reasonNotInLandscape}
	assert.Equal(t, "Node with ID 'machine-X', not in the landscape.", err.Error())

	err = &NodeError{ID: "pu-0", Reason: reasonNoCoordinates}
	assert.Equal(t, "Node with ID 'pu-0', does not accept coordinates.", err.Error())
}
