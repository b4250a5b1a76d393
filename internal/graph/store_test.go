package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-landscape/landscaper/models"
)

// fakeRunner answers the store's cypher statements from in-memory maps,
// so the temporal logic can be exercised without a database.
type fakeRunner struct {
	identities   map[string]map[string]any
	livingStates map[string]map[string]any
	livingEdges  map[string]bool
	writes       []storeWrite
}

type storeWrite struct {
	cypher string
	params map[string]any
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		identities:   map[string]map[string]any{},
		livingStates: map[string]map[string]any{},
		livingEdges:  map[string]bool{},
	}
}

func (f *fakeRunner) addNode(id, nodeType, category string, state map[string]any) {
	f.identities[id] = map[string]any{
		models.NameProp:     id,
		models.LayerProp:    models.LayerVirtual,
		models.CategoryProp: category,
		models.TypeProp:     nodeType,
	}
	if state != nil {
		f.livingStates[id] = state
	}
}

func (f *fakeRunner) write(_ context.Context, cypher string, params map[string]any) error {
	f.writes = append(f.writes, storeWrite{cypher: cypher, params: params})
	return nil
}

func (f *fakeRunner) collect(_ context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	switch {
	case strings.Contains(cypher, "RETURN r.from"):
		src, _ := params["src"].(string)
		dst, _ := params["dst"].(string)
		if f.livingEdges[src+"|"+dst] {
			return records("r.from", int64(1)), nil
		}
		return nil, nil

	case strings.Contains(cypher, "RETURN properties(st)"):
		if state, ok := f.livingStates[params["id"].(string)]; ok {
			return records("state", state), nil
		}
		return nil, nil

	case strings.Contains(cypher, "RETURN properties(n) AS identity"):
		id, _ := params["id"].(string)
		identity, ok := f.identities[id]
		if !ok {
			return nil, nil
		}
		if strings.Contains(cypher, "r.from <= $ts") {
			if _, alive := f.livingStates[id]; !alive {
				return nil, nil
			}
		}
		return records("identity", identity), nil

	case strings.Contains(cypher, "RETURN n.category"):
		if identity, ok := f.identities[params["id"].(string)]; ok {
			return records("category", identity[models.CategoryProp]), nil
		}
		return nil, nil

	case strings.Contains(cypher, "RETURN n.name"):
		if _, ok := f.identities[params["id"].(string)]; ok {
			return records("name", params["id"]), nil
		}
		return nil, nil
	}
	return nil, nil
}

func records(key string, value any) []*neo4j.Record {
	return []*neo4j.Record{{Keys: []string{key}, Values: []any{value}}}
}

func testStore(f *fakeRunner) *Store {
	return &Store{run: f}
}

func TestAddEdgeSkipsLivingDuplicate(t *testing.T) {
	f := newFakeRunner()
	f.addNode("vm-1", "vm", "compute", map[string]any{"vcpu": int64(2)})
	f.addNode("machine-A", "machine", "compute", map[string]any{"serial": "abc"})
	f.livingEdges["vm-1|machine-A"] = true

	err := testStore(f).AddEdge(context.Background(), "vm-1", "machine-A", RelDeployedOn, 100)
	require.NoError(t, err)
	assert.Empty(t, f.writes, "a living edge must not be re-created")
}

func TestAddEdgeCreatesMissingEdge(t *testing.T) {
	f := newFakeRunner()
	f.addNode("vm-1", "vm", "compute", nil)
	f.addNode("machine-A", "machine", "compute", nil)

	err := testStore(f).AddEdge(context.Background(), "vm-1", "machine-A", RelDeployedOn, 100)
	require.NoError(t, err)

	require.Len(t, f.writes, 1)
	assert.Contains(t, f.writes[0].cypher, "CREATE (a)-[:DEPLOYED_ON")
	assert.Equal(t, "vm-1", f.writes[0].params["src"])
	assert.Equal(t, "machine-A", f.writes[0].params["dst"])
	assert.Equal(t, EndOfTime, f.writes[0].params["eot"])
}

func TestAddEdgeSkipsUnknownEndpoint(t *testing.T) {
	f := newFakeRunner()
	f.addNode("vm-1", "vm", "compute", nil)

	err := testStore(f).AddEdge(context.Background(), "vm-1", "ghost", RelDeployedOn, 100)
	require.NoError(t, err)
	assert.Empty(t, f.writes)
}

func TestUpdateNodeSkipsIdenticalState(t *testing.T) {
	f := newFakeRunner()
	// Stored the way the driver hands it back: int64 scalars, nested
	// values as JSON strings.
	f.addNode("vm-1", "vm", "compute", map[string]any{
		"vcpu":    int64(4),
		"vm_name": "instance-1",
		"limits":  `{"cpu":2,"mem":4096}`,
	})

	err := testStore(f).UpdateNode(context.Background(), "vm-1", 200, models.State{
		"vcpu":    4,
		"vm_name": "instance-1",
		"limits":  map[string]any{"cpu": 2, "mem": 4096},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, f.writes, "an unchanged state must not grow the history")
}

func TestUpdateNodeWritesChangedState(t *testing.T) {
	f := newFakeRunner()
	f.addNode("vm-1", "vm", "compute", map[string]any{
		"vcpu":    int64(4),
		"vm_name": "instance-1",
	})

	err := testStore(f).UpdateNode(context.Background(), "vm-1", 200, models.State{
		"vcpu":    8,
		"vm_name": "instance-1",
	}, nil)
	require.NoError(t, err)

	require.Len(t, f.writes, 1)
	assert.Contains(t, f.writes[0].cypher, "compute_state")
	state, _ := f.writes[0].params["state"].(map[string]any)
	assert.Equal(t, 8, state["vcpu"])
}

func TestSetCoordinatesRejectsExpiredNode(t *testing.T) {
	f := newFakeRunner()
	// Identity present but no living state: the machine was expired.
	f.addNode("machine-A", "machine", "compute", nil)

	err := testStore(f).SetCoordinates(context.Background(),
		[]models.CoordinateUpdate{{ID: "machine-A", Geo: models.Point(53.35, -6.27)}},
		[]string{"machine"}, 100)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "Node with ID 'machine-A', not in the landscape.", err.Error())
	assert.Empty(t, f.writes, "nothing may be written when validation fails")
}

func TestSetCoordinatesRejectsWrongType(t *testing.T) {
	f := newFakeRunner()
	f.addNode("machine-A_core_0", "core", "compute", map[string]any{"os_index": "0"})

	err := testStore(f).SetCoordinates(context.Background(),
		[]models.CoordinateUpdate{{ID: "machine-A_core_0", Geo: models.Point(53.35, -6.27)}},
		[]string{"machine"}, 100)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "does not accept coordinates.", nodeErr.Reason)
	assert.Empty(t, f.writes)
}

func TestSetCoordinatesAppliesToLivingNode(t *testing.T) {
	f := newFakeRunner()
	f.addNode("machine-A", "machine", "compute", map[string]any{"serial": "abc"})

	err := testStore(f).SetCoordinates(context.Background(),
		[]models.CoordinateUpdate{{ID: "machine-A", Geo: models.Point(53.35, -6.27)}},
		[]string{"machine"}, 100)
	require.NoError(t, err)

	require.Len(t, f.writes, 1)
	state, _ := f.writes[0].params["state"].(map[string]any)
	geo, _ := state["geo"].(string)
	assert.Contains(t, geo, `"Point"`)
}

func TestUpdateEdgeExpiresBeforeCreating(t *testing.T) {
	f := newFakeRunner()
	f.addNode("vm-1", "vm", "compute", nil)
	f.addNode("machine-B", "machine", "compute", nil)

	err := testStore(f).UpdateEdge(context.Background(), "vm-1", "machine-B", RelDeployedOn, 300)
	require.NoError(t, err)

	require.Len(t, f.writes, 2)
	assert.Contains(t, f.writes[0].cypher, "SET r.to = $ts")
	assert.Contains(t, f.writes[1].cypher, "CREATE (a)-[:DEPLOYED_ON")
}
