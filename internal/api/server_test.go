package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-landscape/landscaper/internal/config"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/models"
)

// fakeStore serves a small static landscape and records coordinate
// updates.
type fakeStore struct {
	graph       *models.Graph
	coordinates []models.CoordinateUpdate
	coordErr    error
	lastAt      int64
	lastFrame   int64
}

func (f *fakeStore) GetGraph(ctx context.Context, at, timeframe int64) (*models.Graph, error) {
	f.lastAt, f.lastFrame = at, timeframe
	return f.graph, nil
}

func (f *fakeStore) GetSubgraph(ctx context.Context, id string, at, timeframe int64) (*models.Graph, error) {
	if !f.graph.HasNode(id) {
		return models.NewGraph(), nil
	}
	return f.graph, nil
}

func (f *fakeStore) GetNode(ctx context.Context, id string, at, timeframe int64) (*models.Graph, error) {
	g := models.NewGraph()
	if node := f.graph.Node(id); node != nil {
		g.AddNode(id, node)
	}
	return g, nil
}

func (f *fakeStore) QueryNodes(ctx context.Context, props map[string]any, at, timeframe int64) (*models.Graph, error) {
	g := models.NewGraph()
	for _, node := range f.graph.Nodes {
		match := true
		for k, v := range props {
			if node[k] != v {
				match = false
				break
			}
		}
		if match {
			g.AddNode(node.ID(), node)
		}
	}
	return g, nil
}

func (f *fakeStore) SetCoordinates(ctx context.Context, updates []models.CoordinateUpdate, geoTypes []string, ts int64) error {
	if f.coordErr != nil {
		return f.coordErr
	}
	f.coordinates = append(f.coordinates, updates...)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func testLandscape() *models.Graph {
	g := models.NewGraph()
	g.AddNode("machine-A", map[string]any{
		models.TypeProp:     "machine",
		models.LayerProp:    models.LayerPhysical,
		models.CategoryProp: "compute",
		"geo":               map[string]any{"type": "Point", "coordinates": []any{-6.27, 53.35}},
	})
	g.AddNode("machine-A_core_0", map[string]any{
		models.TypeProp:     "core",
		models.LayerProp:    models.LayerPhysical,
		models.CategoryProp: "compute",
	})
	g.AddNode("vm-1", map[string]any{
		models.TypeProp:     "vm",
		models.LayerProp:    models.LayerVirtual,
		models.CategoryProp: "compute",
	})
	g.AddLink(models.GraphLink{Source: "machine-A", Target: "machine-A_core_0", Label: "INTERNAL"})
	g.AddLink(models.GraphLink{Source: "vm-1", Target: "machine-A", Label: "DEPLOYED_ON"})
	return g
}

func testServer(store GraphStore) *Server {
	cfg := &config.Config{}
	cfg.PhysicalLayer.GeoTypes = []string{"machine", "rack"}
	return New(cfg, store)
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeGraph(t *testing.T, rec *httptest.ResponseRecorder) *models.Graph {
	t.Helper()
	var g models.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	return &g
}

func TestGetGraph(t *testing.T) {
	store := &fakeStore{graph: testLandscape()}
	s := testServer(store)

	rec := doRequest(s, http.MethodGet, "/graph?timestamp=1000&timeframe=60", "")
	require.Equal(t, http.StatusOK, rec.Code)

	g := decodeGraph(t, rec)
	assert.Equal(t, 3, len(g.Nodes))
	assert.Equal(t, 2, len(g.Links))
	assert.Equal(t, int64(1000), store.lastAt)
	assert.Equal(t, int64(60), store.lastFrame)
}

func TestGetGraphRejectsBadTimestamp(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodGet, "/graph?timestamp=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGraphFiltersTypes(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	// Drop cores, keep machines and vms.
	rec := doRequest(s, http.MethodGet, "/graph?filter-nodes=core", "")
	require.Equal(t, http.StatusOK, rec.Code)
	g := decodeGraph(t, rec)
	assert.Equal(t, 2, len(g.Nodes))

	// Keep only machines.
	rec = doRequest(s, http.MethodGet, "/graph?filter-nodes=machine&filter-these=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	g = decodeGraph(t, rec)
	require.Equal(t, 1, len(g.Nodes))
	assert.Equal(t, "machine-A", g.Nodes[0].ID())
}

func TestGetGraphGeoJSON(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodGet, "/graph?geo=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fc models.FeatureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Equal(t, 1, len(fc.Features))
	assert.Equal(t, "machine-A", fc.Features[0].Properties["name"])
}

func TestGetNodeUnknown(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodGet, "/node/ghost", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "Node with ID 'ghost', not in the landscape.", apiErr.Message)
}

func TestGetSubgraph(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodGet, "/subgraph/machine-A", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/subgraph/ghost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryNodes(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodGet, "/nodes?properties="+`{"type":"vm"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	g := decodeGraph(t, rec)
	require.Equal(t, 1, len(g.Nodes))
	assert.Equal(t, "vm-1", g.Nodes[0].ID())

	rec = doRequest(s, http.MethodGet, "/nodes?properties=notjson", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutCoordinates(t *testing.T) {
	store := &fakeStore{graph: testLandscape()}
	s := testServer(store)

	body := `[{"id": "machine-A", "geo": {"type": "Point", "coordinates": [-6.27, 53.35]}}]`
	rec := doRequest(s, http.MethodPut, "/coordinates", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, len(store.coordinates))
	assert.Equal(t, "machine-A", store.coordinates[0].ID)
}

func TestPutCoordinatesUnknownNode(t *testing.T) {
	store := &fakeStore{
		graph:    testLandscape(),
		coordErr: &graph.NodeError{ID: "ghost", Reason: "not in the landscape."},
	}
	s := testServer(store)

	body := `[{"id": "ghost", "geo": {"type": "Point", "coordinates": [0, 0]}}]`
	rec := doRequest(s, http.MethodPut, "/coordinates", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "Node with ID 'ghost', not in the landscape.", apiErr.Message)
	assert.Equal(t, "ghost", apiErr.Context["id"])
	// Nothing was applied.
	assert.Empty(t, store.coordinates)
}

func TestPutCoordinatesRejectsInvalidBody(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodPut, "/coordinates", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPut, "/coordinates", `[{"geo": {"type": "Point", "coordinates": [0, 0]}}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	s := testServer(&fakeStore{graph: testLandscape()})

	rec := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
