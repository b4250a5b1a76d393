package collector

import (
	"context"
	"sync"

	"github.com/open-landscape/landscaper/models"
)

// fakeDB records landscape writes in memory for the collector tests.
type fakeDB struct {
	mu      sync.Mutex
	nodes   map[string]fakeNode
	edges   []fakeEdge
	expired []string
}

type fakeNode struct {
	identity models.Identity
	state    models.State
}

type fakeEdge struct {
	src, dst, label string
}

func newFakeDB() *fakeDB {
	return &fakeDB{nodes: map[string]fakeNode{}}
}

func (f *fakeDB) AddNode(_ context.Context, id string, identity models.Identity, state models.State, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[id]; ok {
		return nil
	}
	f.nodes[id] = fakeNode{identity: identity, state: state.Clone()}
	return nil
}

func (f *fakeDB) UpdateNode(_ context.Context, id string, _ int64, state models.State, extra map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[id]
	if !ok {
		return nil
	}
	if state != nil {
		node.state = state.Clone()
	}
	for k, v := range extra {
		node.state[k] = v
	}
	f.nodes[id] = node
	return nil
}

func (f *fakeDB) ExpireNode(_ context.Context, id string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, id)
	delete(f.nodes, id)
	return nil
}

func (f *fakeDB) AddEdge(_ context.Context, src, dst, label string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, fakeEdge{src, dst, label})
	return nil
}

func (f *fakeDB) UpdateEdge(ctx context.Context, src, dst, label string, ts int64) error {
	return f.AddEdge(ctx, src, dst, label, ts)
}

func (f *fakeDB) ExpireEdge(_ context.Context, src, dst, label string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.edges[:0]
	for _, e := range f.edges {
		if e.src == src && e.dst == dst && e.label == label {
			continue
		}
		kept = append(kept, e)
	}
	f.edges = kept
	return nil
}

func (f *fakeDB) QueryNodes(_ context.Context, props map[string]any, _, _ int64) (*models.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := models.NewGraph()
	for id, node := range f.nodes {
		if name, ok := props[models.NameProp]; ok && name != id {
			continue
		}
		g.AddNode(id, node.identity.Properties(id))
	}
	return g, nil
}

func (f *fakeDB) hasEdge(src, dst, label string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.edges {
		if e.src == src && e.dst == dst && e.label == label {
			return true
		}
	}
	return false
}
