package graph

import (
	"context"
	"fmt"
	"log"

	"github.com/open-landscape/landscaper/models"
)

// AddNode creates a new landscape component: an identity node labelled
// with its category and a first state attached via a STATE relationship
// valid from ts. Adding an id that already exists is a no-op.
func (s *Store) AddNode(ctx context.Context, id string, identity models.Identity, state models.State, ts int64) error {
	exists, err := s.nodeExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Node with ID '%s' already in the landscape, skipping", id)
		return nil
	}

	props := identity.Properties(id)
	label, err := safeLabel(props[models.CategoryProp].(string))
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(
		"CREATE (n:%s $identity) CREATE (st:%s_state $state) "+
			"CREATE (n)-[:%s {from: $from, to: $to}]->(st)",
		label, label, RelState)

	s.debugLog("Adding node %s (%s/%s)", id, identity.Layer, identity.Type)
	return s.write(ctx, cypher, map[string]any{
		"identity": props,
		"state":    encodeAttrs(state),
		"from":     ts,
		"to":       EndOfTime,
	})
}

// UpdateNode gives a component a new state at ts. The current STATE
// relationship is expired and a fresh state node attached; if the merged
// state equals the current one nothing is written, so repeated identical
// updates do not grow the history. A nil state keeps the current
// attributes and only applies extra.
func (s *Store) UpdateNode(ctx context.Context, id string, ts int64, state models.State, extra map[string]any) error {
	current, alive, err := s.livingState(ctx, id, ts)
	if err != nil {
		return err
	}
	if !alive {
		log.Printf("Node with ID '%s', not in the landscape.", id)
		return nil
	}

	next := models.State{}
	if state != nil {
		next = state.Clone()
	} else {
		for k, v := range current {
			next[k] = v
		}
	}
	for k, v := range extra {
		next[k] = v
	}

	// Compare through the storage round-trip: the store hands ints back
	// as int64 and nested values as decoded JSON, so the raw collector
	// state never matches the current one directly.
	if models.State(decodeAttrs(encodeAttrs(next))).Equal(models.State(current)) {
		s.debugLog("Node %s unchanged at %d, skipping update", id, ts)
		return nil
	}

	label, err := s.nodeLabel(ctx, id)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(
		"MATCH (n {name: $id})-[r:%s]->() WHERE r.to = $eot SET r.to = $ts "+
			"WITH n CREATE (st:%s_state $state) "+
			"CREATE (n)-[:%s {from: $ts, to: $eot}]->(st)",
		RelState, label, RelState)

	s.debugLog("Updating node %s at %d", id, ts)
	return s.write(ctx, cypher, map[string]any{
		"id":    id,
		"ts":    ts,
		"eot":   EndOfTime,
		"state": encodeAttrs(next),
	})
}

// ExpireNode removes a component from the living landscape at ts by
// closing every living relationship touching it, in both directions. The
// identity, its states and the whole history stay in the store.
func (s *Store) ExpireNode(ctx context.Context, id string, ts int64) error {
	s.debugLog("Expiring node %s at %d", id, ts)
	return s.write(ctx,
		"MATCH (n {name: $id})-[r]-() WHERE r.from <= $ts AND r.to > $ts SET r.to = $ts",
		map[string]any{"id": id, "ts": ts})
}

// nodeExists reports whether any identity with the id is in the store,
// living or not.
func (s *Store) nodeExists(ctx context.Context, id string) (bool, error) {
	records, err := s.collect(ctx,
		"MATCH (n {name: $id}) WHERE NOT (n)<-[:STATE]-() RETURN n.name LIMIT 1",
		map[string]any{"id": id})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// nodeLabel returns the category label of an identity node.
func (s *Store) nodeLabel(ctx context.Context, id string) (string, error) {
	records, err := s.collect(ctx,
		"MATCH (n {name: $id}) RETURN n.category AS category LIMIT 1",
		map[string]any{"id": id})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("node %q not found", id)
	}
	category, _ := records[0].Get("category")
	label, ok := category.(string)
	if !ok || label == "" {
		return "", fmt.Errorf("node %q has no category", id)
	}
	return safeLabel(label)
}

// livingState returns the decoded attributes of the state living at ts.
func (s *Store) livingState(ctx context.Context, id string, ts int64) (map[string]any, bool, error) {
	records, err := s.collect(ctx,
		"MATCH (n {name: $id})-[r:STATE]->(st) WHERE r.from <= $ts AND r.to > $ts "+
			"RETURN properties(st) AS state LIMIT 1",
		map[string]any{"id": id, "ts": ts})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	raw, _ := records[0].Get("state")
	props, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}, true, nil
	}
	return decodeAttrs(props), true, nil
}

// livingIdentity returns the identity properties of a node that has a
// living state at ts. An expired node reports false.
func (s *Store) livingIdentity(ctx context.Context, id string, ts int64) (map[string]any, bool, error) {
	records, err := s.collect(ctx,
		"MATCH (n {name: $id})-[r:STATE]->() WHERE r.from <= $ts AND r.to > $ts "+
			"RETURN properties(n) AS identity LIMIT 1",
		map[string]any{"id": id, "ts": ts})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	raw, _ := records[0].Get("identity")
	props, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}, true, nil
	}
	return props, true, nil
}

// identityProps returns the identity properties of a node, or false when
// the id is unknown.
func (s *Store) identityProps(ctx context.Context, id string) (map[string]any, bool, error) {
	records, err := s.collect(ctx,
		"MATCH (n {name: $id}) WHERE NOT (n)<-[:STATE]-() RETURN properties(n) AS identity LIMIT 1",
		map[string]any{"id": id})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	raw, _ := records[0].Get("identity")
	props, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}, true, nil
	}
	return props, true, nil
}
