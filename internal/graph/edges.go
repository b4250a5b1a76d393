package graph

import (
	"context"
	"fmt"
	"log"
)

// AddEdge connects two components with a structural relationship valid
// from ts. Both endpoints must already be in the landscape. Adding a
// relationship that is already living is a no-op, so re-collections and
// repeated events do not pile up duplicate edges.
func (s *Store) AddEdge(ctx context.Context, src, dst, label string, ts int64) error {
	rel, err := safeLabel(label)
	if err != nil {
		return err
	}

	for _, id := range []string{src, dst} {
		_, ok, err := s.identityProps(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			log.Printf("Node with ID '%s', not in the landscape. Edge %s-[%s]->%s skipped", id, src, rel, dst)
			return nil
		}
	}

	exists, err := s.edgeExists(ctx, src, dst, rel)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Edge %s-[%s]->%s already in the landscape, skipping", src, rel, dst)
		return nil
	}

	cypher := fmt.Sprintf(
		"MATCH (a {name: $src}), (b {name: $dst}) "+
			"CREATE (a)-[:%s {from: $ts, to: $eot}]->(b)",
		rel)

	s.debugLog("Adding edge %s-[%s]->%s at %d", src, rel, dst, ts)
	return s.write(ctx, cypher, map[string]any{
		"src": src,
		"dst": dst,
		"ts":  ts,
		"eot": EndOfTime,
	})
}

// edgeExists reports whether a living relationship of the given type
// already connects the two components.
func (s *Store) edgeExists(ctx context.Context, src, dst, rel string) (bool, error) {
	cypher := fmt.Sprintf(
		"MATCH (a {name: $src})-[r:%s]->(b {name: $dst}) "+
			"WHERE r.to = $eot RETURN r.from LIMIT 1",
		rel)
	records, err := s.collect(ctx, cypher, map[string]any{
		"src": src,
		"dst": dst,
		"eot": EndOfTime,
	})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// ExpireEdge closes the living relationship of the given type between two
// components at ts.
func (s *Store) ExpireEdge(ctx context.Context, src, dst, label string, ts int64) error {
	rel, err := safeLabel(label)
	if err != nil {
		return err
	}

	cypher := fmt.Sprintf(
		"MATCH (a {name: $src})-[r:%s]->(b {name: $dst}) "+
			"WHERE r.from <= $ts AND r.to > $ts SET r.to = $ts",
		rel)

	s.debugLog("Expiring edge %s-[%s]->%s at %d", src, rel, dst, ts)
	return s.write(ctx, cypher, map[string]any{"src": src, "dst": dst, "ts": ts})
}

// UpdateEdge rewires a component: the living relationship of the given
// type leaving src is expired and a new one created towards dst. Used
// when a component moves, e.g. a migrated instance.
func (s *Store) UpdateEdge(ctx context.Context, src, dst, label string, ts int64) error {
	rel, err := safeLabel(label)
	if err != nil {
		return err
	}

	expire := fmt.Sprintf(
		"MATCH (a {name: $src})-[r:%s]->() "+
			"WHERE r.from <= $ts AND r.to > $ts SET r.to = $ts",
		rel)
	if err := s.write(ctx, expire, map[string]any{"src": src, "ts": ts}); err != nil {
		return err
	}

	return s.AddEdge(ctx, src, dst, label, ts)
}
