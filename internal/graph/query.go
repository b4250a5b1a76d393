package graph

import (
	"context"
	"fmt"

	"github.com/open-landscape/landscaper/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GetGraph returns the landscape living at timestamp at, as a node-link
// document. A non-zero timeframe restricts the result to components alive
// for the whole window [at, at+timeframe).
func (s *Store) GetGraph(ctx context.Context, at, timeframe int64) (*models.Graph, error) {
	params := map[string]any{"at": at, "until": at + timeframe}

	g := models.NewGraph()

	nodes, err := s.collect(ctx,
		"MATCH (n)-[r:STATE]->(st) WHERE "+livingClause+" "+
			"RETURN properties(n) AS identity, properties(st) AS state",
		params)
	if err != nil {
		return nil, err
	}
	for _, record := range nodes {
		addNodeRecord(g, record)
	}

	links, err := s.collect(ctx,
		fmt.Sprintf("MATCH (a)-[r:%s]->(b) WHERE %s "+
			"RETURN a.name AS src, b.name AS dst, type(r) AS label, r.from AS from, r.to AS to",
			structuralRels, livingClause),
		params)
	if err != nil {
		return nil, err
	}
	for _, record := range links {
		g.AddLink(linkFromRecord(record))
	}

	return g, nil
}

// GetSubgraph returns the living component with the given id and
// everything reachable from it over living structural relationships.
func (s *Store) GetSubgraph(ctx context.Context, id string, at, timeframe int64) (*models.Graph, error) {
	params := map[string]any{"id": id, "at": at, "until": at + timeframe}

	g := models.NewGraph()

	pathMatch := fmt.Sprintf(
		"MATCH p = (root {name: $id})-[:%s*0..]->() "+
			"WHERE ALL(r IN relationships(p) WHERE r.from <= $at AND r.to > $until) ",
		structuralRels)

	nodes, err := s.collect(ctx,
		pathMatch+
			"UNWIND nodes(p) AS n "+
			"MATCH (n)-[r:STATE]->(st) WHERE "+livingClause+" "+
			"RETURN DISTINCT properties(n) AS identity, properties(st) AS state",
		params)
	if err != nil {
		return nil, err
	}
	for _, record := range nodes {
		addNodeRecord(g, record)
	}

	links, err := s.collect(ctx,
		pathMatch+
			"UNWIND relationships(p) AS r "+
			"RETURN DISTINCT startNode(r).name AS src, endNode(r).name AS dst, "+
			"type(r) AS label, r.from AS from, r.to AS to",
		params)
	if err != nil {
		return nil, err
	}
	for _, record := range links {
		g.AddLink(linkFromRecord(record))
	}

	return g, nil
}

// GetNode returns a single-node graph for the component living at the
// given instant, or an empty graph when the id is unknown or expired.
func (s *Store) GetNode(ctx context.Context, id string, at, timeframe int64) (*models.Graph, error) {
	records, err := s.collect(ctx,
		"MATCH (n {name: $id})-[r:STATE]->(st) WHERE "+livingClause+" "+
			"RETURN properties(n) AS identity, properties(st) AS state",
		map[string]any{"id": id, "at": at, "until": at + timeframe})
	if err != nil {
		return nil, err
	}

	g := models.NewGraph()
	for _, record := range records {
		addNodeRecord(g, record)
	}
	return g, nil
}

// QueryNodes returns all living components whose identity or state
// matches every given property.
func (s *Store) QueryNodes(ctx context.Context, props map[string]any, at, timeframe int64) (*models.Graph, error) {
	params := map[string]any{"at": at, "until": at + timeframe}

	cypher := "MATCH (n)-[r:STATE]->(st) WHERE " + livingClause
	i := 0
	for key, value := range props {
		prop, err := safeLabel(key)
		if err != nil {
			return nil, err
		}
		param := fmt.Sprintf("p%d", i)
		cypher += fmt.Sprintf(" AND (n.%s = $%s OR st.%s = $%s)", prop, param, prop, param)
		params[param] = encodeValue(value)
		i++
	}
	cypher += " RETURN properties(n) AS identity, properties(st) AS state"

	records, err := s.collect(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	g := models.NewGraph()
	for _, record := range records {
		addNodeRecord(g, record)
	}
	return g, nil
}

// addNodeRecord merges an identity/state record pair into the graph.
func addNodeRecord(g *models.Graph, record *neo4j.Record) {
	identity := recordMap(record, "identity")
	state := recordMap(record, "state")

	id, _ := identity[models.NameProp].(string)
	if id == "" {
		return
	}
	g.AddNode(id, mergeAttributes(identity, decodeAttrs(state)))
}

func linkFromRecord(record *neo4j.Record) models.GraphLink {
	return models.GraphLink{
		Source: recordString(record, "src"),
		Target: recordString(record, "dst"),
		Label:  recordString(record, "label"),
		From:   recordInt(record, "from"),
		To:     recordInt(record, "to"),
	}
}

func recordMap(record *neo4j.Record, key string) map[string]any {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return map[string]any{}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func recordString(record *neo4j.Record, key string) string {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return ""
	}
	str, _ := raw.(string)
	return str
}

func recordInt(record *neo4j.Record, key string) int64 {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return 0
	}
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
