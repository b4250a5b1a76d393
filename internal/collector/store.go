package collector

import (
	"context"

	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/models"
)

// storeGraph writes an in-memory graph into the landscape at ts. Node
// attribute maps are split into the reserved identity keys and the nested
// "attributes" map, which becomes the node's first state.
func storeGraph(ctx context.Context, db GraphDB, g *models.Graph, ts int64) error {
	for _, node := range g.Nodes {
		identity := models.Identity{
			Layer:    str(node[models.LayerProp]),
			Category: str(node[models.CategoryProp]),
			Type:     str(node[models.TypeProp]),
		}
		state := models.State{}
		if attrs, ok := node["attributes"].(map[string]any); ok {
			for k, v := range attrs {
				state[k] = v
			}
		}
		if err := db.AddNode(ctx, node.ID(), identity, state, ts); err != nil {
			return err
		}
	}

	for _, link := range g.Links {
		label := link.Label
		if label == "" {
			label = graph.RelLinksTo
		}
		if err := db.AddEdge(ctx, link.Source, link.Target, label, ts); err != nil {
			return err
		}
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
