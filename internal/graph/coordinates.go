package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-landscape/landscaper/models"
)

// NodeError ties a failed landscape operation to the node that caused it,
// so callers can report exactly which entry of a bulk request is at fault.
type NodeError struct {
	ID     string
	Reason string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("Node with ID '%s', %s", e.ID, e.Reason)
}

const (
	reasonNotInLandscape = "not in the landscape."
	reasonNoCoordinates  = "does not accept coordinates."
)

// SetCoordinates applies geographic positions to a batch of components.
// Every entry is validated up front: ids without a living state at ts and
// components whose type is not in geoTypes fail the whole request before
// anything is written. Applying a position expires the component's current
// state and attaches a new one carrying the geometry, so coordinate
// history is preserved like any other state change.
func (s *Store) SetCoordinates(ctx context.Context, updates []models.CoordinateUpdate, geoTypes []string, ts int64) error {
	allowed := make(map[string]bool, len(geoTypes))
	for _, t := range geoTypes {
		allowed[t] = true
	}

	for _, update := range updates {
		identity, ok, err := s.livingIdentity(ctx, update.ID, ts)
		if err != nil {
			return err
		}
		if !ok {
			return &NodeError{ID: update.ID, Reason: reasonNotInLandscape}
		}
		nodeType, _ := identity[models.TypeProp].(string)
		if !allowed[nodeType] {
			return &NodeError{ID: update.ID, Reason: reasonNoCoordinates}
		}
	}

	for _, update := range updates {
		geo, err := json.Marshal(update.Geo)
		if err != nil {
			return fmt.Errorf("failed to encode geometry for %q: %w", update.ID, err)
		}
		if err := s.UpdateNode(ctx, update.ID, ts, nil, map[string]any{"geo": string(geo)}); err != nil {
			return err
		}
	}
	return nil
}
