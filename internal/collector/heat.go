package collector

import (
	"context"
	"fmt"

	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

var stackIdentity = models.Identity{
	Layer:    models.LayerService,
	Category: "compute",
	Type:     "stack",
}

var (
	heatAddEvents    = []string{"orchestration.stack.create.end"}
	heatDeleteEvents = []string{"orchestration.stack.delete.end"}
	heatUpdateEvents = []string{
		"orchestration.stack.update.end",
		"orchestration.stack.resume.end",
		"orchestration.stack.suspend.end",
	}
)

// HeatCollector maintains the service layer stacks. Stacks only change
// through orchestration notifications, so this collector is purely event
// driven; a full pass is a no-op.
type HeatCollector struct {
	db GraphDB
}

// NewHeatCollector creates the stack collector.
func NewHeatCollector(db GraphDB) *HeatCollector {
	return &HeatCollector{db: db}
}

func (c *HeatCollector) Name() string { return "heat" }

func (c *HeatCollector) EventTypes() []string {
	return dedupe(heatAddEvents, heatUpdateEvents, heatDeleteEvents)
}

// CollectAll is a no-op; stacks enter the landscape through events.
func (c *HeatCollector) CollectAll(ctx context.Context, ts int64) error {
	metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
	return nil
}

// HandleEvent applies one orchestration notification.
func (c *HeatCollector) HandleEvent(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload["payload"].(map[string]any)

	id := stackID(payload)
	if id == "" {
		return fmt.Errorf("heat event %s without stack identity", event.Type)
	}

	state := models.State{"stack_name": payload["stack_name"]}

	switch {
	case contains(heatDeleteEvents, event.Type):
		return c.db.ExpireNode(ctx, id, event.Timestamp)
	case contains(heatAddEvents, event.Type):
		if err := c.db.AddNode(ctx, id, stackIdentity, state, event.Timestamp); err != nil {
			return err
		}
		return c.linkResources(ctx, id, payload, event.Timestamp)
	case contains(heatUpdateEvents, event.Type):
		return c.db.UpdateNode(ctx, id, event.Timestamp, state, nil)
	}
	return nil
}

// linkResources connects a stack to the landscape nodes it created, as
// far as the notification names them.
func (c *HeatCollector) linkResources(ctx context.Context, id string, payload map[string]any, ts int64) error {
	resources, _ := payload["resources"].([]any)
	for _, resource := range resources {
		resourceID := str(resource)
		if resourceID == "" {
			if m, ok := resource.(map[string]any); ok {
				resourceID = str(m["physical_resource_id"])
			}
		}
		if resourceID == "" {
			continue
		}
		if err := c.db.AddEdge(ctx, id, resourceID, graph.RelRunsOn, ts); err != nil {
			return err
		}
	}
	return nil
}

// stackID extracts the stack id from the notification, which carries it
// either directly or inside the stack identity ARN.
func stackID(payload map[string]any) string {
	if id := str(payload["stack_id"]); id != "" {
		return id
	}
	identity := str(payload["stack_identity"])
	if identity == "" {
		return ""
	}
	// arn:openstack:heat::tenant:stacks/name/<id>
	for i := len(identity) - 1; i >= 0; i-- {
		if identity[i] == '/' {
			return identity[i+1:]
		}
	}
	return identity
}
