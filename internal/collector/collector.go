// Package collector builds and maintains the landscape. Each collector
// owns one slice of the infrastructure (hardware, instances, networks,
// volumes, stacks, containers): it can rebuild its slice from scratch and
// apply incremental change events routed to it by the events manager.
package collector

import (
	"context"

	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/models"
)

// GraphDB is the slice of the landscape store the collectors write to.
type GraphDB interface {
	AddNode(ctx context.Context, id string, identity models.Identity, state models.State, ts int64) error
	UpdateNode(ctx context.Context, id string, ts int64, state models.State, extra map[string]any) error
	ExpireNode(ctx context.Context, id string, ts int64) error
	AddEdge(ctx context.Context, src, dst, label string, ts int64) error
	UpdateEdge(ctx context.Context, src, dst, label string, ts int64) error
	ExpireEdge(ctx context.Context, src, dst, label string, ts int64) error
	QueryNodes(ctx context.Context, props map[string]any, at, timeframe int64) (*models.Graph, error)
}

// Collector populates one layer of the landscape.
type Collector interface {
	// Name identifies the collector in configuration and logs.
	Name() string

	// CollectAll rebuilds the collector's slice of the landscape from
	// its source of truth, stamped at ts.
	CollectAll(ctx context.Context, ts int64) error
}

// EventCollector is a collector that also consumes change notifications.
type EventCollector interface {
	Collector

	// EventTypes lists the notification types the collector handles.
	EventTypes() []string

	// HandleEvent applies one notification to the landscape.
	HandleEvent(ctx context.Context, event events.Event) error
}

// Register subscribes an event collector with the events manager.
func Register(m *events.Manager, c EventCollector) {
	m.Subscribe(c.HandleEvent, c.EventTypes()...)
}
