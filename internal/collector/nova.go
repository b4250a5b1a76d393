package collector

import (
	"context"
	"fmt"
	"log"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"

	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

var vmIdentity = models.Identity{
	Layer:    models.LayerVirtual,
	Category: "compute",
	Type:     "vm",
}

var (
	novaAddEvents = []string{
		"compute.instance.create.end",
		"compute.instance.update",
	}
	novaUpdateEvents = []string{
		"compute.instance.resize.revert.end",
		"compute.instance.finish_resize.end",
		"compute.instance.rebuild.end",
		"compute.instance.update",
	}
	novaDeleteEvents = []string{
		"compute.instance.delete.end",
		"compute.instance.shutdown.end",
	}
)

// NovaCollector maintains the virtual compute layer: one vm node per
// instance, deployed on the machine node of its hypervisor. The physical
// layer must be collected first.
type NovaCollector struct {
	db      GraphDB
	compute *gophercloud.ServiceClient
}

// NewNovaCollector creates the instance collector.
func NewNovaCollector(db GraphDB, compute *gophercloud.ServiceClient) *NovaCollector {
	return &NovaCollector{db: db, compute: compute}
}

func (c *NovaCollector) Name() string { return "nova" }

func (c *NovaCollector) EventTypes() []string {
	return dedupe(novaAddEvents, novaUpdateEvents, novaDeleteEvents)
}

// CollectAll adds every running instance to the landscape.
func (c *NovaCollector) CollectAll(ctx context.Context, ts int64) error {
	log.Println("[NOVA] Adding instances to the landscape.")

	pages, err := servers.List(c.compute, servers.ListOpts{AllTenants: true}).AllPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}
	all, err := servers.ExtractServers(pages)
	if err != nil {
		return fmt.Errorf("failed to extract instances: %w", err)
	}

	for _, server := range all {
		state, host, err := c.instanceState(ctx, &server)
		if err != nil {
			log.Printf("[NOVA] Skipping instance %s: %v", server.ID, err)
			continue
		}
		if err := c.addInstance(ctx, server.ID, state, host, ts); err != nil {
			return err
		}
	}

	metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
	return nil
}

// HandleEvent applies one nova notification.
func (c *NovaCollector) HandleEvent(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload["payload"].(map[string]any)

	uuid := str(payload["instance_id"])
	if uuid == "" {
		return fmt.Errorf("nova event %s without instance_id", event.Type)
	}

	state := models.State{
		"vcpu":    payload["vcpus"],
		"mem":     payload["memory_mb"],
		"vm_name": payload["display_name"],
	}
	host := str(payload["host"])

	switch {
	case contains(novaDeleteEvents, event.Type):
		return c.db.ExpireNode(ctx, uuid, event.Timestamp)
	case contains(novaAddEvents, event.Type) && !c.known(ctx, uuid, event.Timestamp):
		if payload["vcpus"] == nil || payload["memory_mb"] == nil || host == "" {
			// Partial update for an unknown instance, nothing to add yet
			return nil
		}
		return c.addInstance(ctx, uuid, state, host, event.Timestamp)
	case contains(novaUpdateEvents, event.Type):
		return c.db.UpdateNode(ctx, uuid, event.Timestamp, state, nil)
	}
	return nil
}

func (c *NovaCollector) addInstance(ctx context.Context, uuid string, state models.State, host string, ts int64) error {
	if err := c.db.AddNode(ctx, uuid, vmIdentity, state, ts); err != nil {
		return err
	}
	if host == "" {
		return nil
	}
	return c.db.AddEdge(ctx, uuid, host, graph.RelDeployedOn, ts)
}

func (c *NovaCollector) known(ctx context.Context, uuid string, ts int64) bool {
	found, err := c.db.QueryNodes(ctx, map[string]any{models.NameProp: uuid}, ts, 0)
	if err != nil {
		return false
	}
	return found.Len() > 0
}

// instanceState builds the vm state from the API view of an instance.
func (c *NovaCollector) instanceState(ctx context.Context, server *servers.Server) (models.State, string, error) {
	state := models.State{
		"vm_name":          server.Name,
		"libvirt_instance": server.InstanceName,
	}

	if id, ok := server.Flavor["id"].(string); ok && id != "" {
		flavor, err := flavors.Get(ctx, c.compute, id).Extract()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get flavor %s: %w", id, err)
		}
		state["vcpu"] = flavor.VCPUs
		state["mem"] = flavor.RAM
	}

	return state, server.HypervisorHostname, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func dedupe(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if !seen[item] {
				seen[item] = true
				out = append(out, item)
			}
		}
	}
	return out
}
