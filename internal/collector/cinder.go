package collector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"

	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

var volumeIdentity = models.Identity{
	Layer:    models.LayerVirtual,
	Category: "storage",
	Type:     "volume",
}

var (
	cinderAddEvents    = []string{"volume.create.end"}
	cinderDeleteEvents = []string{"volume.delete.end"}
	cinderUpdateEvents = []string{
		"volume.update.end",
		"volume.attach.end",
		"volume.detach.end",
		"volume.resize.end",
	}
)

// CinderCollector maintains the virtual storage layer: one volume node
// per cinder volume, deployed on its backing machine and required by the
// instance it is attached to.
type CinderCollector struct {
	db     GraphDB
	volume *gophercloud.ServiceClient
}

// NewCinderCollector creates the volume collector.
func NewCinderCollector(db GraphDB, volume *gophercloud.ServiceClient) *CinderCollector {
	return &CinderCollector{db: db, volume: volume}
}

func (c *CinderCollector) Name() string { return "cinder" }

func (c *CinderCollector) EventTypes() []string {
	return dedupe(cinderAddEvents, cinderUpdateEvents, cinderDeleteEvents)
}

// CollectAll adds every volume to the landscape.
func (c *CinderCollector) CollectAll(ctx context.Context, ts int64) error {
	log.Println("[CINDER] Adding volumes to the landscape.")

	pages, err := volumes.List(c.volume, volumes.ListOpts{AllTenants: true}).AllPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list volumes: %w", err)
	}
	all, err := volumes.ExtractVolumes(pages)
	if err != nil {
		return fmt.Errorf("failed to extract volumes: %w", err)
	}

	for _, volume := range all {
		host, instance := "", ""
		if len(volume.Attachments) > 0 {
			host = volumeHost(volume.Attachments[0].HostName)
			instance = volume.Attachments[0].ServerID
		}
		if err := c.addVolume(ctx, volume.ID, volume.Size, host, instance, ts); err != nil {
			return err
		}
	}

	metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
	return nil
}

// HandleEvent applies one cinder notification.
func (c *CinderCollector) HandleEvent(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload["payload"].(map[string]any)

	id := str(payload["volume_id"])
	if id == "" {
		return fmt.Errorf("cinder event %s without volume_id", event.Type)
	}

	host := volumeHost(str(payload["host"]))
	instance := attachedInstance(payload)

	switch {
	case contains(cinderDeleteEvents, event.Type):
		return c.db.ExpireNode(ctx, id, event.Timestamp)
	case contains(cinderAddEvents, event.Type):
		return c.addVolume(ctx, id, payload["size"], host, instance, event.Timestamp)
	case contains(cinderUpdateEvents, event.Type):
		if err := c.db.UpdateNode(ctx, id, event.Timestamp, models.State{"size": payload["size"]}, nil); err != nil {
			return err
		}
		if instance != "" {
			return c.db.UpdateEdge(ctx, instance, id, graph.RelRequires, event.Timestamp)
		}
		return nil
	}
	return nil
}

func (c *CinderCollector) addVolume(ctx context.Context, id string, size any, host, instance string, ts int64) error {
	if err := c.db.AddNode(ctx, id, volumeIdentity, models.State{"size": size}, ts); err != nil {
		return err
	}
	if host != "" {
		if err := c.db.AddEdge(ctx, id, host, graph.RelDeployedOn, ts); err != nil {
			return err
		}
	}
	if instance != "" {
		return c.db.AddEdge(ctx, instance, id, graph.RelRequires, ts)
	}
	return nil
}

// volumeHost strips the cinder backend suffix, "host@lvm#pool" -> "host".
func volumeHost(host string) string {
	host, _, _ = strings.Cut(host, "@")
	return host
}

func attachedInstance(payload map[string]any) string {
	attachments, _ := payload["volume_attachment"].([]any)
	if len(attachments) == 0 {
		return ""
	}
	first, _ := attachments[0].(map[string]any)
	return str(first["instance_uuid"])
}
