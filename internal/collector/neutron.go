package collector

import (
	"context"
	"fmt"
	"log"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"

	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

var (
	networkIdentity = models.Identity{Layer: models.LayerVirtual, Category: "network", Type: "network"}
	subnetIdentity  = models.Identity{Layer: models.LayerVirtual, Category: "network", Type: "subnet"}
	vnicIdentity    = models.Identity{Layer: models.LayerVirtual, Category: "network", Type: "vnic"}
)

var (
	netAddEvents    = []string{"network.create.end"}
	netUpdateEvents = []string{"network.update.end"}
	netDeleteEvents = []string{"network.delete.end"}

	subnetAddEvents    = []string{"subnet.create.end"}
	subnetUpdateEvents = []string{"subnet.update.end"}
	subnetDeleteEvents = []string{"subnet.delete.end"}

	portAddEvents    = []string{"port.create.end"}
	portUpdateEvents = []string{"port.update.end", "router.interface.create"}
	portDeleteEvents = []string{"port.delete.end", "router.interface.delete"}
)

// NeutronCollector maintains the virtual network layer: networks, their
// subnets and the vnic ports that plug instances into them.
type NeutronCollector struct {
	db      GraphDB
	network *gophercloud.ServiceClient
}

// NewNeutronCollector creates the network collector.
func NewNeutronCollector(db GraphDB, network *gophercloud.ServiceClient) *NeutronCollector {
	return &NeutronCollector{db: db, network: network}
}

func (c *NeutronCollector) Name() string { return "neutron" }

func (c *NeutronCollector) EventTypes() []string {
	return dedupe(
		netAddEvents, netUpdateEvents, netDeleteEvents,
		subnetAddEvents, subnetUpdateEvents, subnetDeleteEvents,
		portAddEvents, portUpdateEvents, portDeleteEvents,
	)
}

// CollectAll adds all networks, subnets and ports to the landscape.
func (c *NeutronCollector) CollectAll(ctx context.Context, ts int64) error {
	log.Println("[NEUTRON] Adding networks to the landscape.")

	netPages, err := networks.List(c.network, networks.ListOpts{}).AllPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	allNetworks, err := networks.ExtractNetworks(netPages)
	if err != nil {
		return fmt.Errorf("failed to extract networks: %w", err)
	}
	for _, network := range allNetworks {
		if err := c.addNetwork(ctx, network.ID, network.Name, ts); err != nil {
			return err
		}
	}

	subnetPages, err := subnets.List(c.network, subnets.ListOpts{}).AllPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}
	allSubnets, err := subnets.ExtractSubnets(subnetPages)
	if err != nil {
		return fmt.Errorf("failed to extract subnets: %w", err)
	}
	for _, subnet := range allSubnets {
		if err := c.addSubnet(ctx, subnet.ID, subnet.CIDR, subnet.NetworkID, ts); err != nil {
			return err
		}
	}

	portPages, err := ports.List(c.network, ports.ListOpts{}).AllPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	allPorts, err := ports.ExtractPorts(portPages)
	if err != nil {
		return fmt.Errorf("failed to extract ports: %w", err)
	}
	for _, port := range allPorts {
		ip := ""
		if len(port.FixedIPs) > 0 {
			ip = port.FixedIPs[0].IPAddress
		}
		if err := c.addPort(ctx, port.ID, port.MACAddress, ip, port.DeviceID, port.NetworkID, ts); err != nil {
			return err
		}
	}

	metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
	return nil
}

// HandleEvent applies one neutron notification.
func (c *NeutronCollector) HandleEvent(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload["payload"].(map[string]any)
	ts := event.Timestamp

	switch {
	case contains(netAddEvents, event.Type), contains(netUpdateEvents, event.Type), contains(netDeleteEvents, event.Type):
		network, _ := payload["network"].(map[string]any)
		id := str(network["id"])
		if id == "" {
			id = str(payload["network_id"])
		}
		if id == "" {
			return fmt.Errorf("neutron event %s without network id", event.Type)
		}
		switch {
		case contains(netDeleteEvents, event.Type):
			return c.db.ExpireNode(ctx, id, ts)
		case contains(netAddEvents, event.Type):
			return c.addNetwork(ctx, id, str(network["name"]), ts)
		default:
			return c.db.UpdateNode(ctx, id, ts, models.State{"name": network["name"]}, nil)
		}

	case contains(subnetAddEvents, event.Type), contains(subnetUpdateEvents, event.Type), contains(subnetDeleteEvents, event.Type):
		subnet, _ := payload["subnet"].(map[string]any)
		id := str(subnet["id"])
		if id == "" {
			id = str(payload["subnet_id"])
		}
		if id == "" {
			return fmt.Errorf("neutron event %s without subnet id", event.Type)
		}
		switch {
		case contains(subnetDeleteEvents, event.Type):
			return c.db.ExpireNode(ctx, id, ts)
		case contains(subnetAddEvents, event.Type):
			return c.addSubnet(ctx, id, str(subnet["cidr"]), str(subnet["network_id"]), ts)
		default:
			return c.db.UpdateNode(ctx, id, ts, models.State{"cidr": subnet["cidr"]}, nil)
		}

	default:
		port, _ := payload["port"].(map[string]any)
		id := str(port["id"])
		if id == "" {
			id = str(payload["port_id"])
		}
		if id == "" {
			return fmt.Errorf("neutron event %s without port id", event.Type)
		}
		switch {
		case contains(portDeleteEvents, event.Type):
			return c.db.ExpireNode(ctx, id, ts)
		case contains(portAddEvents, event.Type):
			ip := portIP(port)
			return c.addPort(ctx, id, str(port["mac_address"]), ip, str(port["device_id"]), str(port["network_id"]), ts)
		default:
			return c.db.UpdateNode(ctx, id, ts, models.State{"mac": port["mac_address"], "ip": portIP(port)}, nil)
		}
	}
}

func (c *NeutronCollector) addNetwork(ctx context.Context, id, name string, ts int64) error {
	return c.db.AddNode(ctx, id, networkIdentity, models.State{"name": name}, ts)
}

func (c *NeutronCollector) addSubnet(ctx context.Context, id, cidr, networkID string, ts int64) error {
	if err := c.db.AddNode(ctx, id, subnetIdentity, models.State{"cidr": cidr}, ts); err != nil {
		return err
	}
	if networkID == "" {
		return nil
	}
	return c.db.AddEdge(ctx, id, networkID, graph.RelRequires, ts)
}

func (c *NeutronCollector) addPort(ctx context.Context, id, mac, ip, deviceID, networkID string, ts int64) error {
	if err := c.db.AddNode(ctx, id, vnicIdentity, models.State{"mac": mac, "ip": ip}, ts); err != nil {
		return err
	}
	if deviceID != "" {
		if err := c.db.AddEdge(ctx, deviceID, id, graph.RelRequires, ts); err != nil {
			return err
		}
	}
	if networkID == "" {
		return nil
	}
	return c.db.AddEdge(ctx, id, networkID, graph.RelRequires, ts)
}

func portIP(port map[string]any) string {
	fixedIPs, _ := port["fixed_ips"].([]any)
	if len(fixedIPs) == 0 {
		return ""
	}
	first, _ := fixedIPs[0].(map[string]any)
	return str(first["ip_address"])
}
