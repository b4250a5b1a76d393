package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/open-landscape/landscaper/internal/config"
	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

// osdevCategories maps the hwloc osdev_type attribute to a landscape
// category: block devices are storage, network and openfabrics devices
// are network, everything else counts as compute.
var osdevCategories = map[string]string{
	"0": "storage",
	"1": "compute",
	"2": "network",
	"3": "network",
	"4": "compute",
	"5": "compute",
}

// hwlocObject is one <object> element of a hwloc topology dump.
type hwlocObject struct {
	Type      string       `xml:"type,attr"`
	OSIndex   string       `xml:"os_index,attr"`
	OSDevType string       `xml:"osdev_type,attr"`
	Name      string       `xml:"name,attr"`
	CacheSize string       `xml:"cache_size,attr"`
	Depth     string       `xml:"depth,attr"`
	LocalMem  string       `xml:"local_memory,attr"`
	PCIBusID  string       `xml:"pci_busid,attr"`
	Infos     []hwlocInfo  `xml:"info"`
	Children  []hwlocObject `xml:"object"`
}

type hwlocInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type hwlocTopology struct {
	XMLName xml.Name    `xml:"topology"`
	Object  hwlocObject `xml:"object"`
}

// HwlocCollector builds the physical layer of the landscape from per
// machine hwloc XML dumps, enriched with /proc/cpuinfo attributes and
// geographic coordinates.
type HwlocCollector struct {
	db     GraphDB
	cfg    config.PhysicalLayerConfig
	coords *Coordinates
}

// NewHwlocCollector creates the physical layer collector.
func NewHwlocCollector(db GraphDB, cfg config.PhysicalLayerConfig) (*HwlocCollector, error) {
	coords, err := LoadCoordinates(cfg.CoordinatesFile)
	if err != nil {
		return nil, err
	}
	return &HwlocCollector{db: db, cfg: cfg, coords: coords}, nil
}

func (c *HwlocCollector) Name() string { return "hwloc" }

func (c *HwlocCollector) EventTypes() []string {
	return []string{"hwloc.machine.create", "hwloc.machine.delete"}
}

// HandleEvent reacts to hwloc dumps appearing in or vanishing from the
// watched folder.
func (c *HwlocCollector) HandleEvent(ctx context.Context, event events.Event) error {
	machine := str(event.Payload["machine"])
	if machine == "" {
		return fmt.Errorf("hwloc event %s without machine name", event.Type)
	}

	switch event.Type {
	case "hwloc.machine.create":
		return c.AddMachine(ctx, machine, event.Timestamp)
	case "hwloc.machine.delete":
		return c.RemoveMachine(ctx, machine, event.Timestamp)
	}
	return nil
}

// CollectAll adds every machine with a hwloc dump in the configured
// folder to the landscape.
func (c *HwlocCollector) CollectAll(ctx context.Context, ts int64) error {
	log.Println("Adding physical machines to the landscape...")

	matches, err := filepath.Glob(filepath.Join(c.cfg.HwlocFolder, "*_hwloc.xml"))
	if err != nil {
		return err
	}

	for _, path := range matches {
		machine := strings.TrimSuffix(filepath.Base(path), "_hwloc.xml")
		if err := c.AddMachine(ctx, machine, ts); err != nil {
			return fmt.Errorf("failed to add machine %s: %w", machine, err)
		}
	}

	metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
	log.Println("Finished adding physical machines to the landscape.")
	return nil
}

// AddMachine parses one machine's hwloc dump and stores its hardware
// tree in the landscape.
func (c *HwlocCollector) AddMachine(ctx context.Context, machine string, ts int64) error {
	path := filepath.Join(c.cfg.HwlocFolder, machine+"_hwloc.xml")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("no hwloc details for machine %s: %w", machine, err)
	}

	var topology hwlocTopology
	if err := xml.Unmarshal(data, &topology); err != nil {
		return fmt.Errorf("failed to parse hwloc for machine %s: %w", machine, err)
	}

	g := buildHardwareGraph(&topology.Object, machine)

	if err := c.enrichCPUInfo(g, machine); err != nil {
		log.Printf("No cpu info for machine %s: %v", machine, err)
	}

	if geo := c.coords.Lookup("machine", machine); geo != nil {
		if attrs, ok := g.Node(machine)["attributes"].(map[string]any); ok {
			attrs["geo"] = geo
		}
	}

	if len(c.cfg.TypesToFilter) > 0 {
		g = g.FilterTypes(c.cfg.TypesToFilter, true)
	}

	return storeGraph(ctx, c.db, g, ts)
}

// RemoveMachine expires a machine and its whole hardware tree.
func (c *HwlocCollector) RemoveMachine(ctx context.Context, machine string, ts int64) error {
	found, err := c.db.QueryNodes(ctx, map[string]any{models.NameProp: machine}, ts, 0)
	if err != nil {
		return err
	}
	if found.Len() == 0 {
		log.Printf("Machine %s not in the landscape to delete", machine)
		return nil
	}
	return c.db.ExpireNode(ctx, machine, ts)
}

// enrichCPUInfo merges per-processor cpuinfo attributes into the
// processing unit nodes, keyed by the hwloc os_index.
func (c *HwlocCollector) enrichCPUInfo(g *models.Graph, machine string) error {
	path := filepath.Join(c.cfg.CPUInfoFolder, machine+"_cpuinfo.txt")
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	processors, err := ParseCPUInfo(file)
	if err != nil {
		return err
	}

	for _, node := range g.Nodes {
		if node.Type() != "pu" {
			continue
		}
		attrs, ok := node["attributes"].(map[string]any)
		if !ok {
			continue
		}
		index, err := strconv.Atoi(str(attrs["os_index"]))
		if err != nil {
			continue
		}
		for k, v := range processors[index] {
			attrs[k] = v
		}
	}
	return nil
}

// hwlocWalk carries the per-machine parse state.
type hwlocWalk struct {
	graph      *models.Graph
	host       string
	typeCounts map[string]int

	// cacheReparents works around hwloc dumps that chain the L1 data
	// and instruction caches below each other instead of as siblings.
	// It maps a reparented cache to the parent it was detached from, so
	// that later children of that cache also link to the original
	// parent.
	cacheReparents map[string]string
}

// buildHardwareGraph turns a hwloc topology into a graph of hardware
// nodes connected by INTERNAL edges.
func buildHardwareGraph(root *hwlocObject, machine string) *models.Graph {
	w := &hwlocWalk{
		graph:          models.NewGraph(),
		host:           machine,
		typeCounts:     map[string]int{},
		cacheReparents: map[string]string{},
	}
	w.walk(root, "")
	return w.graph
}

func (w *hwlocWalk) walk(obj *hwlocObject, parent string) {
	nodeType := sanitize(obj.Type, false)
	category := hwlocCategory(obj)
	if nodeType == "osdev" {
		nodeType = nodeType + "_" + category
	}

	name := w.uniqueName(obj)
	w.graph.AddNode(name, map[string]any{
		models.LayerProp:    models.LayerPhysical,
		models.CategoryProp: category,
		models.TypeProp:     nodeType,
		"attributes":        hwlocAttributes(obj, w.host),
	})

	if parent != "" {
		w.graph.AddLink(models.GraphLink{Source: parent, Target: name, Label: graph.RelInternal})
		if original, ok := w.cacheReparents[parent]; ok {
			w.graph.AddLink(models.GraphLink{Source: original, Target: name, Label: graph.RelInternal})
		}

		if nodeType == "cache" {
			parentNode := w.graph.Node(parent)
			parentAttrs, _ := parentNode["attributes"].(map[string]any)
			if parentNode.Type() == "cache" && str(parentAttrs["depth"]) == sanitize(obj.Depth, true) {
				w.reparentCache(name, parent)
			}
		}
	}

	for i := range obj.Children {
		w.walk(&obj.Children[i], name)
	}
}

// reparentCache detaches a cache from its sibling cache and hangs it off
// the grandparent instead.
func (w *hwlocWalk) reparentCache(name, parent string) {
	kept := w.graph.Links[:0]
	var grandparent string
	for _, link := range w.graph.Links {
		if link.Target == name && link.Source == parent {
			continue
		}
		if link.Target == parent {
			grandparent = link.Source
		}
		kept = append(kept, link)
	}
	w.graph.Links = kept
	w.cacheReparents[name] = parent
	if grandparent != "" {
		w.graph.AddLink(models.GraphLink{Source: grandparent, Target: name, Label: graph.RelInternal})
	}
}

// uniqueName builds a stable per-machine node name: the machine keeps its
// own name, everything else becomes <host>_<type>_<n>.
func (w *hwlocWalk) uniqueName(obj *hwlocObject) string {
	base := obj.Type
	if obj.Name != "" {
		base = obj.Name
	}
	base = sanitize(base, false)

	if base == "machine" {
		return w.host
	}

	name := fmt.Sprintf("%s_%s_%d", w.host, base, w.typeCounts[base])
	w.typeCounts[base]++
	return name
}

// hwlocAttributes collects the XML attributes and <info> children of an
// object, plus the machine it is allocated to.
func hwlocAttributes(obj *hwlocObject, host string) map[string]any {
	attrs := map[string]any{"allocation": host}

	set := func(key, value string) {
		if value != "" {
			attrs[sanitize(key, true)] = sanitize(value, true)
		}
	}
	set("os_index", obj.OSIndex)
	set("osdev_type", obj.OSDevType)
	set("name", obj.Name)
	set("cache_size", obj.CacheSize)
	set("depth", obj.Depth)
	set("local_memory", obj.LocalMem)
	set("pci_busid", obj.PCIBusID)

	for _, info := range obj.Infos {
		set(info.Name, info.Value)
	}
	return attrs
}

func hwlocCategory(obj *hwlocObject) string {
	if category, ok := osdevCategories[obj.OSDevType]; ok {
		return category
	}
	return "compute"
}

// sanitize lowercases and trims a value from the hwloc dump, replacing
// dashes (and optionally spaces) with underscores.
func sanitize(s string, keepSpace bool) string {
	out := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if !keepSpace {
		out = strings.ReplaceAll(out, " ", "_")
	}
	return out
}
