package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/open-landscape/landscaper/internal/api"
	"github.com/open-landscape/landscaper/internal/collector"
	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/listener"
	"github.com/open-landscape/landscaper/internal/openstack"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Build the landscape and serve it",
	Long: `Run the full pipeline: connect to the graph database, run the
configured collectors to build the landscape, start the event listeners
that keep it current, and serve the API.

Collectors run in the configured order; the physical layer has to exist
before the virtual layer can attach to it.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	store, err := graph.New(cfg.Neo4j, cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize graph store: %w", err)
	}
	defer func() { _ = store.Close(context.Background()) }()

	if err := store.Wait(ctx); err != nil {
		return fmt.Errorf("graph database not reachable: %w", err)
	}

	if cfg.General.Flush {
		log.Println("Flushing the existing landscape")
		if err := store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to flush landscape: %w", err)
		}
	}

	manager := events.NewManager(cfg.Server.Debug)

	collectors, err := buildCollectors(ctx, store)
	if err != nil {
		return err
	}
	for _, c := range collectors {
		if ec, ok := c.(collector.EventCollector); ok {
			collector.Register(manager, ec)
		}
	}

	now := time.Now().Unix()
	for _, c := range collectors {
		log.Printf("Collecting %s", c.Name())
		start := time.Now()
		if err := c.CollectAll(ctx, now); err != nil {
			return fmt.Errorf("collector %s failed: %w", c.Name(), err)
		}
		log.Printf("Collected %s in %s", c.Name(), time.Since(start).Round(time.Millisecond))
	}

	listeners, err := buildListeners(manager)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		group.Go(func() error {
			log.Printf("Starting %s listener", l.Name())
			return l.Listen(ctx)
		})
	}

	group.Go(func() error {
		return api.New(cfg, store).Start(ctx)
	})

	return group.Wait()
}

// buildCollectors instantiates the configured collectors, preserving the
// configured order. The OpenStack session is only opened when an
// OpenStack collector is active.
func buildCollectors(ctx context.Context, store *graph.Store) ([]collector.Collector, error) {
	var clients *openstack.Clients
	osClients := func() (*openstack.Clients, error) {
		if clients != nil {
			return clients, nil
		}
		var err error
		clients, err = openstack.NewClients(ctx, cfg.OpenStack.Region)
		if err != nil {
			return nil, fmt.Errorf("openstack authentication failed: %w", err)
		}
		return clients, nil
	}

	var out []collector.Collector
	for _, name := range cfg.General.Collectors {
		switch name {
		case "hwloc":
			c, err := collector.NewHwlocCollector(store, cfg.PhysicalLayer)
			if err != nil {
				return nil, fmt.Errorf("hwloc collector: %w", err)
			}
			out = append(out, c)
		case "nova":
			clients, err := osClients()
			if err != nil {
				return nil, err
			}
			out = append(out, collector.NewNovaCollector(store, clients.Compute))
		case "neutron":
			clients, err := osClients()
			if err != nil {
				return nil, err
			}
			out = append(out, collector.NewNeutronCollector(store, clients.Network))
		case "cinder":
			clients, err := osClients()
			if err != nil {
				return nil, err
			}
			out = append(out, collector.NewCinderCollector(store, clients.Volume))
		case "heat":
			out = append(out, collector.NewHeatCollector(store))
		case "docker":
			c, err := collector.NewDockerCollector(store, cfg.Docker)
			if err != nil {
				return nil, fmt.Errorf("docker collector: %w", err)
			}
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown collector: %s", name)
		}
	}
	return out, nil
}

// buildListeners instantiates the configured event listeners.
func buildListeners(manager *events.Manager) ([]listener.Listener, error) {
	var out []listener.Listener
	for _, name := range cfg.General.EventListeners {
		switch name {
		case "rabbitmq":
			out = append(out, listener.NewRabbitMQListener(cfg.RabbitMQ, manager))
		case "fswatch":
			out = append(out, listener.NewFSWatchListener(cfg.PhysicalLayer.HwlocFolder, manager))
		case "docker":
			l, err := listener.NewDockerListener(cfg.Docker, manager)
			if err != nil {
				return nil, fmt.Errorf("docker listener: %w", err)
			}
			out = append(out, l)
		default:
			log.Printf("Ignoring unknown event listener: %s", name)
		}
	}
	return out, nil
}
