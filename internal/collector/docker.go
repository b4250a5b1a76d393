package collector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"

	"github.com/open-landscape/landscaper/internal/config"
	"github.com/open-landscape/landscaper/internal/events"
	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

var (
	containerIdentity = models.Identity{Layer: models.LayerService, Category: "compute", Type: "docker_container"}
	serviceIdentity   = models.Identity{Layer: models.LayerService, Category: "compute", Type: "docker_service"}
	taskIdentity      = models.Identity{Layer: models.LayerService, Category: "compute", Type: "docker_task"}
)

var (
	dockerAddEvents    = []string{"docker.create", "docker.start"}
	dockerDeleteEvents = []string{"docker.remove", "docker.destroy"}
	dockerUpdateEvents = []string{"docker.update"}
)

// DockerCollector maintains the service layer of a swarm: container,
// service and task nodes, with containers hosted on the machine running
// the daemon, tasks deployed by their container and services owning
// their tasks.
type DockerCollector struct {
	db  GraphDB
	cli *client.Client
}

// NewDockerCollector connects to the configured docker daemon.
func NewDockerCollector(db GraphDB, cfg config.DockerConfig) (*DockerCollector, error) {
	opts := []client.Opt{
		client.WithHost(cfg.Host),
		client.WithAPIVersionNegotiation(),
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		opts = append(opts, client.WithTLSClientConfig("", cfg.ClientCert, cfg.ClientKey))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerCollector{db: db, cli: cli}, nil
}

func (c *DockerCollector) Name() string { return "docker" }

func (c *DockerCollector) EventTypes() []string {
	return dedupe(dockerAddEvents, dockerUpdateEvents, dockerDeleteEvents)
}

// CollectAll adds the containers, swarm services and tasks of the daemon
// to the landscape.
func (c *DockerCollector) CollectAll(ctx context.Context, ts int64) error {
	log.Println("[DOCKER] Adding Docker components to the landscape.")

	host, err := c.daemonHost(ctx)
	if err != nil {
		return err
	}

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	for _, ctr := range containers {
		if err := c.addContainer(ctx, ctr.ID, containerState(ctr), host, ts); err != nil {
			return err
		}
	}

	services, err := c.cli.ServiceList(ctx, types.ServiceListOptions{})
	if err != nil {
		// Not every daemon is a swarm manager
		log.Printf("[DOCKER] Skipping swarm services: %v", err)
		metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
		return nil
	}
	for _, service := range services {
		if err := c.addService(ctx, service, ts); err != nil {
			return err
		}
	}

	tasks, err := c.cli.TaskList(ctx, types.TaskListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, task := range tasks {
		if err := c.addTask(ctx, task, ts); err != nil {
			return err
		}
	}

	metrics.CollectorRuns.WithLabelValues(c.Name()).Inc()
	return nil
}

// HandleEvent applies one docker daemon notification. The payload names
// the actor id and whether it is a container, service or task.
func (c *DockerCollector) HandleEvent(ctx context.Context, event events.Event) error {
	id := str(event.Payload["id"])
	if id == "" {
		return fmt.Errorf("docker event %s without actor id", event.Type)
	}

	if contains(dockerDeleteEvents, event.Type) {
		return c.db.ExpireNode(ctx, id, event.Timestamp)
	}
	if !contains(dockerAddEvents, event.Type) && !contains(dockerUpdateEvents, event.Type) {
		return nil
	}

	switch str(event.Payload["actor"]) {
	case "service":
		service, _, err := c.cli.ServiceInspectWithRaw(ctx, id, types.ServiceInspectOptions{})
		if err != nil {
			return fmt.Errorf("failed to inspect service %s: %w", id, err)
		}
		if contains(dockerUpdateEvents, event.Type) {
			return c.db.UpdateNode(ctx, id, event.Timestamp, serviceState(service), nil)
		}
		return c.addService(ctx, service, event.Timestamp)

	case "task":
		task, _, err := c.cli.TaskInspectWithRaw(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to inspect task %s: %w", id, err)
		}
		return c.addTask(ctx, task, event.Timestamp)

	default:
		inspect, err := c.cli.ContainerInspect(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to inspect container %s: %w", id, err)
		}
		state := models.State{
			"container_name": strings.TrimPrefix(inspect.Name, "/"),
			"image":          inspect.Config.Image,
			"status":         inspect.State.Status,
		}
		if contains(dockerUpdateEvents, event.Type) {
			return c.db.UpdateNode(ctx, id, event.Timestamp, state, nil)
		}
		host, err := c.daemonHost(ctx)
		if err != nil {
			return err
		}
		return c.addContainer(ctx, id, state, host, event.Timestamp)
	}
}

func (c *DockerCollector) addContainer(ctx context.Context, id string, state models.State, host string, ts int64) error {
	if err := c.db.AddNode(ctx, id, containerIdentity, state, ts); err != nil {
		return err
	}
	if host == "" {
		return nil
	}
	return c.db.AddEdge(ctx, id, host, graph.RelHosts, ts)
}

func (c *DockerCollector) addService(ctx context.Context, service swarm.Service, ts int64) error {
	return c.db.AddNode(ctx, service.ID, serviceIdentity, serviceState(service), ts)
}

// addTask stores a running task and wires it between its container and
// its owning service. Edges to components not yet in the landscape are
// skipped.
func (c *DockerCollector) addTask(ctx context.Context, task swarm.Task, ts int64) error {
	if task.DesiredState != swarm.TaskStateRunning {
		return nil
	}

	state := models.State{"service_id": task.ServiceID}
	if err := c.db.AddNode(ctx, task.ID, taskIdentity, state, ts); err != nil {
		return err
	}

	if task.Status.ContainerStatus != nil && task.Status.ContainerStatus.ContainerID != "" {
		if err := c.db.AddEdge(ctx, task.ID, task.Status.ContainerStatus.ContainerID, graph.RelDeployedBy, ts); err != nil {
			return err
		}
	}
	if task.ServiceID != "" {
		return c.db.AddEdge(ctx, task.ServiceID, task.ID, graph.RelOwnedBy, ts)
	}
	return nil
}

// daemonHost returns the machine name the daemon runs on, used to anchor
// containers in the physical layer.
func (c *DockerCollector) daemonHost(ctx context.Context) (string, error) {
	info, err := c.cli.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query docker daemon: %w", err)
	}
	return info.Name, nil
}

func containerState(ctr container.Summary) models.State {
	name := ""
	if len(ctr.Names) > 0 {
		name = strings.TrimPrefix(ctr.Names[0], "/")
	}
	return models.State{
		"container_name": name,
		"image":          ctr.Image,
		"status":         ctr.Status,
	}
}

func serviceState(service swarm.Service) models.State {
	return models.State{"service_name": service.Spec.Name}
}
