package listener

import (
	"context"
	"fmt"
	"log"

	dockerevents "github.com/docker/docker/api/types/events"
	"github.com/docker/docker/client"

	"github.com/open-landscape/landscaper/internal/config"
	"github.com/open-landscape/landscaper/internal/events"
)

// DockerListener streams daemon events and dispatches the container,
// service and task actions as "docker.<action>" events.
type DockerListener struct {
	cli     *client.Client
	manager *events.Manager
}

// NewDockerListener connects to the configured docker daemon.
func NewDockerListener(cfg config.DockerConfig, manager *events.Manager) (*DockerListener, error) {
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
	return &DockerListener{cli: cli, manager: manager}, nil
}

func (l *DockerListener) Name() string { return "docker" }

// Listen consumes daemon events until the context is cancelled.
func (l *DockerListener) Listen(ctx context.Context) error {
	log.Println("Subscribing to Docker events...")

	messages, errs := l.cli.Events(ctx, dockerevents.ListOptions{})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case message := <-messages:
			l.handle(ctx, message)
		}
	}
}

func (l *DockerListener) handle(ctx context.Context, message dockerevents.Message) {
	switch message.Type {
	case dockerevents.ContainerEventType, dockerevents.ServiceEventType, dockerevents.Type("task"):
	default:
		return
	}

	event := events.Event{
		Type: fmt.Sprintf("docker.%s", message.Action),
		Payload: map[string]any{
			"id":         message.Actor.ID,
			"actor":      string(message.Type),
			"attributes": message.Actor.Attributes,
		},
		Timestamp: message.Time,
	}

	if l.manager.Subscribed(event.Type) {
		l.manager.Dispatch(ctx, event)
	}
}
