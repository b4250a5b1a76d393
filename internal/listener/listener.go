package listener

import "context"

// Listener is a source of change notifications. Listen blocks until the
// context is cancelled or the source is permanently lost.
type Listener interface {
	Name() string
	Listen(ctx context.Context) error
}
