package listener

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/open-landscape/landscaper/internal/events"
)

// Event types dispatched when hardware dumps appear or disappear.
const (
	MachineAdded   = "hwloc.machine.create"
	MachineRemoved = "hwloc.machine.delete"
)

const hwlocSuffix = "_hwloc.xml"

// FSWatchListener watches the hwloc folder. Dropping a new
// <machine>_hwloc.xml into it adds the machine to the landscape, removing
// the file expires it.
type FSWatchListener struct {
	folder  string
	manager *events.Manager
}

// NewFSWatchListener creates the hardware folder listener.
func NewFSWatchListener(folder string, manager *events.Manager) *FSWatchListener {
	return &FSWatchListener{folder: folder, manager: manager}
}

func (l *FSWatchListener) Name() string { return "fswatch" }

// Listen watches the folder until the context is cancelled.
func (l *FSWatchListener) Listen(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(l.folder); err != nil {
		return err
	}

	log.Printf("Watching %s for hardware changes", l.folder)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			l.handle(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error on %s: %v", l.folder, err)
		}
	}
}

func (l *FSWatchListener) handle(ctx context.Context, event fsnotify.Event) {
	machine, ok := MachineFromPath(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		l.manager.Dispatch(ctx, events.Event{
			Type:      MachineAdded,
			Payload:   map[string]any{"machine": machine},
			Timestamp: time.Now().Unix(),
		})
	case event.Has(fsnotify.Remove):
		l.manager.Dispatch(ctx, events.Event{
			Type:      MachineRemoved,
			Payload:   map[string]any{"machine": machine},
			Timestamp: time.Now().Unix(),
		})
	}
}

// MachineFromPath extracts the machine name from a hwloc dump path,
// false for any other file.
func MachineFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, hwlocSuffix) {
		return "", false
	}
	return strings.TrimSuffix(name, hwlocSuffix), true
}
