// Package graph implements the temporal landscape store on top of Neo4j.
//
// Nothing is ever deleted from the landscape. Every component is stored as
// an identity node plus a chain of state nodes connected by STATE
// relationships, and every relationship carries a validity interval
// (from/to, epoch seconds). Updating a component closes the interval of
// its current state and attaches a fresh one, so the full history stays
// queryable with a timestamp and a timeframe.
package graph

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/open-landscape/landscaper/internal/config"
)

// cypherRunner executes cypher statements. The landscape operations run
// everything through this seam, so their temporal logic is testable
// without a database.
type cypherRunner interface {
	write(ctx context.Context, cypher string, params map[string]any) error
	collect(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

// Store wraps the Neo4j driver and provides the landscape operations.
type Store struct {
	driver neo4j.DriverWithContext
	config config.Neo4jConfig
	debug  bool
	run    cypherRunner
}

// debugLog logs a message only if debug mode is enabled.
func (s *Store) debugLog(format string, args ...interface{}) {
	if s.debug {
		log.Printf(format, args...)
	}
}

// New creates a store connected to the configured Neo4j instance. The
// connection is lazy; call Wait to block until the database answers.
func New(cfg config.Neo4jConfig, debug bool) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	return &Store{
		driver: driver,
		config: cfg,
		debug:  debug,
		run:    &sessionRunner{driver: driver},
	}, nil
}

// Close releases the driver and all its connections.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Wait blocks until the database responds, retrying at the configured
// interval. The landscape cannot start without its store, so startup
// calls this before anything else.
func (s *Store) Wait(ctx context.Context) error {
	deadline := time.Now().Add(s.config.ConnectTimeout)

	for {
		err := s.driver.VerifyConnectivity(ctx)
		if err == nil {
			log.Printf("Connected to neo4j at %s", s.config.URL)
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("neo4j at %s did not respond within %s: %w", s.config.URL, s.config.ConnectTimeout, err)
		}

		log.Printf("Waiting for neo4j at %s: %v", s.config.URL, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.RetryInterval):
		}
	}
}

// DeleteAll wipes the entire landscape, history included. Used on startup
// when the flush option is set.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.write(ctx, "MATCH (n) DETACH DELETE n", nil)
}

func (s *Store) write(ctx context.Context, cypher string, params map[string]any) error {
	return s.run.write(ctx, cypher, params)
}

func (s *Store) collect(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return s.run.collect(ctx, cypher, params)
}

// sessionRunner executes statements against the driver, one session per
// call.
type sessionRunner struct {
	driver neo4j.DriverWithContext
}

// write runs a cypher statement in a write session, discarding the result.
func (r *sessionRunner) write(ctx context.Context, cypher string, params map[string]any) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// collect runs a cypher statement in a read session and returns all records.
func (r *sessionRunner) collect(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}
