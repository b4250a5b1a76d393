package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/open-landscape/landscaper/internal/api"
	"github.com/open-landscape/landscaper/internal/graph"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the API against an existing landscape",
	Long: `Start the HTTP API server only. No collectors or listeners run;
the landscape is served as it exists in the graph database.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	store, err := graph.New(cfg.Neo4j, cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize graph store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	defer func() { _ = store.Close(context.Background()) }()

	if err := store.Wait(ctx); err != nil {
		return fmt.Errorf("graph database not reachable: %w", err)
	}

	server := api.New(cfg, store)
	return server.Start(ctx)
}
