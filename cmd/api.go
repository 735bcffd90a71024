package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/eazyy/fulfillment/internal/api"
	"example.com/eazyy/fulfillment/internal/api/handlers"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API serving the driver app: scans, proofs of delivery, locations and route plans`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	var timeline handlers.TimelineSearcher
	if deps.elastic != nil {
		timeline = deps.elastic
	}

	server := api.NewServer(cfg.Server, api.Services{
		Scans:      deps.scans,
		Deliveries: deps.deliveries,
		Locations:  deps.locations,
		Routes:     deps.planner,
		Timeline:   timeline,
	}, deps.tracer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
