package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/eazyy/fulfillment/internal/messaging"
	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/service"
	"example.com/eazyy/fulfillment/internal/tracing"
)

// scanSourceQueue marks scans that arrived through Service Bus
const scanSourceQueue = "service_bus"

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Consume queued scans from Azure Service Bus and pre-plan routes for assigned drivers`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// scanSubmitter is implemented by service.ScanService
type scanSubmitter interface {
	SubmitScan(ctx context.Context, req service.ScanRequest) (*service.ScanResult, error)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	g, ctx := errgroup.WithContext(ctx)

	if deps.bus != nil {
		consumer, err := messaging.NewScanConsumer(deps.bus, cfg.Azure.ScanQueueName)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.ScanQueueName).Msg("Starting scan queue consumer")
			return consumer.Run(ctx, scanMessageHandler(deps.scans, deps.tracer))
		})
	} else {
		log.Warn().Msg("Service Bus not configured, queued scans will not be consumed")
	}

	if cfg.Worker.PreplanEnabled {
		g.Go(func() error {
			return runPreplanScheduler(ctx, deps.planner, cfg.Worker.PreplanInterval)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// runPreplanScheduler refreshes route plans for every driver with
// assignments in the current shift until ctx is cancelled
func runPreplanScheduler(ctx context.Context, planner *service.RoutePlanner, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			planned, err := planner.PlanAssignedDrivers(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Route pre-planning failed")
				return
			}
			log.Info().Int("drivers", planned).Msg("Route pre-planning completed")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule route pre-planning")
	}

	log.Info().Dur("interval", interval).Msg("Starting route pre-planning job")
	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}

// scanMessageHandler applies a queued scan. Business rejections are final;
// anything else goes back to the queue for another attempt.
func scanMessageHandler(scans scanSubmitter, tracer tracing.Tracer) messaging.ScanHandler {
	return func(ctx context.Context, msg models.ScanMessage) error {
		txn := tracer.StartTransaction("queue-driver-scan")
		defer tracer.EndTransaction(txn)
		if txn != nil {
			ctx = newrelic.NewContext(ctx, txn)
		}
		tracer.AddAttribute(txn, "scan_kind", msg.Kind)

		when, rawWhen := models.ParseClientTimestamp(msg.When)
		result, err := scans.SubmitScan(ctx, service.ScanRequest{
			Code:               msg.Code,
			Kind:               models.ScanKind(msg.Kind),
			DriverID:           msg.DriverID,
			ClientTimestamp:    when,
			ClientTimestampRaw: rawWhen,
			Source:             scanSourceQueue,
		})
		if err != nil {
			tracer.RecordError(txn, err)
			if service.CodeOf(err) != service.CodeInternal {
				return messaging.Permanent(err)
			}
			return err
		}

		log.Info().
			Str("order_id", result.OrderID.String()).
			Str("status", string(result.Status)).
			Bool("duplicate", result.Duplicate).
			Msg("Queued scan applied")
		return nil
	}
}
