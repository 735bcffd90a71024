package cmd

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/cache"
	"example.com/eazyy/fulfillment/internal/db"
	"example.com/eazyy/fulfillment/internal/directions"
	"example.com/eazyy/fulfillment/internal/messaging"
	"example.com/eazyy/fulfillment/internal/repository"
	"example.com/eazyy/fulfillment/internal/search"
	"example.com/eazyy/fulfillment/internal/service"
	"example.com/eazyy/fulfillment/internal/storage"
	"example.com/eazyy/fulfillment/internal/tracing"
)

// dependencies holds everything the api and worker commands share
type dependencies struct {
	db        *gorm.DB
	tracer    tracing.Tracer
	bus       *azservicebus.Client
	publisher *messaging.StatusPublisher
	redis     *cache.RedisCache
	elastic   *search.ElasticClient

	scans      *service.ScanService
	deliveries *service.DeliveryService
	locations  *service.LocationService
	planner    *service.RoutePlanner
}

// buildDependencies connects to the configured backends. Only the database
// is required; every other backend degrades to disabled with a warning.
func buildDependencies(ctx context.Context, cfg config.Config) (*dependencies, error) {
	database, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := db.Migrate(database); err != nil {
			return nil, err
		}
	}

	deps := &dependencies{db: database}

	deps.tracer, err = tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		deps.tracer = tracing.NewNoopTracer()
	}

	var (
		publisher service.StatusPublisher
		indexer   service.TimelineIndexer
		planCache service.PlanCache
		router    service.Directions
		photos    service.PhotoStorage
	)

	if cfg.Azure.QueueConnStr != "" {
		deps.bus, err = messaging.NewClient(cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus, status changes will not be published")
		} else if deps.publisher, err = messaging.NewStatusPublisher(deps.bus, cfg.Azure.StatusQueueName); err != nil {
			log.Warn().Err(err).Msg("Failed to create status publisher, status changes will not be published")
		} else {
			publisher = deps.publisher
		}
	}

	if cfg.Redis.Enabled {
		if deps.redis, err = cache.NewRedisCache(cfg.Redis); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		} else {
			planCache = deps.redis
		}
	}

	if cfg.Elastic.Enabled {
		if deps.elastic, err = search.NewElasticClient(cfg.Elastic); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		} else {
			indexer = deps.elastic
		}
	}

	if client := directions.NewClient(cfg.Directions); client != nil {
		router = client
	} else {
		log.Info().Msg("No directions API key configured, routes will not be optimized")
	}

	if s3, err := storage.NewPhotoStorage(ctx, cfg.Storage); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize photo storage, upload urls are unavailable")
	} else if s3 != nil {
		photos = s3
	}

	store := repository.NewStore(database)
	clock := service.NewClock(clockwork.NewRealClock(), cfg.Dispatch.Location())

	deps.scans = service.NewScanService(store, clock, cfg.Dispatch.DuplicateWindow, publisher, indexer)
	deps.deliveries = service.NewDeliveryService(store, clock, publisher, indexer, photos)
	deps.locations = service.NewLocationService(store, clock)
	deps.planner = service.NewRoutePlanner(store, clock, router, planCache, cfg.Dispatch.FallbackStops)

	return deps, nil
}

// Close releases backend connections
func (d *dependencies) Close(ctx context.Context) {
	if d.publisher != nil {
		if err := d.publisher.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Error closing status publisher")
		}
	}
	if d.bus != nil {
		if err := d.bus.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus client")
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis")
		}
	}
	if d.tracer != nil {
		d.tracer.Close()
	}
	if err := db.Close(d.db); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}
