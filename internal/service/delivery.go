package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/repository"
)

// DeliveryRequest carries the evidence captured at the customer's door
type DeliveryRequest struct {
	OrderID      string
	DriverID     *string
	PhotoURL     *string
	SignatureURL *string
	Note         *string
}

// PhotoUpload is a pre-signed upload target for a delivery photo
type PhotoUpload struct {
	UploadURL string `json:"upload_url"`
	PhotoURL  string `json:"photo_url"`
}

// DeliveryService records proofs of delivery
type DeliveryService struct {
	store     repository.Store
	clock     Clock
	publisher StatusPublisher
	indexer   TimelineIndexer
	photos    PhotoStorage
	metrics   *metrics.Collector
}

// NewDeliveryService creates a delivery service. publisher, indexer and
// photos may be nil.
func NewDeliveryService(store repository.Store, clock Clock, publisher StatusPublisher, indexer TimelineIndexer, photos PhotoStorage) *DeliveryService {
	return &DeliveryService{
		store:     store,
		clock:     clock,
		publisher: publisher,
		indexer:   indexer,
		photos:    photos,
		metrics:   metrics.GetCollector(),
	}
}

// RecordDelivery stores the proof of delivery and moves the order to
// delivered whatever its current status. Resubmissions keep the first proof.
func (s *DeliveryService) RecordDelivery(ctx context.Context, req DeliveryRequest) error {
	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return err
	}

	var (
		order   *models.Order
		from    models.OrderStatus
		created bool
	)
	deliveredAt := s.clock.Now()

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		locked, err := tx.Orders().LockByID(ctx, id)
		if err != nil {
			return err
		}
		order, from = locked, locked.Status

		created, err = tx.Deliveries().Create(ctx, &models.ProofOfDelivery{
			OrderID:      id,
			DriverID:     trimmed(req.DriverID),
			PhotoURL:     trimmed(req.PhotoURL),
			SignatureURL: trimmed(req.SignatureURL),
			Note:         req.Note,
			DeliveredAt:  deliveredAt,
		})
		if err != nil {
			return err
		}
		return tx.Orders().MarkDelivered(ctx, id, deliveredAt)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("order %s not found", id)
		}
		log.Error().Err(err).Str("order_id", id.String()).Msg("Failed to record delivery")
		return Internal(err, "failed to record delivery")
	}

	s.metrics.IncrementCounter(metrics.CounterDeliveriesRecorded, 1)
	log.Info().
		Str("order_id", id.String()).
		Str("from", string(from)).
		Bool("first_proof", created).
		Msg("Delivery recorded")

	s.afterCommit(ctx, order, from, req.DriverID, deliveredAt)
	return nil
}

// PhotoUploadURL returns a pre-signed URL the driver app uploads the
// delivery photo to, and the URL to submit as photo_url afterwards
func (s *DeliveryService) PhotoUploadURL(ctx context.Context, orderID string) (*PhotoUpload, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if s.photos == nil {
		return nil, Internal(errors.New("photo storage not configured"), "photo uploads are not available")
	}
	if _, err := s.store.Orders().GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("order %s not found", id)
		}
		return nil, Internal(err, "failed to load order")
	}

	key := fmt.Sprintf("pod/%s/%d.jpg", id, s.clock.Now().UnixNano())
	uploadURL, objectURL, err := s.photos.PresignPut(ctx, key)
	if err != nil {
		return nil, Internal(err, "failed to create photo upload url")
	}
	return &PhotoUpload{UploadURL: uploadURL, PhotoURL: objectURL}, nil
}

func (s *DeliveryService) afterCommit(ctx context.Context, order *models.Order, from models.OrderStatus, driverID *string, at time.Time) {
	if s.publisher != nil && from != models.StatusDelivered {
		change := models.NewStatusChangeEvent(order, from, models.StatusDelivered, models.SourceDelivery, at)
		change.DriverID = driverID
		if err := s.publisher.PublishStatusChange(ctx, change); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to publish status change")
		}
	}

	if s.indexer != nil {
		entry := models.TimelineEntry{
			ID:          "pod-" + order.ID.String(),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Kind:        models.SourceDelivery,
			Status:      models.StatusDelivered,
			DriverID:    driverID,
			OccurredAt:  at,
		}
		if err := s.indexer.IndexTimelineEntry(ctx, entry); err != nil {
			s.metrics.RecordError(metrics.ErrorTypeSearch)
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to index delivery")
		}
	}
}

func parseOrderID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, BadRequest("order_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, BadRequest("order_id must be a valid id")
	}
	return id, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
