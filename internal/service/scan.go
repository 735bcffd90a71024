package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/repository"
	"example.com/eazyy/fulfillment/internal/tracing"
)

// DefaultDuplicateWindow is how long an accepted scan suppresses an
// identical one
const DefaultDuplicateWindow = 5 * time.Minute

// ScanRequest is a single barcode scan submitted by a driver or facility
type ScanRequest struct {
	Code               string
	Kind               models.ScanKind
	DriverID           *string
	ClientTimestamp    *time.Time
	ClientTimestampRaw string
	Source             string
}

// ScanResult is the outcome of an accepted scan
type ScanResult struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	Duplicate   bool               `json:"duplicate"`
}

// ScanService validates scans against the order state machine
type ScanService struct {
	store           repository.Store
	clock           Clock
	duplicateWindow time.Duration
	publisher       StatusPublisher
	indexer         TimelineIndexer
	metrics         *metrics.Collector
}

// NewScanService creates a scan service. publisher and indexer may be nil.
func NewScanService(store repository.Store, clock Clock, duplicateWindow time.Duration, publisher StatusPublisher, indexer TimelineIndexer) *ScanService {
	if duplicateWindow <= 0 {
		duplicateWindow = DefaultDuplicateWindow
	}
	return &ScanService{
		store:           store,
		clock:           clock,
		duplicateWindow: duplicateWindow,
		publisher:       publisher,
		indexer:         indexer,
		metrics:         metrics.GetCollector(),
	}
}

// SubmitScan resolves the scanned code to an order, checks the driver's
// assignment, suppresses duplicates and applies the status transition.
func (s *ScanService) SubmitScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, BadRequest("code is required")
	}

	kind := req.Kind
	if kind == "" {
		kind = models.ScanDeliveryVerify
	}
	transition, ok := models.TransitionFor(kind)
	if !ok {
		s.metrics.RecordScan(string(kind), metrics.ScanOutcomeRejected)
		return nil, &Error{Code: CodeUnknownScanKind, Message: "unknown scan kind: " + string(kind)}
	}

	logger := log.With().Str("code", code).Str("kind", string(kind)).Logger()

	order, err := s.resolveOrder(ctx, code)
	if err != nil {
		s.metrics.RecordScan(string(kind), metrics.ScanOutcomeRejected)
		return nil, err
	}

	driverID := ""
	if req.DriverID != nil {
		driverID = strings.TrimSpace(*req.DriverID)
	}
	if driverID != "" && kind != models.ScanPreloadVerify {
		if err := s.checkAssignment(ctx, driverID, order); err != nil {
			logger.Warn().Err(err).Str("driver_id", driverID).Str("order_id", order.ID.String()).Msg("Scan failed assignment check")
			s.metrics.RecordScan(string(kind), metrics.ScanOutcomeRejected)
			return nil, err
		}
	}

	var (
		result = &ScanResult{OrderID: order.ID, OrderNumber: order.OrderNumber}
		event  *models.ScanEvent
		from   models.OrderStatus
	)

	endSegment := tracing.StartSegment(ctx, "scan.commit")
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		locked, err := tx.Orders().LockByID(ctx, order.ID)
		if err != nil {
			return err
		}
		order = locked
		from = locked.Status

		now := s.clock.Now()
		event = &models.ScanEvent{
			OrderID:   locked.ID,
			Type:      kind,
			Success:   true,
			CreatedAt: now,
			Metadata: models.ScanMetadata{
				Code:               code,
				ClientTimestamp:    req.ClientTimestamp,
				ClientTimestampRaw: req.ClientTimestampRaw,
				Source:             req.Source,
			},
		}
		if driverID != "" {
			event.DriverID = &driverID
		}

		last, err := tx.Scans().LatestAccepted(ctx, locked.ID, kind)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if last != nil && now.Sub(last.CreatedAt) < s.duplicateWindow {
			result.Duplicate = true
			result.Status = locked.Status
			event.Metadata.Duplicate = true
			return tx.Scans().Create(ctx, event)
		}

		if locked.Status != transition.Expected {
			return Conflict("invalid status for %s: expected %s, got %s", kind, transition.Expected, locked.Status)
		}

		if err := tx.Scans().Create(ctx, event); err != nil {
			return err
		}
		result.Status = locked.Status
		if transition.AdvancesStatus() {
			if err := tx.Orders().UpdateStatus(ctx, locked.ID, transition.Expected, transition.Target); err != nil {
				if errors.Is(err, repository.ErrStatusMismatch) {
					return Conflict("order %s changed status concurrently", locked.OrderNumber)
				}
				return err
			}
			result.Status = transition.Target
		}
		return nil
	})
	endSegment()

	if err != nil {
		s.metrics.RecordScan(string(kind), metrics.ScanOutcomeRejected)
		var svcErr *Error
		if errors.As(err, &svcErr) {
			logger.Info().Str("order_id", order.ID.String()).Str("reason", svcErr.Message).Msg("Scan rejected")
			return nil, svcErr
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("order not found for code %s", code)
		}
		logger.Error().Err(err).Msg("Failed to commit scan")
		return nil, Internal(err, "failed to record scan")
	}

	if result.Duplicate {
		s.metrics.RecordScan(string(kind), metrics.ScanOutcomeDuplicate)
		logger.Info().Str("order_id", order.ID.String()).Msg("Duplicate scan ignored")
	} else {
		s.metrics.RecordScan(string(kind), metrics.ScanOutcomeAccepted)
		logger.Info().
			Str("order_id", order.ID.String()).
			Str("from", string(from)).
			Str("to", string(result.Status)).
			Msg("Scan accepted")
	}

	s.afterCommit(ctx, order, event, from, result)
	return result, nil
}

// History returns the scan events recorded for an order, oldest first
func (s *ScanService) History(ctx context.Context, orderID string) ([]models.ScanEvent, error) {
	id, err := uuid.Parse(strings.TrimSpace(orderID))
	if err != nil {
		return nil, BadRequest("order_id must be a valid id")
	}
	if _, err := s.store.Orders().GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("order %s not found", id)
		}
		return nil, Internal(err, "failed to load order")
	}
	events, err := s.store.Scans().ListByOrder(ctx, id)
	if err != nil {
		return nil, Internal(err, "failed to load scan history")
	}
	return events, nil
}

// resolveOrder tries the primary id when the code looks like one, then the
// order number printed on labels
func (s *ScanService) resolveOrder(ctx context.Context, code string) (*models.Order, error) {
	if id, err := uuid.Parse(code); err == nil {
		order, err := s.store.Orders().GetByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, Internal(err, "failed to look up order")
		}
	}

	order, err := s.store.Orders().GetByOrderNumber(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("order not found for code %s", code)
		}
		return nil, Internal(err, "failed to look up order")
	}
	return order, nil
}

func (s *ScanService) checkAssignment(ctx context.Context, driverID string, order *models.Order) error {
	shift := s.clock.ShiftDate()
	assigned, err := s.store.Assignments().Exists(ctx, driverID, order.ID, shift)
	if err != nil {
		// No assignment table means nobody is assigned
		if errors.Is(err, repository.ErrNotProvisioned) {
			return Forbidden("driver %s is not assigned to order %s", driverID, order.OrderNumber)
		}
		return Internal(errors.Wrap(err, "assignment lookup"), "failed to check driver assignment")
	}
	if !assigned {
		return Forbidden("driver %s is not assigned to order %s", driverID, order.OrderNumber)
	}
	return nil
}

// afterCommit fans the accepted scan out to the side channels. Failures are
// logged and never reach the caller.
func (s *ScanService) afterCommit(ctx context.Context, order *models.Order, event *models.ScanEvent, from models.OrderStatus, result *ScanResult) {
	if s.publisher != nil && !result.Duplicate && result.Status != from {
		change := models.NewStatusChangeEvent(order, from, result.Status, models.SourceScan, event.CreatedAt)
		change.ScanKind = event.Type
		change.DriverID = event.DriverID
		if err := s.publisher.PublishStatusChange(ctx, change); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to publish status change")
		}
	}

	if s.indexer != nil {
		entry := models.TimelineEntry{
			ID:          event.ID.String(),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Kind:        string(event.Type),
			Status:      result.Status,
			DriverID:    event.DriverID,
			Duplicate:   result.Duplicate,
			OccurredAt:  event.CreatedAt,
		}
		if err := s.indexer.IndexTimelineEntry(ctx, entry); err != nil {
			s.metrics.RecordError(metrics.ErrorTypeSearch)
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to index scan")
		}
	}
}
