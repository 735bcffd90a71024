package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/repository"
)

// memStore is an in-memory repository.Store. Transactions are serialized
// and roll back on error.
type memStore struct {
	mu     sync.Mutex
	txLock sync.Mutex

	orders      map[uuid.UUID]models.Order
	assignments []models.DriverAssignment
	scans       []models.ScanEvent
	pods        map[uuid.UUID]models.ProofOfDelivery
	pings       []models.DriverLocationPing
	plans       []models.RoutePlan

	assignmentsErr error
	plansErr       error
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[uuid.UUID]models.Order),
		pods:   make(map[uuid.UUID]models.ProofOfDelivery),
	}
}

func (s *memStore) addOrder(number string, status models.OrderStatus, createdAt time.Time) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		Status:          status,
		ShippingAddress: "Keizersgracht 1",
		ShippingCity:    "Amsterdam",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	s.orders[o.ID] = o
	return o
}

func (s *memStore) assign(driverID string, orderID uuid.UUID, shift models.Date, role models.AssignmentRole, seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, models.DriverAssignment{
		ID:        uuid.New(),
		DriverID:  driverID,
		OrderID:   orderID,
		ShiftDate: shift,
		Role:      role,
		Sequence:  seq,
	})
}

func (s *memStore) status(id uuid.UUID) models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

func (s *memStore) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

func (s *memStore) Orders() repository.OrderRepository           { return memOrders{s} }
func (s *memStore) Assignments() repository.AssignmentRepository { return memAssignments{s} }
func (s *memStore) Scans() repository.ScanRepository             { return memScans{s} }
func (s *memStore) Deliveries() repository.DeliveryRepository    { return memDeliveries{s} }
func (s *memStore) Locations() repository.LocationRepository     { return memLocations{s} }
func (s *memStore) RoutePlans() repository.RoutePlanRepository   { return memPlans{s} }

func (s *memStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txLock.Lock()
	defer s.txLock.Unlock()

	s.mu.Lock()
	orders := make(map[uuid.UUID]models.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}
	pods := make(map[uuid.UUID]models.ProofOfDelivery, len(s.pods))
	for k, v := range s.pods {
		pods[k] = v
	}
	scans := append([]models.ScanEvent(nil), s.scans...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.orders, s.pods, s.scans = orders, pods, scans
		s.mu.Unlock()
		return err
	}
	return nil
}

type memOrders struct{ s *memStore }

func (r memOrders) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r memOrders) GetByOrderNumber(ctx context.Context, number string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.OrderNumber == number {
			o := o
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memOrders) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r memOrders) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Order
	for _, id := range ids {
		if o, ok := r.s.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memOrders) ListRecent(ctx context.Context, limit int) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != from {
		return repository.ErrStatusMismatch
	}
	o.Status = to
	r.s.orders[id] = o
	return nil
}

func (r memOrders) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = models.StatusDelivered
	o.DeliveryDate = &at
	r.s.orders[id] = o
	return nil
}

type memAssignments struct{ s *memStore }

func (r memAssignments) Exists(ctx context.Context, driverID string, orderID uuid.UUID, shift models.Date) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.assignmentsErr != nil {
		return false, r.s.assignmentsErr
	}
	for _, a := range r.s.assignments {
		if a.DriverID == driverID && a.OrderID == orderID && a.ShiftDate == shift {
			return true, nil
		}
	}
	return false, nil
}

func (r memAssignments) ListForDriver(ctx context.Context, driverID string, shift models.Date) ([]models.DriverAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.assignmentsErr != nil {
		return nil, r.s.assignmentsErr
	}
	var out []models.DriverAssignment
	for _, a := range r.s.assignments {
		if a.DriverID == driverID && a.ShiftDate == shift {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r memAssignments) ListDrivers(ctx context.Context, shift models.Date) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.assignmentsErr != nil {
		return nil, r.s.assignmentsErr
	}
	seen := map[string]bool{}
	var out []string
	for _, a := range r.s.assignments {
		if a.ShiftDate == shift && !seen[a.DriverID] {
			seen[a.DriverID] = true
			out = append(out, a.DriverID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memScans struct{ s *memStore }

func (r memScans) Create(ctx context.Context, event *models.ScanEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	r.s.scans = append(r.s.scans, *event)
	return nil
}

func (r memScans) LatestAccepted(ctx context.Context, orderID uuid.UUID, kind models.ScanKind) (*models.ScanEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.ScanEvent
	for i := range r.s.scans {
		e := r.s.scans[i]
		if e.OrderID != orderID || e.Type != kind || !e.Success || e.Metadata.Duplicate {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = &e
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r memScans) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ScanEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.ScanEvent
	for _, e := range r.s.scans {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memDeliveries struct{ s *memStore }

func (r memDeliveries) Create(ctx context.Context, pod *models.ProofOfDelivery) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.pods[pod.OrderID]; exists {
		return false, nil
	}
	if pod.ID == uuid.Nil {
		pod.ID = uuid.New()
	}
	r.s.pods[pod.OrderID] = *pod
	return true, nil
}

func (r memDeliveries) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.ProofOfDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pod, ok := r.s.pods[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &pod, nil
}

type memLocations struct{ s *memStore }

func (r memLocations) Create(ctx context.Context, ping *models.DriverLocationPing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ping.ID == uuid.Nil {
		ping.ID = uuid.New()
	}
	r.s.pings = append(r.s.pings, *ping)
	return nil
}

func (r memLocations) Latest(ctx context.Context, driverID string) (*models.DriverLocationPing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.DriverLocationPing
	for i := range r.s.pings {
		p := r.s.pings[i]
		if p.DriverID == driverID && (latest == nil || p.RecordedAt.After(latest.RecordedAt)) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

type memPlans struct{ s *memStore }

func (r memPlans) Create(ctx context.Context, plan *models.RoutePlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.plansErr != nil {
		return r.s.plansErr
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	r.s.plans = append(r.s.plans, *plan)
	return nil
}

func (r memPlans) Latest(ctx context.Context, driverID string, shift models.Date) (*models.RoutePlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.plansErr != nil {
		return nil, r.s.plansErr
	}
	var latest *models.RoutePlan
	for i := range r.s.plans {
		p := r.s.plans[i]
		if p.DriverID == driverID && p.ShiftDate == shift && (latest == nil || !p.CreatedAt.Before(latest.CreatedAt)) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}
