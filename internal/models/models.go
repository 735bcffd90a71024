package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OrderStatus is the fulfillment status of an order
type OrderStatus string

const (
	StatusPending                OrderStatus = "pending"
	StatusConfirmed              OrderStatus = "confirmed"
	StatusAwaitingPickupCustomer OrderStatus = "awaiting_pickup_customer"
	StatusInTransitToFacility    OrderStatus = "in_transit_to_facility"
	StatusArrivedAtFacility      OrderStatus = "arrived_at_facility"
	StatusProcessing             OrderStatus = "processing"
	StatusReadyForDelivery       OrderStatus = "ready_for_delivery"
	StatusInTransitToCustomer    OrderStatus = "in_transit_to_customer"
	StatusDelivered              OrderStatus = "delivered"
	StatusCancelled              OrderStatus = "cancelled"
)

// ScanKind identifies the checkpoint a barcode scan was taken at
type ScanKind string

const (
	ScanPickupVerify    ScanKind = "pickup_verify"
	ScanFacilityArrival ScanKind = "facility_arrival"
	ScanPreloadVerify   ScanKind = "preload_verify"
	ScanDeliveryVerify  ScanKind = "delivery_verify"
)

// Transition is one row of the scan transition table. Target is empty for
// validation-only scans.
type Transition struct {
	Expected OrderStatus
	Target   OrderStatus
}

var transitions = map[ScanKind]Transition{
	ScanPickupVerify:    {Expected: StatusAwaitingPickupCustomer, Target: StatusInTransitToFacility},
	ScanFacilityArrival: {Expected: StatusInTransitToFacility, Target: StatusArrivedAtFacility},
	ScanPreloadVerify:   {Expected: StatusReadyForDelivery},
	ScanDeliveryVerify:  {Expected: StatusInTransitToCustomer},
}

// TransitionFor returns the transition for a scan kind
func TransitionFor(kind ScanKind) (Transition, bool) {
	t, ok := transitions[kind]
	return t, ok
}

// AdvancesStatus reports whether an accepted scan moves the order forward
func (t Transition) AdvancesStatus() bool {
	return t.Target != ""
}

// AssignmentRole is the leg a driver is assigned to for an order
type AssignmentRole string

const (
	RolePickup  AssignmentRole = "pickup"
	RoleDropoff AssignmentRole = "dropoff"
)

// StopType is the kind of visit a route stop represents
type StopType string

const (
	StopCustomerPickup  StopType = "customer_pickup"
	StopCustomerDropoff StopType = "customer_dropoff"
)

// StopTypeForRole maps an assignment role onto a stop type
func StopTypeForRole(role AssignmentRole) StopType {
	if role == RoleDropoff {
		return StopCustomerDropoff
	}
	return StopCustomerPickup
}

// Order is a customer laundry order
type Order struct {
	ID                 uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OrderNumber        string      `json:"order_number" gorm:"column:order_number;uniqueIndex"`
	Status             OrderStatus `json:"status" gorm:"column:status;index"`
	PickupDate         *time.Time  `json:"pickup_date,omitempty" gorm:"column:pickup_date"`
	DeliveryDate       *time.Time  `json:"delivery_date,omitempty" gorm:"column:delivery_date"`
	ShippingAddress    string      `json:"shipping_address" gorm:"column:shipping_address"`
	ShippingCity       string      `json:"shipping_city" gorm:"column:shipping_city"`
	ShippingPostalCode string      `json:"shipping_postal_code" gorm:"column:shipping_postal_code"`
	ShippingLat        *float64    `json:"shipping_lat,omitempty" gorm:"column:shipping_lat"`
	ShippingLng        *float64    `json:"shipping_lng,omitempty" gorm:"column:shipping_lng"`
	CreatedAt          time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// FormattedAddress joins the non-empty shipping address parts
func (o *Order) FormattedAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{o.ShippingAddress, o.ShippingPostalCode, o.ShippingCity} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Coordinates returns the stored shipping coordinates or a (0,0) placeholder
func (o *Order) Coordinates() (float64, float64) {
	if o.ShippingLat == nil || o.ShippingLng == nil {
		return 0, 0
	}
	return *o.ShippingLat, *o.ShippingLng
}

// DriverAssignment binds a driver to an order leg for one shift date
type DriverAssignment struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	DriverID  string         `json:"driver_id" gorm:"column:driver_id;uniqueIndex:idx_assignment_unique"`
	OrderID   uuid.UUID      `json:"order_id" gorm:"column:order_id;type:uuid;uniqueIndex:idx_assignment_unique"`
	ShiftDate Date           `json:"shift_date" gorm:"column:shift_date;type:date;uniqueIndex:idx_assignment_unique"`
	Role      AssignmentRole `json:"role" gorm:"column:role;uniqueIndex:idx_assignment_unique"`
	Sequence  int            `json:"sequence" gorm:"column:sequence"`
	CreatedAt time.Time      `json:"created_at"`
}

// ScanMetadata is stored alongside a scan event
type ScanMetadata struct {
	Code            string     `json:"code"`
	ClientTimestamp *time.Time `json:"client_timestamp,omitempty"`
	// ClientTimestampRaw is the timestamp exactly as the device sent it
	ClientTimestampRaw string `json:"client_timestamp_raw,omitempty"`
	Duplicate          bool   `json:"duplicate,omitempty"`
	Source             string `json:"source,omitempty"`
}

var clientTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseClientTimestamp reads a device supplied timestamp. The raw value is
// always returned; the parsed time is nil when the format is not recognized.
// Numbers are epoch seconds, or epoch milliseconds above 1e12.
func ParseClientTimestamp(raw json.RawMessage) (*time.Time, string) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, ""
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		text = strings.TrimSpace(str)
		if text == "" {
			return nil, ""
		}
	}

	if n, err := strconv.ParseFloat(text, 64); err == nil {
		var t time.Time
		if n > 1e12 {
			t = time.UnixMilli(int64(n)).UTC()
		} else {
			t = time.Unix(int64(n), 0).UTC()
		}
		return &t, text
	}

	for _, layout := range clientTimestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t, text
		}
	}
	return nil, text
}

// Value implements driver.Valuer
func (m ScanMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *ScanMetadata) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// ScanEvent is an append-only record of an accepted scan
type ScanEvent struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID    `json:"order_id" gorm:"column:order_id;type:uuid;index:idx_scan_order_type"`
	DriverID  *string      `json:"driver_id,omitempty" gorm:"column:driver_id"`
	Type      ScanKind     `json:"type" gorm:"column:type;index:idx_scan_order_type"`
	Success   bool         `json:"success" gorm:"column:success"`
	Metadata  ScanMetadata `json:"metadata" gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time    `json:"created_at" gorm:"index"`
}

// ProofOfDelivery records the delivery evidence for an order
type ProofOfDelivery struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID `json:"order_id" gorm:"column:order_id;type:uuid;uniqueIndex"`
	DriverID     *string   `json:"driver_id,omitempty" gorm:"column:driver_id"`
	PhotoURL     *string   `json:"photo_url,omitempty" gorm:"column:photo_url"`
	SignatureURL *string   `json:"signature_url,omitempty" gorm:"column:signature_url"`
	Note         *string   `json:"note,omitempty" gorm:"column:note"`
	DeliveredAt  time.Time `json:"delivered_at" gorm:"column:delivered_at"`
}

// TableName overrides the default pluralization
func (ProofOfDelivery) TableName() string {
	return "proofs_of_delivery"
}

// DriverLocationPing is a single GPS sample from a driver device
type DriverLocationPing struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DriverID   string    `json:"driver_id" gorm:"column:driver_id;index:idx_ping_driver_time"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	RecordedAt time.Time `json:"recorded_at" gorm:"column:recorded_at;index:idx_ping_driver_time"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stop is one visit in a driver route
type Stop struct {
	StopID   string    `json:"stop_id"`
	OrderID  uuid.UUID `json:"order_id"`
	Type     StopType  `json:"type"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Address  string    `json:"address"`
	Sequence int       `json:"sequence"`
}

// Stops is the jsonb column type for a list of stops
type Stops []Stop

// Value implements driver.Valuer
func (s Stops) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *Stops) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// RoutePlan is a persisted driver route for one shift date
type RoutePlan struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DriverID  string    `json:"driver_id" gorm:"column:driver_id;index:idx_plan_driver_shift"`
	ShiftDate Date      `json:"shift_date" gorm:"column:shift_date;type:date;index:idx_plan_driver_shift"`
	Polyline  *string   `json:"polyline,omitempty" gorm:"column:polyline"`
	Stops     Stops     `json:"stops" gorm:"column:stops;type:jsonb"`
	Degraded  bool      `json:"degraded" gorm:"column:degraded"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// Date is a calendar date in YYYY-MM-DD form
type Date string

// DateLayout is the wire and storage layout of Date
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in loc
func DateOf(t time.Time, loc *time.Location) Date {
	return Date(t.In(loc).Format(DateLayout))
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = Date(v.Format(DateLayout))
	case []byte:
		*d = Date(v)
	case string:
		*d = Date(v)
	default:
		return fmt.Errorf("unsupported date source type %T", value)
	}
	return nil
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, dest), "failed to decode jsonb column")
}
