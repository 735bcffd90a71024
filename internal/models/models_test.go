package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		kind     ScanKind
		expected OrderStatus
		target   OrderStatus
		advances bool
	}{
		{ScanPickupVerify, StatusAwaitingPickupCustomer, StatusInTransitToFacility, true},
		{ScanFacilityArrival, StatusInTransitToFacility, StatusArrivedAtFacility, true},
		{ScanPreloadVerify, StatusReadyForDelivery, "", false},
		{ScanDeliveryVerify, StatusInTransitToCustomer, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			tr, ok := TransitionFor(tt.kind)
			require.True(t, ok)
			assert.Equal(t, tt.expected, tr.Expected)
			assert.Equal(t, tt.target, tr.Target)
			assert.Equal(t, tt.advances, tr.AdvancesStatus())
		})
	}

	_, ok := TransitionFor("teleport")
	assert.False(t, ok)
}

func TestDateScan(t *testing.T) {
	var d Date

	require.NoError(t, d.Scan(time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, Date("2026-10-19"), d)

	require.NoError(t, d.Scan([]byte("2026-10-20")))
	assert.Equal(t, Date("2026-10-20"), d)

	require.NoError(t, d.Scan("2026-10-21"))
	assert.Equal(t, Date("2026-10-21"), d)

	require.NoError(t, d.Scan(nil))
	assert.Equal(t, Date(""), d)

	assert.Error(t, d.Scan(42))

	v, err := Date("2026-10-19").Value()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", v)
}

func TestDateOf_UsesLocation(t *testing.T) {
	amsterdam := time.FixedZone("CEST", 2*60*60)

	late := time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, Date("2026-10-19"), DateOf(late, time.UTC))
	assert.Equal(t, Date("2026-10-20"), DateOf(late, amsterdam))
}

func TestScanMetadata_JSONColumn(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	in := ScanMetadata{Code: "EZ-001", ClientTimestamp: &at, ClientTimestampRaw: "1792396800", Duplicate: true, Source: "driver_app"}

	value, err := in.Value()
	require.NoError(t, err)

	var fromBytes ScanMetadata
	require.NoError(t, fromBytes.Scan(value))
	assert.Equal(t, in.Code, fromBytes.Code)
	assert.True(t, fromBytes.Duplicate)
	assert.Equal(t, "1792396800", fromBytes.ClientTimestampRaw)

	var fromString ScanMetadata
	require.NoError(t, fromString.Scan(`{"code":"EZ-002"}`))
	assert.Equal(t, "EZ-002", fromString.Code)

	var empty ScanMetadata
	require.NoError(t, empty.Scan(nil))
	require.NoError(t, empty.Scan([]byte{}))
	assert.Equal(t, ScanMetadata{}, empty)

	assert.Error(t, empty.Scan(12))
	assert.Error(t, empty.Scan([]byte("{not json")))
}

func TestStops_JSONColumn(t *testing.T) {
	stops := Stops{{StopID: "s1", OrderID: uuid.New(), Type: StopCustomerPickup, Sequence: 1}}

	value, err := stops.Value()
	require.NoError(t, err)

	var out Stops
	require.NoError(t, out.Scan(value))
	require.Len(t, out, 1)
	assert.Equal(t, stops[0].OrderID, out[0].OrderID)
}

func TestParseClientTimestamp(t *testing.T) {
	seconds := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    *time.Time
		wantRaw string
	}{
		{"absent", ``, nil, ""},
		{"null", `null`, nil, ""},
		{"rfc3339", `"2026-10-19T08:00:00Z"`, &seconds, "2026-10-19T08:00:00Z"},
		{"epoch seconds", `1792396800`, &seconds, "1792396800"},
		{"epoch millis", `1792396800000`, &seconds, "1792396800000"},
		{"numeric string", `"1792396800"`, &seconds, "1792396800"},
		{"space separated", `"2026-10-19 08:00"`, &seconds, "2026-10-19 08:00"},
		{"free text", `"after lunch"`, nil, "after lunch"},
		{"object", `{"t":1}`, nil, `{"t":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, raw := ParseClientTimestamp(json.RawMessage(tt.raw))

			assert.Equal(t, tt.wantRaw, raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}
