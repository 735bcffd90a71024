package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Code string   `json:"code" validate:"required"`
	Kind string   `json:"kind" validate:"scan_kind"`
	Lat  *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
}

func TestValidateStruct(t *testing.T) {
	lat := 52.3

	require.NoError(t, ValidateStruct(sample{Code: "EZ-1", Kind: "pickup_verify", Lat: &lat}))
	require.NoError(t, ValidateStruct(sample{Code: "EZ-1"}))

	err := ValidateStruct(sample{})
	require.Error(t, err)
	assert.Equal(t, "code is required", ValidationMessage(err))
	assert.False(t, IsUnknownScanKind(err))

	err = ValidateStruct(sample{Code: "EZ-1", Kind: "teleport"})
	require.Error(t, err)
	assert.True(t, IsUnknownScanKind(err))
	assert.Equal(t, "unknown scan kind: teleport", ValidationMessage(err))

	bad := 95.0
	err = ValidateStruct(sample{Code: "EZ-1", Lat: &bad})
	assert.Equal(t, "lat is out of range", ValidationMessage(err))
}
