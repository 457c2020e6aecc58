package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONMap_ValueScanRoundTrip(t *testing.T) {
	m := JSONMap{"foo": "bar", "count": float64(3)}

	value, err := m.Value()
	require.NoError(t, err)

	var scanned JSONMap
	require.NoError(t, scanned.Scan(value))
	require.Equal(t, m, scanned)
}

func TestJSONMap_ValueNil(t *testing.T) {
	var m JSONMap
	value, err := m.Value()
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestJSONMap_ScanNil(t *testing.T) {
	m := JSONMap{"a": 1}
	require.NoError(t, m.Scan(nil))
	require.Nil(t, m)
}

func TestJSONMap_ScanString(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(`{"x":1}`))
	require.Equal(t, float64(1), m["x"])
}

func TestJSONMap_ScanUnsupportedType(t *testing.T) {
	var m JSONMap
	err := m.Scan(42)
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestJSONMap_ScanEmptyBytes(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte{}))
	require.Nil(t, m)
}
