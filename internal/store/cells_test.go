package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellString(t *testing.T) {
	assert.Equal(t, "1", cellString(1.0))
	assert.Equal(t, "1234567890123", cellString(1234567890123.0))
	assert.Equal(t, "0.5", cellString(0.5))
	assert.Equal(t, "7", cellString(json.Number("7")))
	assert.Equal(t, "B1", cellString("  B1 "))
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "true", cellString(true))
}

func TestEncodeCell(t *testing.T) {
	v, err := encodeCell(Column{Type: Number}, "12.5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	v, err = encodeCell(Column{Type: Bool}, "yes")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("PHT", 8*3600))
	v, err = encodeCell(Column{Type: Timestamp}, ts)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T19:04:05.006Z", v)

	v, err = encodeCell(Column{Type: Date}, "2025-01-02T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", v)

	v, err = encodeCell(Column{Type: JSON}, []any{map[string]any{"name": "Slim"}})
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Slim"}]`, v)

	v, err = encodeCell(Column{Type: Timestamp}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, err = encodeCell(Column{Type: Bool}, "maybe")
	assert.Error(t, err)
	_, err = encodeCell(Column{Type: Number}, true)
	assert.Error(t, err)
}

func TestDecodeCell(t *testing.T) {
	v, err := decodeCell(Column{Type: Text}, "")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = decodeCell(Column{Type: Timestamp}, "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = decodeCell(Column{Type: Text}, 9171234567.0)
	require.NoError(t, err)
	assert.Equal(t, "9171234567", v)

	v, err = decodeCell(Column{Type: JSON}, `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, v)

	_, err = decodeCell(Column{Type: Timestamp}, "not a time")
	assert.Error(t, err)
}

func TestSettingValues(t *testing.T) {
	v, err := encodeSettingValue([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, v)

	v, err = encodeSettingValue(json.Number("25"))
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)

	assert.Equal(t, []any{"a"}, decodeSettingValue(`["a"]`))
	assert.Equal(t, "plain", decodeSettingValue("plain"))
	assert.Equal(t, 3.0, decodeSettingValue(3.0))
}
