package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONMapValueRoundTrip(t *testing.T) {
	m := JSONMap{"provider": "fireblocks", "vault_account_id": "12"}

	v, err := m.Value()
	require.NoError(t, err)
	raw, ok := v.(string)
	require.True(t, ok)

	var out JSONMap
	require.NoError(t, out.Scan([]byte(raw)))
	require.Equal(t, "fireblocks", out["provider"])
	require.Equal(t, "12", out["vault_account_id"])
}

func TestJSONMapValueNil(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	require.NoError(t, err)
	require.Equal(t, "{}", v)
}

func TestJSONMapScanNilSource(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	require.NotNil(t, m)
	require.Empty(t, m)
}

func TestJSONMapScanStringSource(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(`{"status":"SUBMITTED"}`))
	require.Equal(t, "SUBMITTED", m["status"])
}

func TestJSONMapScanEmptyBytes(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte{}))
	require.Empty(t, m)
}

func TestJSONMapScanUnsupportedType(t *testing.T) {
	var m JSONMap
	err := m.Scan(42)
	require.Error(t, err)
}
