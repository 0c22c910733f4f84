package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groundx/refillsvc/catalog"
)

type fakeReader struct {
	row *catalog.RefillTransaction
	err error
}

func (f *fakeReader) GetTransactionByRequestID(refillRequestID string) (*catalog.RefillTransaction, error) {
	return f.row, f.err
}

func TestGetRefillStatusFound(t *testing.T) {
	row := &catalog.RefillTransaction{
		RefillRequestID: "REQ001",
		Status:          catalog.StatusProcessing,
		ProviderStatus:  "BROADCASTING",
		Provider:        "fireblocks",
		ProviderTxID:    "ptx-1",
		TxHash:          "0xabc",
		Amount:          "0.5",
		AmountAtomic:    "50000000",
		ChainName:       "Bitcoin",
		TokenSymbol:     "BTC",
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
	}
	s := New(&fakeReader{row: row})

	status, err := s.GetRefillStatus("REQ001")
	require.Nil(t, err)
	require.Equal(t, "REQ001", status.RefillRequestID)
	require.Equal(t, catalog.StatusProcessing, status.Status)
	require.Equal(t, "ptx-1", status.ProviderTxID)
	require.Equal(t, "2026-01-01T00:00:00Z", status.CreatedAt)
}

func TestGetRefillStatusNotFound(t *testing.T) {
	s := New(&fakeReader{row: nil})

	_, err := s.GetRefillStatus("REQ999")
	require.NotNil(t, err)
	require.Equal(t, "TRANSACTION_NOT_FOUND", string(err.Code))
}

func TestGetRefillStatusStoreError(t *testing.T) {
	s := New(&fakeReader{err: assertErr{}})

	_, err := s.GetRefillStatus("REQ001")
	require.NotNil(t, err)
	require.Equal(t, "INTERNAL_ERROR", string(err.Code))
}

type assertErr struct{}

func (assertErr) Error() string { return "db unavailable" }
