package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/groundx/refillsvc/admission"
	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/provider"
)

var errTransferRejected = errors.New("provider rejected: insufficient signer quorum")

// fakeStore is a hand-rolled TransactionWriter double.
type fakeStore struct {
	rows         map[string]*catalog.RefillTransaction
	insertErr    error
	updateErr    error
	lastPatch    catalog.TransactionPatch
	lastPatchReq string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*catalog.RefillTransaction{}}
}

func (f *fakeStore) InsertTransaction(tx *catalog.RefillTransaction) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, exists := f.rows[tx.RefillRequestID]; exists {
		return catalog.ErrDuplicateRequestID
	}
	f.rows[tx.RefillRequestID] = tx
	return nil
}

func (f *fakeStore) UpdateTransaction(refillRequestID string, patch catalog.TransactionPatch) (int64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.lastPatch = patch
	f.lastPatchReq = refillRequestID
	row, ok := f.rows[refillRequestID]
	if !ok {
		return 0, nil
	}
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.ProviderStatus != nil {
		row.ProviderStatus = *patch.ProviderStatus
	}
	if patch.ProviderTxID != nil {
		row.ProviderTxID = *patch.ProviderTxID
	}
	if patch.Message != nil {
		row.Message = *patch.Message
	}
	return 1, nil
}

func (f *fakeStore) GetTransactionByRequestID(refillRequestID string) (*catalog.RefillTransaction, error) {
	return f.rows[refillRequestID], nil
}

// fakeProvider is a hand-rolled provider.Provider double.
type fakeProvider struct {
	name        string
	transfer    provider.TransferResponse
	transferErr error
}

func (p *fakeProvider) Name() string                 { return p.name }
func (p *fakeProvider) Init(map[string]string) error { return nil }
func (p *fakeProvider) GetTokenBalance(ctx context.Context, token provider.TokenInfo) (string, error) {
	return "0", nil
}
func (p *fakeProvider) CreateTransferRequest(ctx context.Context, req provider.TransferRequest) (provider.TransferResponse, error) {
	return p.transfer, p.transferErr
}
func (p *fakeProvider) GetTransactionByID(ctx context.Context, id string, token provider.TokenInfo) (provider.RawTransaction, error) {
	return provider.RawTransaction{}, nil
}

func baseAccepted(p provider.Provider) *admission.Accepted {
	return &admission.Accepted{
		Chain:              catalog.Chain{ID: 1, Name: "Bitcoin", Symbol: "BTC"},
		Asset:              catalog.Asset{ID: 1, Symbol: "BTC", ContractAddress: catalog.NativeSentinel, SweepWalletConfig: catalog.JSONMap{"provider": provider.Fireblocks}},
		Wallet:             catalog.Wallet{ID: 1, Address: "0xhot"},
		RefillAmountAtomic: decimal.RequireFromString("50000000"),
	}
}

func TestExecuteHappyPath(t *testing.T) {
	store := newFakeStore()
	fb := &fakeProvider{name: provider.Fireblocks, transfer: provider.TransferResponse{ProviderTxID: "ptx-1", RawStatus: "SUBMITTED"}}
	accepted := baseAccepted(fb)
	accepted.Provider = fb
	o := New(store)

	result, err := o.Execute(context.Background(), "REQ001", accepted, "0.5")
	require.Nil(t, err)
	require.Equal(t, "ptx-1", result.ProviderTxID)
	require.Equal(t, catalog.StatusProcessing, result.Status)
	require.Equal(t, provider.Fireblocks, result.Provider)

	row := store.rows["REQ001"]
	require.NotNil(t, row)
	require.Equal(t, catalog.StatusProcessing, row.Status)
	require.Equal(t, "ptx-1", row.ProviderTxID)
}

func TestExecuteDuplicateRequestIDReturnsExisting(t *testing.T) {
	store := newFakeStore()
	store.rows["REQ001"] = &catalog.RefillTransaction{RefillRequestID: "REQ001", Status: catalog.StatusProcessing}
	fb := &fakeProvider{name: provider.Fireblocks}
	accepted := baseAccepted(fb)
	accepted.Provider = fb
	o := New(store)

	_, err := o.Execute(context.Background(), "REQ001", accepted, "0.5")
	require.NotNil(t, err)
	require.Equal(t, "TRANSACTION_EXISTS", string(err.Code))
	require.NotNil(t, err.Data["transaction"])
}

func TestExecuteProviderRejectionMarksFailed(t *testing.T) {
	store := newFakeStore()
	fb := &fakeProvider{name: provider.Fireblocks, transferErr: errTransferRejected}
	accepted := baseAccepted(fb)
	accepted.Provider = fb
	o := New(store)

	_, err := o.Execute(context.Background(), "REQ002", accepted, "0.5")
	require.NotNil(t, err)
	require.Equal(t, "REFILL_INITIATION_ERROR", string(err.Code))

	row := store.rows["REQ002"]
	require.NotNil(t, row)
	require.Equal(t, catalog.StatusFailed, row.Status)
}
