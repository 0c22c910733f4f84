package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groundx/refillsvc/admission"
	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/envelope"
	"github.com/groundx/refillsvc/health"
	"github.com/groundx/refillsvc/orchestrator"
	"github.com/groundx/refillsvc/provider"
	"github.com/groundx/refillsvc/query"
)

// fakeStore satisfies every narrow store interface the wired components
// need (admission.CatalogReader, orchestrator.TransactionWriter,
// query.TransactionReader, health.Pinger) with a single in-memory double.
type fakeStore struct {
	chain   *catalog.Chain
	asset   *catalog.Asset
	wallet  *catalog.Wallet
	rows    map[string]*catalog.RefillTransaction
	pingErr error
}

func (f *fakeStore) GetChainByName(name string) (*catalog.Chain, error) { return f.chain, nil }
func (f *fakeStore) GetAssetBySymbolAndChain(symbol string, chainID int64) (*catalog.Asset, error) {
	return f.asset, nil
}
func (f *fakeStore) GetWalletByAddress(address string) (*catalog.Wallet, error) { return f.wallet, nil }
func (f *fakeStore) GetPendingTransactionByAssetID(assetID int64) (*catalog.RefillTransaction, error) {
	return nil, nil
}
func (f *fakeStore) GetLastSuccessfulRefillByAssetID(assetID int64) (*catalog.RefillTransaction, error) {
	return nil, nil
}
func (f *fakeStore) InsertTransaction(tx *catalog.RefillTransaction) error {
	if _, exists := f.rows[tx.RefillRequestID]; exists {
		return catalog.ErrDuplicateRequestID
	}
	f.rows[tx.RefillRequestID] = tx
	return nil
}
func (f *fakeStore) UpdateTransaction(refillRequestID string, patch catalog.TransactionPatch) (int64, error) {
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
	return 1, nil
}
func (f *fakeStore) GetTransactionByRequestID(refillRequestID string) (*catalog.RefillTransaction, error) {
	return f.rows[refillRequestID], nil
}
func (f *fakeStore) Ping() error { return f.pingErr }

type fakeProvider struct{}

func (fakeProvider) Name() string                 { return provider.Fireblocks }
func (fakeProvider) Init(map[string]string) error { return nil }
func (fakeProvider) GetTokenBalance(ctx context.Context, token provider.TokenInfo) (string, error) {
	return "100000000", nil
}
func (fakeProvider) CreateTransferRequest(ctx context.Context, req provider.TransferRequest) (provider.TransferResponse, error) {
	return provider.TransferResponse{ProviderTxID: "ptx-1", RawStatus: "SUBMITTED"}, nil
}
func (fakeProvider) GetTransactionByID(ctx context.Context, id string, token provider.TokenInfo) (provider.RawTransaction, error) {
	return provider.RawTransaction{}, nil
}

type fakeRegistry struct{}

func (fakeRegistry) Get(name string) (provider.Provider, bool) { return fakeProvider{}, true }

func newTestServer() (*Server, *fakeStore) {
	store := &fakeStore{
		chain:  &catalog.Chain{ID: 1, Name: "Bitcoin", Symbol: "BTC", IsActive: true},
		wallet: &catalog.Wallet{ID: 1, Address: "0xhot", WalletType: catalog.WalletTypeHot},
		rows:   map[string]*catalog.RefillTransaction{},
	}
	store.asset = &catalog.Asset{
		ID:                           1,
		Symbol:                       "BTC",
		ChainID:                      1,
		Chain:                        *store.chain,
		ContractAddress:              catalog.NativeSentinel,
		Decimals:                     8,
		WalletID:                     1,
		Wallet:                       *store.wallet,
		RefillSweepWallet:            "0xcold",
		SweepWalletConfig:            catalog.JSONMap{"provider": provider.Fireblocks, provider.Fireblocks: map[string]interface{}{"vault_account_id": "cold-1"}},
		HotWalletConfig:              catalog.JSONMap{},
		RefillTargetBalanceAtomic:    "200000000",
		RefillTriggerThresholdAtomic: "150000000",
		IsActive:                     true,
	}

	env := envelope.New(false, nil, nil, time.Minute)
	adm := admission.New(store, fakeRegistry{})
	orch := orchestrator.New(store)
	q := query.New(store)
	h := health.New(store, "test")

	return New(":0", env, adm, orch, q, h), store
}

func TestHandleHealthOK(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	s.router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
}

func TestHandleRefillHappyPath(t *testing.T) {
	s, store := newTestServer()
	intent := map[string]string{
		"refill_request_id":   "REQ001",
		"wallet_address":      "0xhot",
		"asset_symbol":        "BTC",
		"asset_address":       "native",
		"chain_name":          "Bitcoin",
		"refill_amount":       "0.5",
		"refill_sweep_wallet": "0xcold",
	}
	payload, _ := json.Marshal(intent)
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/refill", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	s.router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
	require.Contains(t, store.rows, "REQ001")
}

func TestHandleRefillMissingFields(t *testing.T) {
	s, _ := newTestServer()
	payload, _ := json.Marshal(map[string]string{"refill_request_id": "REQ002"})
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/refill", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	s.router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "MISSING_FIELDS", body.Code)
}

func TestHandleRefillStatusNotFound(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/wallet/refill/status/REQ-MISSING", nil)
	w := httptest.NewRecorder()

	s.router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "TRANSACTION_NOT_FOUND", body.Code)
}
