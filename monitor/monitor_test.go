package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/provider"
)

type fakeReconciler struct {
	mu      sync.Mutex
	pending []catalog.RefillTransaction
	patches map[string]catalog.TransactionPatch
}

func newFakeReconciler(rows ...catalog.RefillTransaction) *fakeReconciler {
	return &fakeReconciler{pending: rows, patches: map[string]catalog.TransactionPatch{}}
}

func (f *fakeReconciler) GetTransactionsByStatus(status string) ([]catalog.RefillTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []catalog.RefillTransaction
	for _, r := range f.pending {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReconciler) UpdateTransaction(refillRequestID string, patch catalog.TransactionPatch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches[refillRequestID] = patch
	return 1, nil
}

type fakeProvider struct {
	raw provider.RawTransaction
}

func (p *fakeProvider) Name() string                 { return provider.Fireblocks }
func (p *fakeProvider) Init(map[string]string) error { return nil }
func (p *fakeProvider) GetTokenBalance(ctx context.Context, token provider.TokenInfo) (string, error) {
	return "0", nil
}
func (p *fakeProvider) CreateTransferRequest(ctx context.Context, req provider.TransferRequest) (provider.TransferResponse, error) {
	return provider.TransferResponse{}, nil
}
func (p *fakeProvider) GetTransactionByID(ctx context.Context, id string, token provider.TokenInfo) (provider.RawTransaction, error) {
	return p.raw, nil
}

type fakeRegistry struct {
	byName map[string]provider.Provider
}

func (r *fakeRegistry) Get(name string) (provider.Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func TestRunCyclePersistsStatusTransition(t *testing.T) {
	row := catalog.RefillTransaction{
		RefillRequestID: "REQ001",
		AssetID:         1,
		Asset:           catalog.Asset{ID: 1, Symbol: "BTC", ContractAddress: catalog.NativeSentinel},
		Provider:        provider.Fireblocks,
		Status:          catalog.StatusProcessing,
		ProviderStatus:  "BROADCASTING",
		CreatedAt:       time.Now().Add(-time.Minute),
		UpdatedAt:       time.Now().Add(-time.Minute),
	}
	store := newFakeReconciler(row)
	fb := &fakeProvider{raw: provider.RawTransaction{ProviderTxID: "ptx-1", RawStatus: "COMPLETED", TxHash: "0xabc"}}
	reg := &fakeRegistry{byName: map[string]provider.Provider{provider.Fireblocks: fb}}

	m := New(Config{Interval: time.Hour, AlertThreshold: time.Hour}, store, reg, nil)
	m.shutdownCtx, m.cancel = context.WithCancel(context.Background())
	defer m.cancel()

	m.runCycle()

	patch, ok := store.patches["REQ001"]
	require.True(t, ok)
	require.NotNil(t, patch.Status)
	require.Equal(t, catalog.StatusCompleted, *patch.Status)
}

func TestRunCycleRaisesAlertForStuckTransaction(t *testing.T) {
	row := catalog.RefillTransaction{
		RefillRequestID: "REQ002",
		AssetID:         1,
		Asset:           catalog.Asset{ID: 1, Symbol: "BTC", ContractAddress: catalog.NativeSentinel},
		Provider:        provider.Fireblocks,
		Status:          catalog.StatusProcessing,
		ProviderStatus:  "BROADCASTING",
		CreatedAt:       time.Now().Add(-time.Hour),
		UpdatedAt:       time.Now().Add(-time.Hour),
	}
	store := newFakeReconciler(row)
	fb := &fakeProvider{raw: provider.RawTransaction{ProviderTxID: "ptx-2", RawStatus: "BROADCASTING"}}
	reg := &fakeRegistry{byName: map[string]provider.Provider{provider.Fireblocks: fb}}
	notifier := &fakeNotifier{}

	m := New(Config{Interval: time.Hour, AlertThreshold: time.Minute}, store, reg, notifier)
	m.shutdownCtx, m.cancel = context.WithCancel(context.Background())
	defer m.cancel()

	m.runCycle()

	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0], "REQ002")
}

func TestStartStopIdempotent(t *testing.T) {
	store := newFakeReconciler()
	reg := &fakeRegistry{byName: map[string]provider.Provider{}}
	m := New(Config{Interval: 10 * time.Millisecond, AlertThreshold: time.Hour}, store, reg, nil)

	require.NoError(t, m.Start())
	require.NoError(t, m.Start()) // second call is a no-op
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop()) // second call is a no-op
}
