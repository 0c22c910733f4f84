// Package monitor is the reconciliation loop (C7): a periodic task that
// polls every non-terminal refill transaction against its provider, folds
// the result through the status mapper, persists only what changed, and
// raises one grouped alert per cycle for transfers that have dwelled too
// long. Grounded on the ticker+bounded-concurrency reconciler pattern used
// for stuck-deposit recovery in adjacent custody codebases.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/provider"
	"github.com/groundx/refillsvc/statusmap"
)

var logger = log.NewModuleLogger(log.Monitor)

// Notifier is the alert sink named in §4.7/§7: a single notify(message)
// collaborator, e.g. a Slack webhook. nil disables alerting.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Config carries the monitor's tunables, all sourced from §6.4.
type Config struct {
	Interval       time.Duration
	AlertThreshold time.Duration
	MaxConcurrency int
}

// DefaultMaxConcurrency bounds per-cycle provider polls when Config doesn't
// set one explicitly.
const DefaultMaxConcurrency = 10

// TransactionReconciler is the slice of catalog.Store the monitor reads and
// writes through, kept narrow so tests can supply a hand-rolled fake.
type TransactionReconciler interface {
	GetTransactionsByStatus(status string) ([]catalog.RefillTransaction, error)
	UpdateTransaction(refillRequestID string, patch catalog.TransactionPatch) (int64, error)
}

// ProviderResolver looks up a configured provider client by name.
type ProviderResolver interface {
	Get(name string) (provider.Provider, bool)
}

// Monitor is the reconciliation loop itself. It satisfies node.Lifecycle so
// it can be registered into the process's service container.
type Monitor struct {
	cfg      Config
	store    TransactionReconciler
	registry ProviderResolver
	notifier Notifier

	runs     prometheus.Counter
	changed  prometheus.Counter
	failures prometheus.Counter
	duration prometheus.Histogram

	running     atomic.Bool
	shutdownCtx context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New builds a Monitor. notifier may be nil (alerts are then skipped).
func New(cfg Config, store TransactionReconciler, registry ProviderResolver, notifier Notifier) *Monitor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Monitor{
		cfg:      cfg,
		store:    store,
		registry: registry,
		notifier: notifier,
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refillsvc_monitor_runs_total",
			Help: "Total number of reconciliation cycles run.",
		}),
		changed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refillsvc_monitor_transactions_changed_total",
			Help: "Total number of transactions whose persisted row changed during reconciliation.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refillsvc_monitor_poll_failures_total",
			Help: "Total number of provider polls that failed during reconciliation.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "refillsvc_monitor_cycle_duration_seconds",
			Help: "Duration of each reconciliation cycle.",
		}),
	}
}

// Collectors exposes the monitor's metrics for registration with a
// prometheus.Registerer.
func (m *Monitor) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.changed, m.failures, m.duration}
}

func (m *Monitor) Name() string { return "monitor" }

// Start is idempotent (§4.7: "start(interval) is idempotent; second call is
// a no-op") and runs the first cycle immediately.
func (m *Monitor) Start() error {
	if !m.running.CAS(false, true) {
		return nil
	}
	m.shutdownCtx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop cancels the scheduler and waits briefly for in-flight work to drain
// (§4.7: "stop() cancels the scheduler; outstanding per-cycle work should
// be awaited briefly before shutdown").
func (m *Monitor) Stop() error {
	if !m.running.CAS(true, false) {
		return nil
	}
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("monitor shutdown timed out waiting for in-flight cycle")
	}
	return nil
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.runCycle()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.shutdownCtx.Done():
			return
		case <-ticker.C:
			m.runCycle()
		}
	}
}

func (m *Monitor) runCycle() {
	start := time.Now()
	m.runs.Inc()

	rows, err := m.fetchNonTerminal()
	if err != nil {
		logger.Error("failed to fetch non-terminal transactions", "err", err)
		m.duration.Observe(time.Since(start).Seconds())
		return
	}
	if len(rows) == 0 {
		m.duration.Observe(time.Since(start).Seconds())
		return
	}

	logger.Info("reconciliation cycle starting", "transaction_count", len(rows))

	var (
		wg    sync.WaitGroup
		sem   = make(chan struct{}, m.cfg.MaxConcurrency)
		mu    sync.Mutex
		stuck []string
	)

	for i := range rows {
		row := rows[i]
		updatedAtBefore := row.UpdatedAt
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-m.shutdownCtx.Done():
				return
			}

			changed := m.reconcileOne(&row)
			if changed {
				m.changed.Inc()
			}

			if !catalog.IsTerminal(row.Status) {
				dwell := time.Since(updatedAtBefore)
				if dwell >= m.cfg.AlertThreshold {
					mu.Lock()
					stuck = append(stuck, fmt.Sprintf("%s (asset=%s, dwell=%s)", row.RefillRequestID, row.TokenSymbol, dwell.Round(time.Second)))
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if len(stuck) > 0 && m.notifier != nil {
		msg := fmt.Sprintf("%d refill transaction(s) have exceeded the pending-alert threshold:\n%s", len(stuck), joinLines(stuck))
		if err := m.notifier.Notify(m.shutdownCtx, msg); err != nil {
			logger.Error("failed to send stuck-transaction alert", "err", err)
		}
	}

	m.duration.Observe(time.Since(start).Seconds())
	logger.Info("reconciliation cycle complete", "transaction_count", len(rows), "stuck_count", len(stuck))
}

func (m *Monitor) fetchNonTerminal() ([]catalog.RefillTransaction, error) {
	pending, err := m.store.GetTransactionsByStatus(catalog.StatusPending)
	if err != nil {
		return nil, err
	}
	processing, err := m.store.GetTransactionsByStatus(catalog.StatusProcessing)
	if err != nil {
		return nil, err
	}
	rows := append(pending, processing...)
	// Both slices individually come back oldest-first; a stable insertion
	// sort by created_at keeps that property across the union (§4.7 step 1).
	sortByCreatedAt(rows)
	return rows, nil
}

// reconcileOne polls one transaction's provider, diffs, and persists if
// changed. A failure here is isolated: it is logged and retried next cycle
// (§4.7: "Failure isolation. A provider call that raises MUST NOT abort the
// cycle for other transactions").
func (m *Monitor) reconcileOne(row *catalog.RefillTransaction) bool {
	if row.Asset.ID == 0 {
		logger.Error("transaction references a missing asset, skipping", "refill_request_id", row.RefillRequestID)
		m.failures.Inc()
		return false
	}

	client, ok := m.registry.Get(row.Provider)
	if !ok {
		logger.Error("no provider client configured for transaction's provider", "refill_request_id", row.RefillRequestID, "provider", row.Provider)
		m.failures.Inc()
		return false
	}

	token := tokenInfoFromAsset(row.Asset)
	ctx, cancel := context.WithTimeout(m.shutdownCtx, 30*time.Second)
	defer cancel()

	raw, err := client.GetTransactionByID(ctx, row.ProviderTxID, token)
	if err != nil {
		logger.Warn("provider poll failed, deferring to next cycle", "refill_request_id", row.RefillRequestID, "err", err)
		m.failures.Inc()
		return false
	}

	snap := statusmap.Extract(raw)
	patch := statusmap.Diff(row, row.Provider, snap)
	if !patch.HasChanges {
		return false
	}

	catalogPatch := catalog.TransactionPatch{
		Status:         patch.Status,
		ProviderStatus: patch.ProviderStatus,
		TxHash:         patch.TxHash,
		Message:        patch.Message,
	}
	if patch.ProviderData != nil {
		catalogPatch.ProviderData = catalog.JSONMap(patch.ProviderData)
	}

	if _, err := m.store.UpdateTransaction(row.RefillRequestID, catalogPatch); err != nil {
		logger.Error("failed to persist reconciliation patch", "refill_request_id", row.RefillRequestID, "err", err)
		m.failures.Inc()
		return false
	}

	if patch.Status != nil {
		row.Status = *patch.Status
	}
	return true
}

func tokenInfoFromAsset(asset catalog.Asset) provider.TokenInfo {
	contractAddress := ""
	if asset.ContractAddress != catalog.NativeSentinel {
		contractAddress = asset.ContractAddress
	}
	return provider.TokenInfo{
		Symbol:          asset.Symbol,
		ChainSymbol:     asset.Chain.Symbol,
		ContractAddress: contractAddress,
		Decimals:        asset.Decimals,
		WalletConfig:    asset.HotWalletConfig,
	}
}

func sortByCreatedAt(rows []catalog.RefillTransaction) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && rows[j-1].CreatedAt.After(rows[j].CreatedAt) {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += "- " + l
	}
	return out
}
