// Package orchestrator is the refill execution step (C5): given an accepted
// admission result, it persists a PENDING row, hands the transfer to the
// resolved provider, and folds the provider's acceptance response back into
// the row.
package orchestrator

import (
	"context"

	"github.com/groundx/refillsvc/admission"
	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/provider"
	"github.com/groundx/refillsvc/refillerr"
	"github.com/groundx/refillsvc/statusmap"
)

var logger = log.NewModuleLogger(log.Orchestrator)

// Result is what the orchestrator returns to the caller (§4.5: "The
// orchestrator returns {refill_request_id, provider_tx_id, status,
// provider}").
type Result struct {
	RefillRequestID string `json:"refill_request_id"`
	ProviderTxID    string `json:"provider_tx_id"`
	Status          string `json:"status"`
	Provider        string `json:"provider"`
}

// TransactionWriter is the slice of catalog.Store the orchestrator writes
// through, kept narrow so tests can supply a hand-rolled fake.
type TransactionWriter interface {
	InsertTransaction(tx *catalog.RefillTransaction) error
	UpdateTransaction(refillRequestID string, patch catalog.TransactionPatch) (int64, error)
	GetTransactionByRequestID(refillRequestID string) (*catalog.RefillTransaction, error)
}

type Orchestrator struct {
	Store TransactionWriter
}

func New(store TransactionWriter) *Orchestrator {
	return &Orchestrator{Store: store}
}

// Execute runs §4.5 steps 1-4 against an intent already accepted by C4.
func (o *Orchestrator) Execute(ctx context.Context, intentRefillRequestID string, accepted *admission.Accepted, refillAmountDecimal string) (*Result, *refillerr.Error) {
	providerName := accepted.Asset.Provider()

	row := &catalog.RefillTransaction{
		RefillRequestID: intentRefillRequestID,
		AssetID:         accepted.Asset.ID,
		Provider:        providerName,
		AmountAtomic:    accepted.RefillAmountAtomic.String(),
		Amount:          refillAmountDecimal,
		ChainName:       accepted.Chain.Name,
		TokenSymbol:     accepted.Asset.Symbol,
		Status:          catalog.StatusPending,
	}

	if err := o.Store.InsertTransaction(row); err != nil {
		if err == catalog.ErrDuplicateRequestID {
			existing, getErr := o.Store.GetTransactionByRequestID(intentRefillRequestID)
			if getErr != nil {
				return nil, refillerr.Internal(getErr)
			}
			return nil, refillerr.WithData(refillerr.CodeTransactionExists, "a transaction with this refill_request_id already exists",
				map[string]interface{}{"transaction": existing})
		}
		return nil, refillerr.New(refillerr.CodeTransactionCreationErr, "failed to create the refill transaction row: "+err.Error())
	}

	transferReq := provider.TransferRequest{
		ColdWalletConfig: accepted.Asset.SweepWalletConfig,
		HotWalletAddress: accepted.Wallet.Address,
		AmountDecimal:    refillAmountDecimal,
		AssetSymbol:      accepted.Asset.Symbol,
		ChainSymbol:      accepted.Chain.Symbol,
		ExternalTxID:     intentRefillRequestID,
	}
	if accepted.Asset.ContractAddress != catalog.NativeSentinel {
		transferReq.ContractAddress = accepted.Asset.ContractAddress
	}

	resp, err := accepted.Provider.CreateTransferRequest(ctx, transferReq)
	if err != nil {
		failed := catalog.StatusFailed
		msg := err.Error()
		if _, updErr := o.Store.UpdateTransaction(intentRefillRequestID, catalog.TransactionPatch{
			Status:  &failed,
			Message: &msg,
		}); updErr != nil {
			logger.Error("failed to persist FAILED status after refill initiation error", "refill_request_id", intentRefillRequestID, "err", updErr)
		}
		return nil, refillerr.New(refillerr.CodeRefillInitiationErr, "provider rejected the transfer request: "+msg)
	}

	snap := statusmap.FromTransferResponse(resp)
	internalStatus := statusmap.MapStatus(providerName, snap.RawStatus)

	patch := catalog.TransactionPatch{
		Status:         &internalStatus,
		ProviderStatus: &snap.RawStatus,
		ProviderTxID:   &resp.ProviderTxID,
	}
	if snap.Message != "" {
		patch.Message = &snap.Message
	}
	if snap.RawResponse != nil {
		patch.ProviderData = catalog.JSONMap(snap.RawResponse)
	}
	if _, err := o.Store.UpdateTransaction(intentRefillRequestID, patch); err != nil {
		return nil, refillerr.New(refillerr.CodeTransactionUpdateErr, "failed to persist provider acceptance: "+err.Error())
	}

	return &Result{
		RefillRequestID: intentRefillRequestID,
		ProviderTxID:    resp.ProviderTxID,
		Status:          internalStatus,
		Provider:        providerName,
	}, nil
}
