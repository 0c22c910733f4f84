// Package query is the read-only status surface (C8): a pure persistence
// read that never calls a provider — the reconciliation monitor is the
// single writer of provider-sourced fields.
package query

import (
	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/refillerr"
)

var logger = log.NewModuleLogger(log.Query)

// Status is the persisted row fields returned verbatim (§4.8).
type Status struct {
	RefillRequestID string `json:"refill_request_id"`
	Status          string `json:"status"`
	ProviderStatus  string `json:"provider_status"`
	Provider        string `json:"provider"`
	ProviderTxID    string `json:"provider_tx_id"`
	TxHash          string `json:"tx_hash"`
	Message         string `json:"message"`
	Amount          string `json:"amount"`
	AmountAtomic    string `json:"amount_atomic"`
	ChainName       string `json:"chain_name"`
	TokenSymbol     string `json:"token_symbol"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// TransactionReader is the slice of catalog.Store the query surface reads
// through, kept narrow so tests can supply a hand-rolled fake.
type TransactionReader interface {
	GetTransactionByRequestID(refillRequestID string) (*catalog.RefillTransaction, error)
}

type Surface struct {
	Store TransactionReader
}

func New(store TransactionReader) *Surface {
	return &Surface{Store: store}
}

// GetRefillStatus returns the status row for a refill_request_id, or
// CodeTransactionNotFound if no such row exists (§4.8).
func (s *Surface) GetRefillStatus(refillRequestID string) (*Status, *refillerr.Error) {
	row, err := s.Store.GetTransactionByRequestID(refillRequestID)
	if err != nil {
		return nil, refillerr.Internal(err)
	}
	if row == nil {
		return nil, refillerr.New(refillerr.CodeTransactionNotFound, "no refill transaction found for this refill_request_id")
	}
	return &Status{
		RefillRequestID: row.RefillRequestID,
		Status:          row.Status,
		ProviderStatus:  row.ProviderStatus,
		Provider:        row.Provider,
		ProviderTxID:    row.ProviderTxID,
		TxHash:          row.TxHash,
		Message:         row.Message,
		Amount:          row.Amount,
		AmountAtomic:    row.AmountAtomic,
		ChainName:       row.ChainName,
		TokenSymbol:     row.TokenSymbol,
		CreatedAt:       row.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       row.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
