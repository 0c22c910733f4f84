// Package provider is the custody backend abstraction (C2): one client per
// distinct provider name referenced by an active Asset, behind a common
// interface so the admission pipeline, orchestrator, and reconciliation
// monitor never branch on provider identity.
package provider

import (
	"context"
	"fmt"

	"github.com/groundx/refillsvc/log"
)

var logger = log.NewModuleLogger(log.Provider)

// Canonical provider names (§4.6's vocabulary table keys on these).
const (
	Liminal    = "liminal"
	Fireblocks = "fireblocks"
)

// TokenInfo describes the asset/wallet pair a balance or transfer call acts
// on (§4.2: "token_info carries {symbol, chain_symbol, contract_address_or_null,
// decimals, wallet_config}").
type TokenInfo struct {
	Symbol          string
	ChainSymbol     string
	ContractAddress string // "" means native
	Decimals        int
	WalletConfig    map[string]interface{}
}

// TransferRequest is the input to CreateTransferRequest (§4.2).
type TransferRequest struct {
	ColdWalletID     string
	HotWalletAddress string
	AmountDecimal    string
	AssetSymbol      string
	ChainSymbol      string
	ExternalTxID     string
	ColdWalletConfig map[string]interface{}
	ContractAddress  string // "" means native
}

// TransferResponse is the provider's acceptance of a transfer request.
type TransferResponse struct {
	ProviderTxID string
	RawStatus    string
	Message      string
	ExternalTxID string
	CreatedAt    string
	Raw          map[string]interface{}
}

// RawTransaction is what GetTransactionByID returns: the provider's own
// shape, absorbed later by statusmap's extractor.
type RawTransaction struct {
	ProviderTxID string
	RawStatus    string
	TxHash       string
	Message      string
	Raw          map[string]interface{}
}

// Provider is the contract every custody backend client implements (§4.2).
// Implementations raise (return a non-nil error) on credential error,
// network error, or a negative outcome; callers classify the failure.
type Provider interface {
	Name() string
	Init(credentials map[string]string) error
	GetTokenBalance(ctx context.Context, token TokenInfo) (atomicBalance string, err error)
	CreateTransferRequest(ctx context.Context, req TransferRequest) (TransferResponse, error)
	GetTransactionByID(ctx context.Context, providerTxID string, token TokenInfo) (RawTransaction, error)
}

// Registry holds exactly one client per provider name, built once at boot
// (§4.2: "initialize() is idempotent; instantiates exactly one client per
// distinct provider name referenced by any active Asset").
type Registry struct {
	clients map[string]Provider
}

// NewRegistry builds a Registry from every given Provider, keyed by its own
// Name(). Init must already have been called on each.
func NewRegistry(providers ...Provider) *Registry {
	clients := make(map[string]Provider, len(providers))
	for _, p := range providers {
		clients[p.Name()] = p
	}
	return &Registry{clients: clients}
}

// Get returns the client registered under name, or ok=false if none was
// configured (§4.2: "Provider selection for an asset... Missing client →
// NO_PROVIDER_AVAILABLE").
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.clients[name]
	return p, ok
}

// Names lists every configured provider, for diagnostics/health reporting.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// errMissingCredential is a small helper so adapter Init()
// implementations return a uniform, greppable error shape.
func errMissingCredential(provider, key string) error {
	return fmt.Errorf("provider %s: missing credential %q", provider, key)
}
