// Package catalog is the persistence layer (§3/§4.1): gorm models for the
// Chain/Wallet/Asset/RefillTransaction entities and the read/write
// accessors the rest of the system uses to reach them. No caller outside
// this package issues SQL directly.
package catalog

import "time"

// Chain is the identity of a supported blockchain.
type Chain struct {
	ID                int64  `gorm:"primary_key"`
	Name              string `gorm:"unique_index;not null"`
	Symbol            string `gorm:"not null"`
	NativeAssetSymbol string `gorm:"column:native_asset_symbol"`
	IsActive          bool   `gorm:"not null"`
}

func (Chain) TableName() string { return "chains" }

// Wallet is a custody address the system knows about.
type Wallet struct {
	ID              int64   `gorm:"primary_key"`
	Address         string  `gorm:"unique_index;not null"`
	WalletType      string  `gorm:"column:wallet_type;not null"`
	HotWalletConfig JSONMap `gorm:"column:hot_wallet_config;type:json"`
}

func (Wallet) TableName() string { return "wallets" }

const (
	WalletTypeHot  = "hot"
	WalletTypeCold = "cold"
)

// NativeSentinel is the contract_address/asset_address value meaning "this
// chain's native coin, not a contract token" (§4.4 step 6).
const NativeSentinel = "native"

// Asset is a token on a specific chain, carrying its refill policy.
type Asset struct {
	ID                           int64   `gorm:"primary_key"`
	Symbol                       string  `gorm:"not null"`
	ChainID                      int64   `gorm:"column:chain_id;not null"`
	Chain                        Chain   `gorm:"foreignkey:ChainID"`
	ContractAddress              string  `gorm:"column:contract_address;not null"`
	Decimals                     int     `gorm:"not null"`
	WalletID                     int64   `gorm:"column:wallet_id;not null"`
	Wallet                       Wallet  `gorm:"foreignkey:WalletID"`
	RefillSweepWallet            string  `gorm:"column:refill_sweep_wallet"`
	SweepWalletConfig            JSONMap `gorm:"column:sweep_wallet_config;type:json"`
	HotWalletConfig              JSONMap `gorm:"column:hot_wallet_config;type:json"`
	RefillTargetBalanceAtomic    string  `gorm:"column:refill_target_balance_atomic"`
	RefillTriggerThresholdAtomic string  `gorm:"column:refill_trigger_threshold_atomic"`
	RefillCooldownPeriod         int64   `gorm:"column:refill_cooldown_period"`
	IsActive                     bool    `gorm:"column:is_active;not null"`
}

func (Asset) TableName() string { return "assets" }

// Provider returns the canonical provider name authoritative for this
// asset's sweep wallet (§4.4 step 8), or "" if unset/malformed.
func (a Asset) Provider() string {
	v, _ := a.SweepWalletConfig["provider"].(string)
	return v
}

// Internal transaction statuses (§3). PENDING/PROCESSING are non-terminal;
// COMPLETED/FAILED are terminal and never transition further.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// NonTerminalStatuses lists every status get_pending_transaction_by_asset_id
// and the reconciliation monitor treat as in-flight.
var NonTerminalStatuses = []string{StatusPending, StatusProcessing}

// IsTerminal reports whether a status is one the state machine never leaves.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// RefillTransaction is one attempted refill (§3).
type RefillTransaction struct {
	ID              int64     `gorm:"primary_key"`
	RefillRequestID string    `gorm:"column:refill_request_id;unique_index;not null"`
	AssetID         int64     `gorm:"column:asset_id;not null"`
	Asset           Asset     `gorm:"foreignkey:AssetID"`
	Provider        string    `gorm:"not null"`
	AmountAtomic    string    `gorm:"column:amount_atomic;not null"`
	Amount          string    `gorm:"not null"`
	ChainName       string    `gorm:"column:chain_name;not null"`
	TokenSymbol     string    `gorm:"column:token_symbol;not null"`
	Status          string    `gorm:"not null"`
	ProviderStatus  string    `gorm:"column:provider_status"`
	ProviderTxID    string    `gorm:"column:provider_tx_id"`
	TxHash          string    `gorm:"column:tx_hash"`
	Message         string    `gorm:"column:message"`
	ProviderData    JSONMap   `gorm:"column:provider_data;type:json"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (RefillTransaction) TableName() string { return "refill_transactions" }
