// Package admission is the refill intent validation pipeline (C4): ten
// ordered checks against live balances, configured thresholds, idempotency,
// per-asset in-flight locks, and cooldown, run against a single incoming
// request with the first failure short-circuiting the rest.
package admission

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/groundx/refillsvc/catalog"
	"github.com/groundx/refillsvc/log"
	"github.com/groundx/refillsvc/provider"
	"github.com/groundx/refillsvc/refillerr"
)

var logger = log.NewModuleLogger(log.Admission)

// Intent is the refill request payload (§4.4).
type Intent struct {
	RefillRequestID   string `json:"refill_request_id"`
	WalletAddress     string `json:"wallet_address"`
	AssetSymbol       string `json:"asset_symbol"`
	AssetAddress      string `json:"asset_address"`
	ChainName         string `json:"chain_name"`
	RefillAmount      string `json:"refill_amount"`
	RefillSweepWallet string `json:"refill_sweep_wallet"`
}

// Accepted is the validated view returned on acceptance (§4.4: "return a
// validated view containing Chain, Asset, Wallet, computed
// refill_amount_atomic, current balance snapshot, and the resolved provider
// client").
type Accepted struct {
	Chain              catalog.Chain
	Asset              catalog.Asset
	Wallet             catalog.Wallet
	RefillAmountAtomic decimal.Decimal
	HotWalletBalance   decimal.Decimal
	Provider           provider.Provider
}

// CatalogReader is the slice of catalog.Store the admission pipeline reads
// through, kept narrow so tests can supply a hand-rolled fake instead of a
// live database.
type CatalogReader interface {
	GetChainByName(name string) (*catalog.Chain, error)
	GetAssetBySymbolAndChain(symbol string, chainID int64) (*catalog.Asset, error)
	GetWalletByAddress(address string) (*catalog.Wallet, error)
	GetPendingTransactionByAssetID(assetID int64) (*catalog.RefillTransaction, error)
	GetLastSuccessfulRefillByAssetID(assetID int64) (*catalog.RefillTransaction, error)
}

// ProviderResolver looks up a configured provider client by name.
type ProviderResolver interface {
	Get(name string) (provider.Provider, bool)
}

// Pipeline runs the admission checks against the catalog store and the
// provider registry.
type Pipeline struct {
	Store    CatalogReader
	Registry ProviderResolver
}

func New(store CatalogReader, registry ProviderResolver) *Pipeline {
	return &Pipeline{Store: store, Registry: registry}
}

// Admit runs every step of §4.4 in order. The first failing step returns
// its *refillerr.Error; a nil error means acceptance.
func (p *Pipeline) Admit(ctx context.Context, intent Intent) (*Accepted, *refillerr.Error) {
	if missing := missingFields(intent); len(missing) > 0 {
		return nil, refillerr.WithData(refillerr.CodeMissingFields, "required fields are missing",
			map[string]interface{}{"missing_fields": missing})
	}

	chain, err := p.Store.GetChainByName(intent.ChainName)
	if err != nil {
		return nil, refillerr.Internal(err)
	}
	if chain == nil || !chain.IsActive {
		return nil, refillerr.New(refillerr.CodeBlockchainNotFound, "chain not found or inactive: "+intent.ChainName)
	}

	asset, err := p.Store.GetAssetBySymbolAndChain(intent.AssetSymbol, chain.ID)
	if err != nil {
		return nil, refillerr.Internal(err)
	}
	if asset == nil || !asset.IsActive {
		return nil, refillerr.New(refillerr.CodeAssetNotFound, "asset not found or inactive: "+intent.AssetSymbol)
	}

	if rejErr := p.checkInFlight(asset.ID); rejErr != nil {
		return nil, rejErr
	}

	if rejErr := p.checkCooldown(asset); rejErr != nil {
		return nil, rejErr
	}

	if rejErr := checkHotWalletAddress(intent, *asset); rejErr != nil {
		return nil, rejErr
	}

	if rejErr := checkSweepWallet(intent, *asset); rejErr != nil {
		return nil, rejErr
	}

	providerName := asset.Provider()
	if providerName == "" {
		return nil, refillerr.New(refillerr.CodeNoProviderAvailable, "asset has no sweep_wallet_config.provider")
	}
	client, ok := p.Registry.Get(providerName)
	if !ok {
		return nil, refillerr.New(refillerr.CodeNoProviderAvailable, "no provider client configured for "+providerName)
	}

	refillAmount, convErr := decimal.NewFromString(intent.RefillAmount)
	if convErr != nil {
		return nil, refillerr.New(refillerr.CodeInvalidAmount, "refill_amount is not a valid decimal: "+intent.RefillAmount)
	}
	refillAtomic := toAtomic(refillAmount, asset.Decimals)

	if rejErr := p.checkColdWalletBalance(ctx, client, providerName, *asset, refillAmount, refillAtomic); rejErr != nil {
		return nil, rejErr
	}

	hotBalanceAtomic, wallet, rejErr := p.checkHotWalletNeed(ctx, client, *asset, refillAmount, refillAtomic)
	if rejErr != nil {
		return nil, rejErr
	}

	return &Accepted{
		Chain:              *chain,
		Asset:              *asset,
		Wallet:             *wallet,
		RefillAmountAtomic: refillAtomic,
		HotWalletBalance:   hotBalanceAtomic,
		Provider:           client,
	}, nil
}

func missingFields(i Intent) []string {
	var missing []string
	if i.RefillRequestID == "" {
		missing = append(missing, "refill_request_id")
	}
	if i.WalletAddress == "" {
		missing = append(missing, "wallet_address")
	}
	if i.AssetSymbol == "" {
		missing = append(missing, "asset_symbol")
	}
	if i.AssetAddress == "" {
		missing = append(missing, "asset_address")
	}
	if i.ChainName == "" {
		missing = append(missing, "chain_name")
	}
	if i.RefillAmount == "" {
		missing = append(missing, "refill_amount")
	}
	if i.RefillSweepWallet == "" {
		missing = append(missing, "refill_sweep_wallet")
	}
	return missing
}

func (p *Pipeline) checkInFlight(assetID int64) *refillerr.Error {
	existing, err := p.Store.GetPendingTransactionByAssetID(assetID)
	if err != nil {
		return refillerr.Internal(err)
	}
	if existing == nil {
		return nil
	}
	return refillerr.WithData(refillerr.CodeRefillInProgress, "a refill is already in flight for this asset",
		map[string]interface{}{
			"existing_refill_request_id": existing.RefillRequestID,
			"status":                     existing.Status,
			"provider_tx_id":             existing.ProviderTxID,
			"created_at":                 existing.CreatedAt,
		})
}

func (p *Pipeline) checkCooldown(asset *catalog.Asset) *refillerr.Error {
	if asset.RefillCooldownPeriod <= 0 {
		return nil
	}
	last, err := p.Store.GetLastSuccessfulRefillByAssetID(asset.ID)
	if err != nil {
		return refillerr.Internal(err)
	}
	if last == nil {
		return nil
	}
	cooldown := time.Duration(asset.RefillCooldownPeriod) * time.Second
	elapsed := time.Since(last.UpdatedAt)
	if elapsed >= cooldown {
		return nil
	}
	remaining := cooldown - elapsed
	return refillerr.WithData(refillerr.CodeCooldownPeriodActive, "asset is within its refill cooldown period",
		map[string]interface{}{
			"last_refill_time":           last.UpdatedAt,
			"cooldown_period_seconds":    asset.RefillCooldownPeriod,
			"remaining_cooldown_seconds": int64(remaining.Seconds()),
			"last_refill_request_id":     last.RefillRequestID,
		})
}

func checkHotWalletAddress(intent Intent, asset catalog.Asset) *refillerr.Error {
	if !strings.EqualFold(intent.WalletAddress, asset.Wallet.Address) {
		return refillerr.WithData(refillerr.CodeHotWalletAddressValidation, "wallet_address does not match the asset's configured hot wallet",
			map[string]interface{}{"expected": asset.Wallet.Address, "actual": intent.WalletAddress})
	}
	assetIsNative := strings.EqualFold(asset.ContractAddress, catalog.NativeSentinel)
	intentIsNative := strings.EqualFold(intent.AssetAddress, catalog.NativeSentinel)
	if assetIsNative != intentIsNative {
		return refillerr.WithData(refillerr.CodeHotWalletAddressValidation, "asset_address native/contract mismatch",
			map[string]interface{}{"expected": asset.ContractAddress, "actual": intent.AssetAddress})
	}
	if !assetIsNative && !strings.EqualFold(intent.AssetAddress, asset.ContractAddress) {
		return refillerr.WithData(refillerr.CodeHotWalletAddressValidation, "asset_address does not match the asset's contract address",
			map[string]interface{}{"expected": asset.ContractAddress, "actual": intent.AssetAddress})
	}
	return nil
}

func checkSweepWallet(intent Intent, asset catalog.Asset) *refillerr.Error {
	if asset.RefillSweepWallet == "" {
		return refillerr.New(refillerr.CodeNoSweepWalletConfigured, "asset has no refill_sweep_wallet configured")
	}
	if intent.RefillSweepWallet != asset.RefillSweepWallet {
		return refillerr.WithData(refillerr.CodeSweepWalletMismatch, "refill_sweep_wallet does not match the asset's configured sweep wallet",
			map[string]interface{}{"expected": asset.RefillSweepWallet, "actual": intent.RefillSweepWallet})
	}
	return nil
}

func (p *Pipeline) checkColdWalletBalance(ctx context.Context, client provider.Provider, providerName string, asset catalog.Asset, refillAmount, refillAtomic decimal.Decimal) *refillerr.Error {
	switch providerName {
	case provider.Liminal:
		if _, ok := asset.SweepWalletConfig[provider.Liminal].(map[string]interface{}); !ok {
			return refillerr.New(refillerr.CodeNoLiminalColdWalletConfigured, "asset's sweep_wallet_config is missing a liminal identifier bag")
		}
	case provider.Fireblocks:
		if _, ok := asset.SweepWalletConfig[provider.Fireblocks].(map[string]interface{}); !ok {
			return refillerr.New(refillerr.CodeNoFireblocksColdWalletConfigured, "asset's sweep_wallet_config is missing a fireblocks identifier bag")
		}
	default:
		return refillerr.New(refillerr.CodeUnsupportedProvider, "unsupported provider: "+providerName)
	}

	token := tokenInfoFor(asset, asset.SweepWalletConfig)
	balanceStr, err := client.GetTokenBalance(ctx, token)
	if err != nil {
		return refillerr.Internal(err)
	}
	balance, convErr := decimal.NewFromString(balanceStr)
	if convErr != nil {
		return refillerr.Internal(convErr)
	}
	if balance.LessThan(refillAtomic) {
		return refillerr.WithData(refillerr.CodeInsufficientBalance, "cold wallet balance is insufficient for this refill",
			map[string]interface{}{"balance_atomic": balance.String(), "required_atomic": refillAtomic.String()})
	}
	return nil
}

func (p *Pipeline) checkHotWalletNeed(ctx context.Context, client provider.Provider, asset catalog.Asset, refillAmount, refillAtomic decimal.Decimal) (decimal.Decimal, *catalog.Wallet, *refillerr.Error) {
	wallet, err := p.Store.GetWalletByAddress(asset.Wallet.Address)
	if err != nil {
		return decimal.Zero, nil, refillerr.Internal(err)
	}
	if wallet == nil || wallet.WalletType != catalog.WalletTypeHot {
		return decimal.Zero, nil, refillerr.New(refillerr.CodeInvalidWalletType, "configured wallet is not a hot wallet")
	}
	if !refillAmount.IsPositive() {
		return decimal.Zero, nil, refillerr.New(refillerr.CodeInvalidAmount, "refill_amount must be positive")
	}

	token := tokenInfoFor(asset, asset.HotWalletConfig)
	balanceStr, err := client.GetTokenBalance(ctx, token)
	if err != nil {
		return decimal.Zero, nil, refillerr.Internal(err)
	}
	current, convErr := decimal.NewFromString(balanceStr)
	if convErr != nil {
		return decimal.Zero, nil, refillerr.Internal(convErr)
	}

	target, _ := decimal.NewFromString(asset.RefillTargetBalanceAtomic)
	trigger, _ := decimal.NewFromString(asset.RefillTriggerThresholdAtomic)

	if target.IsPositive() && current.GreaterThanOrEqual(target) {
		return decimal.Zero, nil, refillerr.WithData(refillerr.CodeSufficientBalance, "hot wallet already at or above target balance",
			map[string]interface{}{"current": current.String(), "target": target.String()})
	}
	if trigger.IsPositive() && current.GreaterThanOrEqual(trigger) {
		return decimal.Zero, nil, refillerr.WithData(refillerr.CodeAboveTriggerThreshold, "hot wallet balance is above the trigger threshold",
			map[string]interface{}{"current": current.String(), "trigger": trigger.String()})
	}
	if target.IsPositive() {
		projected := current.Add(refillAtomic)
		if projected.GreaterThan(target) {
			return decimal.Zero, nil, refillerr.WithData(refillerr.CodeWillOverfillTarget, "this refill would overfill the hot wallet past its target",
				map[string]interface{}{"projected": projected.String(), "target": target.String()})
		}
	}

	return current, wallet, nil
}

// tokenInfoFor builds the provider.TokenInfo for an asset using the given
// wallet-config bag (hot or sweep), per §4.4 steps 9-10.
func tokenInfoFor(asset catalog.Asset, walletConfig catalog.JSONMap) provider.TokenInfo {
	contractAddress := ""
	if !strings.EqualFold(asset.ContractAddress, catalog.NativeSentinel) {
		contractAddress = asset.ContractAddress
	}
	return provider.TokenInfo{
		Symbol:          asset.Symbol,
		ChainSymbol:     asset.Chain.Symbol,
		ContractAddress: contractAddress,
		Decimals:        asset.Decimals,
		WalletConfig:    walletConfig,
	}
}

// toAtomic converts a human-readable decimal amount to atomic units using
// arbitrary-precision decimal arithmetic (§3: "amount_atomic = amount ×
// 10^asset.decimals, computed in arbitrary-precision decimal").
func toAtomic(amount decimal.Decimal, decimals int) decimal.Decimal {
	scale := decimal.New(1, int32(decimals))
	return amount.Mul(scale)
}
