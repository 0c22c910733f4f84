package catalog

import (
	"strings"
	"time"

	"github.com/go-sql-driver/mysql" // also registers the "mysql" driver via its init()
	"github.com/groundx/refillsvc/log"
	"github.com/jinzhu/gorm"
)

var logger = log.NewModuleLogger(log.Catalog)

// mysqlDuplicateEntry is the error number go-sql-driver/mysql surfaces for a
// unique-index violation (ER_DUP_ENTRY), used to detect a replayed
// refill_request_id on insert (§4.1, §4.5 step 1).
const mysqlDuplicateEntry = 1062

// ErrDuplicateRequestID is returned by InsertTransaction when a row with the
// same refill_request_id already exists.
var ErrDuplicateRequestID = &Error{Op: "insert_transaction", Err: errDuplicate{}}

type errDuplicate struct{}

func (errDuplicate) Error() string { return "refill_request_id already exists" }

// Store is the token catalog (C1): the one place SQL is issued from.
type Store struct {
	db *gorm.DB
}

// Open connects to the chain database using the given DSN, grounded on the
// teacher's db_manager connection-pool setup.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, wrap("open", err)
	}
	db.DB().SetMaxOpenConns(25)
	db.DB().SetMaxIdleConns(5)
	db.DB().SetConnMaxLifetime(time.Hour)
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping performs the round-trip probe used by the health surface (C9).
func (s *Store) Ping() error {
	return s.db.DB().Ping()
}

// GetChainByName resolves a chain by its case-insensitive name (§4.1).
func (s *Store) GetChainByName(name string) (*Chain, error) {
	var c Chain
	err := s.db.Where("LOWER(name) = LOWER(?)", name).First(&c).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_chain_by_name", err)
	}
	return &c, nil
}

// GetAssetBySymbolAndChain resolves an asset, joining its Wallet and Chain.
func (s *Store) GetAssetBySymbolAndChain(symbol string, chainID int64) (*Asset, error) {
	var a Asset
	err := s.db.
		Preload("Wallet").
		Preload("Chain").
		Where("LOWER(symbol) = LOWER(?) AND chain_id = ?", symbol, chainID).
		First(&a).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_asset_by_symbol_and_chain", err)
	}
	return &a, nil
}

// GetWalletByAddress resolves a wallet by its case-insensitive address.
func (s *Store) GetWalletByAddress(address string) (*Wallet, error) {
	var w Wallet
	err := s.db.Where("LOWER(address) = LOWER(?)", address).First(&w).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_wallet_by_address", err)
	}
	return &w, nil
}

// InsertTransaction creates a new RefillTransaction row. A duplicate
// refill_request_id returns ErrDuplicateRequestID so the orchestrator can
// fetch and echo the prior row (§4.5 step 1).
func (s *Store) InsertTransaction(tx *RefillTransaction) error {
	err := s.db.Create(tx).Error
	if err == nil {
		return nil
	}
	if isDuplicateEntry(err) {
		return ErrDuplicateRequestID
	}
	return wrap("insert_transaction", err)
}

func isDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	if mysqlErr, ok := err.(*mysql.MySQLError); ok {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	// gorm sometimes wraps the driver error in its message; fall back to a
	// substring check so sqlite/test-double backends still trip this path.
	return strings.Contains(err.Error(), "Duplicate entry") || strings.Contains(err.Error(), "UNIQUE constraint")
}

// TransactionPatch carries only the fields a caller intends to change
// (§4.6's diff output). Zero-value fields are left untouched: callers build
// this from a diff, never from a fully-populated struct.
type TransactionPatch struct {
	Status         *string
	ProviderStatus *string
	ProviderTxID   *string
	TxHash         *string
	Message        *string
	ProviderData   JSONMap
}

// UpdateTransaction patches a row by refill_request_id and reports rows
// affected (§4.1).
func (s *Store) UpdateTransaction(refillRequestID string, patch TransactionPatch) (int64, error) {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.ProviderStatus != nil {
		updates["provider_status"] = *patch.ProviderStatus
	}
	if patch.ProviderTxID != nil {
		updates["provider_tx_id"] = *patch.ProviderTxID
	}
	if patch.TxHash != nil {
		updates["tx_hash"] = *patch.TxHash
	}
	if patch.Message != nil {
		updates["message"] = *patch.Message
	}
	if patch.ProviderData != nil {
		updates["provider_data"] = patch.ProviderData
	}
	if len(updates) == 0 {
		return 0, nil
	}
	db := s.db.Model(&RefillTransaction{}).Where("refill_request_id = ?", refillRequestID).Updates(updates)
	if db.Error != nil {
		return 0, wrap("update_transaction", db.Error)
	}
	return db.RowsAffected, nil
}

// GetTransactionByRequestID loads a row with Asset/Chain/Wallet joined.
func (s *Store) GetTransactionByRequestID(refillRequestID string) (*RefillTransaction, error) {
	var t RefillTransaction
	err := s.db.
		Preload("Asset").
		Preload("Asset.Chain").
		Preload("Asset.Wallet").
		Where("refill_request_id = ?", refillRequestID).
		First(&t).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_transaction_by_request_id", err)
	}
	return &t, nil
}

// GetPendingTransactionByAssetID returns the newest non-terminal row for an
// asset, or nil (§3: at most one non-terminal row per asset).
func (s *Store) GetPendingTransactionByAssetID(assetID int64) (*RefillTransaction, error) {
	var t RefillTransaction
	err := s.db.
		Where("asset_id = ? AND status IN (?)", assetID, NonTerminalStatuses).
		Order("created_at DESC").
		First(&t).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_pending_transaction_by_asset_id", err)
	}
	return &t, nil
}

// GetLastSuccessfulRefillByAssetID returns the newest COMPLETED row for an
// asset, ordered by updated_at, used by the cooldown check (§4.4 step 5).
func (s *Store) GetLastSuccessfulRefillByAssetID(assetID int64) (*RefillTransaction, error) {
	var t RefillTransaction
	err := s.db.
		Where("asset_id = ? AND status = ?", assetID, StatusCompleted).
		Order("updated_at DESC").
		First(&t).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_last_successful_refill_by_asset_id", err)
	}
	return &t, nil
}

// GetTransactionsByStatus returns every row in the given status, oldest
// first, the feed the reconciliation monitor (C7) polls each cycle.
func (s *Store) GetTransactionsByStatus(status string) ([]RefillTransaction, error) {
	var rows []RefillTransaction
	err := s.db.
		Preload("Asset").
		Preload("Asset.Chain").
		Preload("Asset.Wallet").
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrap("get_transactions_by_status", err)
	}
	return rows, nil
}

// GetActiveProviderNames returns the distinct provider names referenced by
// every active asset, the set the provider registry initializes clients for
// at boot (§4.2: "instantiate exactly one client per distinct provider name
// referenced by any active Asset").
func (s *Store) GetActiveProviderNames() ([]string, error) {
	var assets []Asset
	err := s.db.Where("is_active = ?", true).Find(&assets).Error
	if err != nil {
		return nil, wrap("get_active_provider_names", err)
	}
	seen := make(map[string]struct{})
	var names []string
	for _, a := range assets {
		name := a.Provider()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}
