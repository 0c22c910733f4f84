package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap persists a map[string]interface{} as a JSON column, the way the
// asset config bags (hot_wallet_config, sweep_wallet_config) and the raw
// provider snapshot (provider_data) are stored (§3).
type JSONMap map[string]interface{}

// Value implements driver.Valuer for gorm/database-sql writes.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan implements sql.Scanner for reads.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("catalog: unsupported JSONMap source type")
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := JSONMap{}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
