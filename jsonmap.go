package main

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONMap is a free-form JSON object column. datatypes.JSONMap was dropped
// along with the rest of the teacher's gorm.io/datatypes dependency (see
// DESIGN.md) in favor of this direct Scanner/Valuer pair, the same shape
// original_source's serde_json::Value metadata fields take in Rust.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ValidationErrorf("unsupported type for JSONMap scan: %T", value)
	}

	if len(raw) == 0 {
		*m = nil
		return nil
	}

	out := make(JSONMap)
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
