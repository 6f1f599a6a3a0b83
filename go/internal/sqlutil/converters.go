package sqlutil

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable SQL types

// ToNullRawMessage encodes v as a nullable JSONB value. nil and empty maps are NULL.
func ToNullRawMessage(v map[string]any) (pqtype.NullRawMessage, error) {
	if len(v) == 0 {
		return pqtype.NullRawMessage{Valid: false}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// FromNullRawMessage decodes a nullable JSONB object. Malformed content yields nil.
func FromNullRawMessage(val pqtype.NullRawMessage) map[string]any {
	if !val.Valid || len(val.RawMessage) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(val.RawMessage, &out); err != nil {
		return nil
	}
	return out
}

// FromNullTime converts sql.NullTime to a Go time pointer
func FromNullTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}
