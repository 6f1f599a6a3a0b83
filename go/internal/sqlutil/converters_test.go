package sqlutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullRawMessage(t *testing.T) {
	empty, err := ToNullRawMessage(nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)
	assert.Nil(t, FromNullRawMessage(empty))

	v, err := ToNullRawMessage(map[string]any{"away_ms": 1500})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, map[string]any{"away_ms": float64(1500)}, FromNullRawMessage(v))

	bad := pqtype.NullRawMessage{RawMessage: []byte("{"), Valid: true}
	assert.Nil(t, FromNullRawMessage(bad))
}

func TestNullTime(t *testing.T) {
	assert.Nil(t, FromNullTime(sql.NullTime{}))

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := FromNullTime(sql.NullTime{Time: now, Valid: true})
	require.NotNil(t, got)
	assert.True(t, now.Equal(*got))
}
