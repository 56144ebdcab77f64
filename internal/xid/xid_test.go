package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrefixedAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := New("trx")
		require.True(t, strings.HasPrefix(id, "trx-"), id)
		_, err := uuid.Parse(strings.TrimPrefix(id, "trx-"))
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, id)
		seen[id] = struct{}{}
	}
}

func TestNewWithoutPrefix(t *testing.T) {
	id := New("")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}
