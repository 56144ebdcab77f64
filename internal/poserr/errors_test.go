package poserr

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsSurviveWrapping(t *testing.T) {
	base := errors.New("connection refused")

	wrapped := errors.Wrap(&FetchError{Resource: "transactions", Err: base}, "load report")
	require.True(t, IsFetch(wrapped))
	require.ErrorIs(t, wrapped, base)
	assert.False(t, IsWrite(wrapped))

	write := errors.Wrap(&WriteError{Op: "record sale", Err: base}, "checkout")
	assert.True(t, IsWrite(write))
	assert.True(t, IsValidation(errors.Wrap(Invalid("quantity", "must be a number"), "cart")))
	assert.True(t, IsExport(&ExportError{Format: "pdf", Err: base}))
}

func TestUserMessageHidesDriverDetail(t *testing.T) {
	base := errors.New("pq: relation \"transactions\" does not exist")

	assert.Equal(t, "failed to load transactions", UserMessage(&FetchError{Resource: "transactions", Err: base}))
	assert.Equal(t, "failed to record sale", UserMessage(errors.Wrap(&WriteError{Op: "record sale", Err: base}, "checkout")))
	assert.Equal(t, "cart: total must be greater than zero", UserMessage(Invalid("cart", "total must be greater than zero")))
	assert.Equal(t, "no data", UserMessage(Invalid("", "no data")))
}
