package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsError_FindsWrappedDomainError(t *testing.T) {
	base := NotFound("Website not found")
	wrapped := fmt.Errorf("get website: %w", base)

	got := AsError(wrapped)
	require.NotNil(t, got)
	assert.Same(t, base, got)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestAsError_UnclassifiedIsInternal(t *testing.T) {
	cause := errors.New("disk on fire")

	got := AsError(cause)
	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
}

func TestInternal_ErrorIncludesCauseButMessageDoesNot(t *testing.T) {
	cause := errors.New("sqlite: database is locked")
	err := Internal("Internal server error", cause)

	assert.Contains(t, err.Error(), "database is locked")
	assert.NotContains(t, err.Message, "locked")
}

func TestTickStatus_Valid(t *testing.T) {
	assert.True(t, TickStatusUp.Valid())
	assert.True(t, TickStatusDown.Valid())
	assert.True(t, TickStatusUnknown.Valid())
	assert.False(t, TickStatus("sideways").Valid())
}
