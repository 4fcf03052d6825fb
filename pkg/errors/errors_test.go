package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrTransitionConflict, "application already reviewed")
	assert.Equal(t, "application already reviewed", cloned.Message)
	assert.Equal(t, http.StatusConflict, cloned.Status)
	assert.True(t, errors.Is(cloned, ErrTransitionConflict))
	assert.False(t, errors.Is(cloned, ErrIllegalTransition))
	assert.Equal(t, "application status changed concurrently", ErrTransitionConflict.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	raw := fmt.Errorf("boom")
	appErr := FromError(raw)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, raw)

	wrapped := fmt.Errorf("outer: %w", ErrNotFound)
	assert.Equal(t, ErrNotFound, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}

func TestWithDetails(t *testing.T) {
	issues := []string{"Full name is required"}
	appErr := WithDetails(ErrValidation, issues)
	assert.Equal(t, issues, appErr.Details)
	assert.Nil(t, ErrValidation.Details)
}
