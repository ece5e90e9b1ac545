package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("save lesson: %w", Clone(ErrLessonOverlap, ""))

	appErr := FromError(wrapped)
	assert.Equal(t, "LESSON_OVERLAP", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("disk full"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.EqualError(t, appErr, "internal server error: disk full")
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "lesson not found")
	assert.Equal(t, "lesson not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(errors.New("boom"), ErrSaveFailed.Code, ErrSaveFailed.Status, "could not save lesson")
	assert.True(t, Is(err, ErrSaveFailed))
	assert.False(t, Is(err, ErrLessonOverlap))
	assert.False(t, Is(errors.New("plain"), ErrSaveFailed))
}
