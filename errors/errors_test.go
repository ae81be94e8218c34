package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/gofatfs/fatfs/errors"
	"github.com/stretchr/testify/assert"
)

func TestDiskoErrorWithMessage(t *testing.T) {
	newErr := errors.ErrExists.WithMessage("asdfqwerty")
	assert.Equal(t, "file exists: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, errors.ErrExists)
}

func TestDiskoErrorWrap(t *testing.T) {
	originalErr := stderrors.New("original error")
	newErr := errors.ErrNotFound.Wrap(originalErr)
	expectedMessage := "no such file or directory: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, errors.ErrNotFound, "sentinel error not set as parent")
}
