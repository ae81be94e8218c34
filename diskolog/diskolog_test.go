package diskolog_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gofatfs/fatfs/diskolog"
	"github.com/stretchr/testify/assert"
)

func TestFlushFailureWritesPathAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := diskolog.New(&buf)

	logger.FlushFailure("DOCS/README.TXT", errors.New("disk full"))

	output := buf.String()
	assert.Contains(t, output, "DOCS/README.TXT")
	assert.Contains(t, output, "disk full")
	assert.Contains(t, output, "fatfs: ")
}

func TestFlushFailureOnNilLoggerIsNoop(t *testing.T) {
	var logger *diskolog.Logger
	assert.NotPanics(t, func() {
		logger.FlushFailure("X.TXT", errors.New("boom"))
	})
}
