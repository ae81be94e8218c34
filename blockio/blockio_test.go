package blockio_test

import (
	"testing"

	"github.com/gofatfs/fatfs/blockio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestShimReadExactRoundTrip(t *testing.T) {
	backing := make([]byte, 512)
	store := bytesextra.NewReadWriteSeeker(backing)
	shim := blockio.New(store)

	payload := []byte("hello, fat world")
	require.NoError(t, shim.WriteAll(10, payload))

	out := make([]byte, len(payload))
	require.NoError(t, shim.ReadExact(10, out))
	assert.Equal(t, payload, out)
}

type flakyStore struct {
	data       []byte
	interrupts int
}

type interruptedErr struct{}

func (interruptedErr) Error() string       { return "interrupted" }
func (interruptedErr) IsInterrupted() bool { return true }

func (f *flakyStore) ReadAt(p []byte, off int64) (int, error) {
	if f.interrupts > 0 {
		f.interrupts--
		return 0, interruptedErr{}
	}
	n := copy(p, f.data[off:])
	return n, nil
}

func (f *flakyStore) WriteAt(p []byte, off int64) (int, error) {
	if f.interrupts > 0 {
		f.interrupts--
		return 0, interruptedErr{}
	}
	n := copy(f.data[off:], p)
	return n, nil
}

func TestShimRetriesOnInterrupt(t *testing.T) {
	store := &flakyStore{data: make([]byte, 64), interrupts: 2}
	shim := blockio.New(store)

	require.NoError(t, shim.WriteAll(0, []byte("abcd")))
	out := make([]byte, 4)
	require.NoError(t, shim.ReadExact(0, out))
	assert.Equal(t, "abcd", string(out))
}
