// Package blockio is the engine's byte-store shim: it wraps a caller-supplied
// ByteStore in positioned read/write calls that retry on interruption and turn
// short reads/writes into the engine's own sentinel errors, the way
// dargueta-disko's BlockStream centralizes bounds checking and retrying for
// its drivers.
package blockio

import (
	"io"

	"github.com/gofatfs/fatfs/errors"
)

// ByteStore is the minimal capability set the engine requires of a backing
// store: positioned reads and writes. Anything satisfying this -- an *os.File,
// an in-memory buffer, a firmware SD-card driver -- can back a mounted volume.
type ByteStore interface {
	io.ReaderAt
	io.WriterAt
}

// Interrupter is implemented by ByteStore errors that want a read or write
// transparently retried rather than surfaced to the caller.
type Interrupter interface {
	IsInterrupted() bool
}

func isInterrupted(err error) bool {
	ix, ok := err.(Interrupter)
	return ok && ix.IsInterrupted()
}

// Shim centralizes retry-on-interrupt and short-read/short-write detection
// for a ByteStore. The zero value is not usable; use [New].
type Shim struct {
	store ByteStore
}

// New wraps store in a Shim.
func New(store ByteStore) *Shim {
	return &Shim{store: store}
}

// ReadExact fills buf completely from offset, retrying transparently on
// interrupted reads. A short read that isn't due to interruption is reported
// as [errors.ErrUnexpectedEOF].
func (s *Shim) ReadExact(offset int64, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.store.ReadAt(buf[total:], offset+int64(total))
		if n == 0 && err == nil {
			return errors.ErrUnexpectedEOF
		}
		total += n

		if err == nil {
			continue
		}
		if isInterrupted(err) {
			continue
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if total < len(buf) {
				return errors.ErrUnexpectedEOF.Wrap(err)
			}
			return nil
		}
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// WriteAll writes buf completely at offset, retrying transparently on
// interrupted writes. A short write that isn't due to interruption is
// reported as [errors.ErrWriteZero].
func (s *Shim) WriteAll(offset int64, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.store.WriteAt(buf[total:], offset+int64(total))
		if n == 0 && err == nil {
			return errors.ErrWriteZero
		}
		total += n

		if err == nil {
			continue
		}
		if isInterrupted(err) {
			continue
		}
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}
