// Package bytesource adapts common Go I/O shapes -- an io.ReadWriteSeeker, a
// raw in-memory buffer -- into the [blockio.ByteStore] contract the engine
// mounts against, the way dargueta-disko's "testing" package and block cache
// wrap fixtures in [bytesextra.NewReadWriteSeeker] for tests.
package bytesource

import (
	"io"

	"github.com/noxer/bytewriter"
	"github.com/xaionaro-go/bytesextra"
)

// seekerStore adapts an io.ReadWriteSeeker to io.ReaderAt/io.WriterAt by
// serializing access through a single cursor. Callers needing concurrent
// access must provide their own ReaderAt/WriterAt-capable store instead.
type seekerStore struct {
	rws io.ReadWriteSeeker
}

// FromReadWriteSeeker wraps any io.ReadWriteSeeker -- an *os.File, a network
// block device, anything -- as a ByteStore.
func FromReadWriteSeeker(rws io.ReadWriteSeeker) *seekerStore {
	return &seekerStore{rws: rws}
}

func (s *seekerStore) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.rws, p)
}

func (s *seekerStore) WriteAt(p []byte, off int64) (int, error) {
	if _, err := s.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return s.rws.Write(p)
}

// FromBytes wraps a raw byte slice as an in-memory ByteStore, backed by
// [bytesextra.NewReadWriteSeeker]. Mutations through the returned store are
// visible in data, matching [bytesextra]'s zero-copy semantics.
func FromBytes(data []byte) *seekerStore {
	return FromReadWriteSeeker(bytesextra.NewReadWriteSeeker(data))
}

// GrowableSink is an io.Writer that grows as data is appended to it, backed
// by [bytewriter]. It's used by cmd/fatutil's cat subcommand to collect a
// file's contents without knowing its size up front.
type GrowableSink struct {
	buf *bytewriter.Writer
}

// NewGrowableSink creates an empty GrowableSink.
func NewGrowableSink() *GrowableSink {
	return &GrowableSink{buf: bytewriter.New()}
}

func (g *GrowableSink) Write(p []byte) (int, error) {
	return g.buf.Write(p)
}

// Bytes returns the accumulated contents written so far.
func (g *GrowableSink) Bytes() []byte {
	return g.buf.Bytes()
}
