// This file enumerates the sentinel errors the engine can raise. Names match
// the public error surface spec.md defines, plus a handful of internal
// faults used by lower layers (cluster/path resolution, bounds checks) that
// never escape to callers wrapped only in themselves.

package errors

// Transport faults: originate at the byte store.
const (
	ErrIOFailed      = DiskoError("input/output error")
	ErrUnexpectedEOF = DiskoError("unexpected end of file or stream")
	ErrWriteZero     = DiskoError("short write: wrote zero bytes")
)

// Semantic faults: originate at the directory/name/FAT layer.
const (
	ErrInvalidArgument         = DiskoError("invalid argument")
	ErrNotFound                = DiskoError("no such file or directory")
	ErrExists                  = DiskoError("file exists")
	ErrDirectoryNotEmpty       = DiskoError("directory not empty")
	ErrNoSpaceOnDevice         = DiskoError("no space left on device")
	ErrInvalidFileNameLength   = DiskoError("invalid file name length")
	ErrUnsupportedFileNameChar = DiskoError("unsupported character in file name")
	ErrNotADirectory           = DiskoError("not a directory")
	ErrIsADirectory            = DiskoError("is a directory")
	ErrNotSupported            = DiskoError("operation not supported")
	ErrArgumentOutOfRange      = DiskoError("numerical argument out of domain")
)

// Integrity faults: on-disk invariants violated.
const (
	ErrFileSystemCorrupted = DiskoError("structure needs cleaning")
)
