// Package diskolog is a thin structured-logging wrapper around the standard
// library's log.Logger. No logging library appears anywhere in the
// retrieval pack's dependency surface, so this stays on the standard
// library rather than reaching for one the corpus never shows; see
// DESIGN.md.
//
// It exists for exactly one caller-visible path spec.md §7 names: a file
// handle's flush-on-drop can fail with nowhere to return the error, so the
// failure is logged instead.
package diskolog

import (
	"io"
	"log"
)

// Logger writes diagnostic lines for fatfs's handle-drop-time failures.
type Logger struct {
	*log.Logger
}

// New wraps w in a Logger with the package's standard "fatfs: " prefix and
// timestamp flags.
func New(w io.Writer) *Logger {
	return &Logger{Logger: log.New(w, "fatfs: ", log.LstdFlags)}
}

// FlushFailure reports that a handle's implicit flush-on-drop failed for the
// entry at path. Since there is no caller left to return the error to, this
// is the only place the failure surfaces.
func (l *Logger) FlushFailure(path string, err error) {
	if l == nil {
		return
	}
	l.Printf("flush on drop failed for %q: %s", path, err)
}
