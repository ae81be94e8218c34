package direntry

import (
	"strings"

	"github.com/gofatfs/fatfs/errors"
	"golang.org/x/exp/slices"
)

// disallowedShortNameChars is the punctuation FAT explicitly forbids in a
// short (8.3) name, per spec.md §4.4.
const disallowedShortNameChars = "\"*/:<>?\\|+,.;=[]"

// isValidShortNameByte reports whether b may appear in an 8.3 short-name
// component (the name or the extension, not the separating dot).
func isValidShortNameByte(b byte) bool {
	if b < 0x20 {
		return false
	}
	if b >= 0x80 {
		return true // OEM code page byte; validity depends on the code page.
	}
	if strings.IndexByte(disallowedShortNameChars, b) >= 0 {
		return false
	}
	return true
}

// ValidateLongNameByte reports whether b may appear in a long (UCS-2) name.
// The rules are looser than the short-name set: dots and commas are fine,
// only the handful of characters reserved by path syntax are rejected.
func ValidateLongNameByte(b byte) bool {
	if b < 0x20 {
		return false
	}
	switch b {
	case '"', '*', '/', ':', '<', '>', '?', '\\', '|':
		return false
	}
	return true
}

// SplitStemExtension splits a display name on its last dot, the FAT
// convention for deriving a short name's 8.3 halves. A name with no dot (or
// one that's only a leading dot, which FAT treats as a valid first
// character) returns an empty extension.
func SplitStemExtension(name string) (stem, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// PackShortName validates and uppercases a name already known to be a
// literal 8.3 form (no LFN needed) and returns its packed 11-byte form.
// Returns ErrInvalidFileNameLength for an empty name, and
// ErrUnsupportedFileNameChar for any disallowed byte.
func PackShortName(stem, ext string) ([11]byte, error) {
	var packed [11]byte

	if len(stem) == 0 {
		return packed, errors.ErrInvalidFileNameLength
	}
	if len(stem) > 8 || len(ext) > 3 {
		return packed, errors.ErrInvalidFileNameLength
	}

	for i := range packed {
		packed[i] = ' '
	}

	upperStem := strings.ToUpper(stem)
	for i := 0; i < len(upperStem); i++ {
		b := upperStem[i]
		if !isValidShortNameByte(b) {
			return packed, errors.ErrUnsupportedFileNameChar
		}
		packed[i] = b
	}

	upperExt := strings.ToUpper(ext)
	for i := 0; i < len(upperExt); i++ {
		b := upperExt[i]
		if !isValidShortNameByte(b) {
			return packed, errors.ErrUnsupportedFileNameChar
		}
		packed[8+i] = b
	}

	return packed, nil
}

// IsValidLiteralShortName reports whether name (e.g. "README.TXT") is
// already a valid, correctly-cased 8.3 name that needs no LFN extension at
// all: every character uppercase (or non-alphabetic), stem <= 8 bytes,
// extension <= 3 bytes, no leading/trailing spaces or dots beyond the one
// separator.
func IsValidLiteralShortName(name string) bool {
	if name == "" || name != strings.TrimSpace(name) {
		return false
	}
	if strings.Contains(name, " ") {
		return false
	}
	if name != strings.ToUpper(name) {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}

	stem, ext := SplitStemExtension(name)
	if len(stem) == 0 || len(stem) > 8 || len(ext) > 3 {
		return false
	}
	if strings.Count(name, ".") > 1 {
		return false
	}

	for i := 0; i < len(stem); i++ {
		if !isValidShortNameByte(stem[i]) {
			return false
		}
	}
	for i := 0; i < len(ext); i++ {
		if !isValidShortNameByte(ext[i]) {
			return false
		}
	}
	return true
}

// sanitizeForShortName uppercases and replaces every disallowed byte with an
// underscore, the first step of 8.3 short-name derivation.
func sanitizeForShortName(s string) string {
	upper := strings.ToUpper(s)
	out := make([]byte, 0, len(upper))
	for i := 0; i < len(upper); i++ {
		b := upper[i]
		if b == ' ' || b == '.' {
			continue
		}
		if !isValidShortNameByte(b) {
			b = '_'
		}
		out = append(out, b)
	}
	return string(out)
}

// DeriveShortName generates a unique 8.3 alias for longName within a
// directory whose existing short names (already uppercase, "NAME.EXT" form)
// are given in existingShortNames. It implements spec.md §4.4's numeric-tail
// collision scheme: stem truncated to 6 bytes plus "~N", widening the tail
// and shrinking the stem as N grows past 9.
func DeriveShortName(longName string, existingShortNames []string) ([11]byte, error) {
	stem, ext := SplitStemExtension(longName)
	stem = sanitizeForShortName(stem)
	ext = sanitizeForShortName(ext)
	if len(ext) > 3 {
		ext = ext[:3]
	}
	if len(stem) == 0 {
		stem = "_"
	}

	for n := 1; n < 1_000_000; n++ {
		suffix := numericTailSuffix(n)
		stemBudget := 8 - len(suffix)
		if stemBudget < 1 {
			return [11]byte{}, errors.ErrInvalidFileNameLength
		}

		base := stem
		if len(base) > stemBudget {
			base = base[:stemBudget]
		}
		candidateStem := base + suffix
		candidate := candidateStem
		if ext != "" {
			candidate += "." + ext
		}

		if !slices.Contains(existingShortNames, candidate) {
			return PackShortName(candidateStem, ext)
		}
	}

	return [11]byte{}, errors.ErrExists
}

// numericTailSuffix returns "~N" for n in [1,9], "~NN" for [10,99], and so
// on, per spec.md's "if N exceeds 9, take 5+~NN, up to 4+~NNN" rule.
func numericTailSuffix(n int) string {
	digits := 1
	for p := 10; n >= p; p *= 10 {
		digits++
	}
	b := make([]byte, 0, digits+1)
	b = append(b, '~')
	return string(appendInt(b, n))
}

func appendInt(b []byte, n int) []byte {
	if n == 0 {
		return append(b, '0')
	}
	start := len(b)
	for n > 0 {
		b = append(b, byte('0'+n%10))
		n /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
