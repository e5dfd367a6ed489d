// Package rom loads and validates CHIP-8 ROM images and derives the
// sanitized identifier used downstream as a C namespace prefix.
package rom

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Size bounds a ROM must fall within to be loadable (§4.A).
const (
	MinSize = 2
	MaxSize = 3584
)

// Sentinel errors. Wrapped with errors.Wrapf at the call site so callers
// can both errors.Is against these and get the offending path in the
// message.
var (
	ErrNotFound = errors.New("rom not found")
	ErrTooLarge = errors.New("rom too large")
	ErrTooSmall = errors.New("rom too small")
	ErrIO       = errors.New("rom io error")
)

// ROM is an immutable byte sequence with a derived identifier.
type ROM struct {
	Data []byte
	ID   string

	// Trimmed is true if an odd trailing byte was dropped.
	Trimmed bool
}

// Load reads path from disk and validates it.
func Load(path string) (*ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(ErrIO, "reading %s: %v", path, err)
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return New(data, name)
}

// New validates data in memory and derives an identifier from hint
// (typically a file name without extension). New never transforms bytes
// beyond dropping a single odd trailing byte.
func New(data []byte, hint string) (*ROM, error) {
	if len(data) < MinSize {
		return nil, errors.Wrapf(ErrTooSmall, "%d bytes, minimum %d", len(data), MinSize)
	}

	trimmed := false
	if len(data)%2 != 0 {
		// Odd trailing byte is ignored with a warning (§3); the caller
		// decides whether to surface the warning.
		data = data[:len(data)-1]
		trimmed = true
	}

	if len(data) > MaxSize {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes, maximum %d", len(data), MaxSize)
	}

	out := make([]byte, len(data))
	copy(out, data)

	return &ROM{
		Data:    out,
		ID:      Identifier(hint),
		Trimmed: trimmed,
	}, nil
}

var (
	bracketed   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)
)

// Identifier derives a sanitized C identifier from a ROM file name or
// title: drop a trailing .ch8/.chip8 extension, strip bracketed/parenthesized
// metadata, lowercase, collapse non-alphanumeric runs to a single underscore,
// trim leading/trailing underscores, prefix "rom_" if the result would start
// with a digit, and fall back to "rom" if the result is empty (§3).
func Identifier(name string) string {
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".ch8") || strings.EqualFold(ext, ".chip8") {
		name = strings.TrimSuffix(name, ext)
	}
	s := bracketed.ReplaceAllString(name, "")
	s = strings.ToLower(s)
	s = nonAlphaNum.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if s == "" {
		return "rom"
	}
	if unicode.IsDigit(rune(s[0])) {
		return "rom_" + s
	}
	return s
}
