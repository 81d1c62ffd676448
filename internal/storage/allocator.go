package storage

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"bitwise74/file-api/pkg/apperr"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen      = 10
	maxNameLen     = 100
	maxExtLen      = 16
	maxOwnerLen    = 64
)

// Allocate derives a fresh storage key for a file named filename owned by
// ownerID. The key combines the owner namespace, ts in nanoseconds and a
// random suffix, so two calls never return the same key even for the same
// owner, name and instant. It does no I/O.
func Allocate(ownerID, filename string, ts time.Time) (Key, error) {
	if len(ownerID) > maxOwnerLen || !isSafeSegment(ownerID) {
		return Key{}, fmt.Errorf("%w: invalid owner id", apperr.ErrValidation)
	}

	if err := CheckFilename(filename); err != nil {
		return Key{}, err
	}

	suffix, err := gonanoid.Generate(suffixAlphabet, suffixLen)
	if err != nil {
		return Key{}, fmt.Errorf("failed to generate key suffix, %w", err)
	}

	name := strconv.FormatInt(ts.UnixNano(), 10) + "_" + suffix + "_" + sanitize(filename)

	return Key{
		namespace: namespacePrefix + ownerID,
		name:      name,
	}, nil
}

// CheckFilename rejects names that could be used for path traversal.
func CheckFilename(filename string) error {
	switch {
	case strings.TrimSpace(filename) == "", filename == ".":
		return fmt.Errorf("%w: file name can't be empty", apperr.ErrValidation)
	case !utf8.ValidString(filename):
		return fmt.Errorf("%w: file name must be valid UTF-8", apperr.ErrValidation)
	case strings.Contains(filename, ".."):
		return fmt.Errorf("%w: file name can't contain '..'", apperr.ErrValidation)
	case strings.ContainsAny(filename, "/\\\x00"):
		return fmt.Errorf("%w: file name can't contain path separators", apperr.ErrValidation)
	case path.IsAbs(filename) || isWindowsAbs(filename):
		return fmt.Errorf("%w: file name can't be an absolute path", apperr.ErrValidation)
	}

	return nil
}

func isWindowsAbs(s string) bool {
	return len(s) >= 2 && s[1] == ':' && ((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z'))
}

// sanitize maps filename onto the characters accepted by isSafeSegment and
// bounds its length while keeping the extension.
func sanitize(filename string) string {
	ext := path.Ext(filename)
	if len(ext) > maxExtLen {
		ext = ""
	}
	base := strings.TrimSuffix(filename, ext)

	clean := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
		return b.String()
	}

	base = clean(base)
	if base == "" {
		base = "file"
	}

	if ext != "" {
		ext = "." + clean(strings.TrimPrefix(ext, "."))
	}

	if len(base)+len(ext) > maxNameLen {
		base = base[:maxNameLen-len(ext)]
	}

	return base + ext
}
