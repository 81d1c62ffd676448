// Package storage allocates the keys that locate blobs inside the blob store.
// A Key can only come from Allocate or ParseKey, so every path that reaches
// the filesystem or the bucket has been validated once.
package storage

import (
	"fmt"
	"path"
	"strings"

	"bitwise74/file-api/pkg/apperr"
)

const namespacePrefix = "user_"

// Key is a validated, relative storage key of the form
// user_<owner>/<name>. The zero value is invalid.
type Key struct {
	namespace string
	name      string
}

// Namespace returns the per-owner directory segment.
func (k Key) Namespace() string {
	return k.namespace
}

// Name returns the object name inside the namespace.
func (k Key) Name() string {
	return k.name
}

func (k Key) String() string {
	if k.IsZero() {
		return ""
	}

	return k.namespace + "/" + k.name
}

func (k Key) IsZero() bool {
	return k.namespace == "" || k.name == ""
}

// ParseKey validates a key previously produced by Allocate, usually one read
// back from the registry.
func ParseKey(s string) (Key, error) {
	ns, name, ok := strings.Cut(s, "/")
	if !ok {
		return Key{}, fmt.Errorf("%w: malformed storage key", apperr.ErrValidation)
	}

	if !strings.HasPrefix(ns, namespacePrefix) || !isSafeSegment(strings.TrimPrefix(ns, namespacePrefix)) {
		return Key{}, fmt.Errorf("%w: invalid storage namespace", apperr.ErrValidation)
	}

	if !isSafeSegment(name) {
		return Key{}, fmt.Errorf("%w: invalid storage name", apperr.ErrValidation)
	}

	if path.Clean(s) != s {
		return Key{}, fmt.Errorf("%w: storage key is not canonical", apperr.ErrValidation)
	}

	return Key{namespace: ns, name: name}, nil
}

// isSafeSegment reports whether s can be used verbatim as one path element.
func isSafeSegment(s string) bool {
	if s == "" || s == "." || s == ".." || strings.Contains(s, "..") {
		return false
	}

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}

	return true
}
