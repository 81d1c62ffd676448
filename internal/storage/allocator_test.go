package storage

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bitwise74/file-api/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateLayout(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)

	key, err := Allocate("42", "report.pdf", ts)
	require.NoError(t, err)

	assert.Equal(t, "user_42", key.Namespace())
	assert.True(t, strings.HasPrefix(key.Name(), "1700000000123456789_"))
	assert.True(t, strings.HasSuffix(key.Name(), "_report.pdf"))
	assert.Equal(t, key.Namespace()+"/"+key.Name(), key.String())

	parsed, err := ParseKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestAllocateRejectsTraversal(t *testing.T) {
	names := []string{
		"",
		"   ",
		".",
		"..",
		"../etc/passwd",
		"a/../../b",
		"dir/file.txt",
		`dir\file.txt`,
		"/etc/passwd",
		`C:\Windows\win.ini`,
		"C:evil",
		"nul\x00byte",
		"ok..txt",
	}

	for _, name := range names {
		_, err := Allocate("1", name, time.Now())
		assert.Truef(t, errors.Is(err, apperr.ErrValidation), "expected validation error for %q, got %v", name, err)
	}
}

func TestAllocateRejectsBadOwner(t *testing.T) {
	for _, owner := range []string{"", "..", "a/b", "a b", strings.Repeat("x", 65)} {
		_, err := Allocate(owner, "file.txt", time.Now())
		assert.Truef(t, errors.Is(err, apperr.ErrValidation), "owner %q", owner)
	}
}

func TestAllocateSanitizesName(t *testing.T) {
	key, err := Allocate("7", "отчёт за май.tar gz", time.Now())
	require.NoError(t, err)

	_, err = ParseKey(key.String())
	require.NoError(t, err)
	assert.NotContains(t, key.Name(), " ")

	long := strings.Repeat("a", 300) + ".txt"
	key, err = Allocate("7", long, time.Now())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key.Name(), ".txt"))
	assert.LessOrEqual(t, len(key.Name()), 20+1+suffixLen+1+maxNameLen)
}

func TestAllocateUniqueUnderConcurrency(t *testing.T) {
	// Every goroutine uses the same owner, name and instant.
	ts := time.Now()
	const n = 500

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]struct{}, n)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			key, err := Allocate("1", "same.bin", ts)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			seen[key.String()] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestParseKeyRejectsEscapes(t *testing.T) {
	bad := []string{
		"",
		"user_1",
		"user_1/",
		"/user_1/a",
		"user_1/../a",
		"user_../a",
		"other/a",
		"user_1/a/b",
		"user_1/a b",
	}

	for _, s := range bad {
		_, err := ParseKey(s)
		assert.Truef(t, errors.Is(err, apperr.ErrValidation), "expected %q to be rejected", s)
	}
}

func TestZeroKey(t *testing.T) {
	var k Key
	assert.True(t, k.IsZero())
	assert.Equal(t, "", k.String())
}
