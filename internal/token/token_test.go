package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/registry"
	"bitwise74/file-api/internal/storage"
	"bitwise74/file-api/internal/testutil"
	"bitwise74/file-api/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	alice = auth.Identity{UserID: "alice"}
	bob   = auth.Identity{UserID: "bob"}
	admin = auth.Identity{UserID: "root", IsAdmin: true}
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	db    *gorm.DB
	reg   *registry.Registry
	svc   *Service
	clock *clock
	file  *model.File
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	d := testutil.NewDB(t)
	blobs := testutil.NewLocalStore(t)
	reg := registry.New(d, blobs)

	c := &clock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	svc := New(d, reg, config.Token{DefaultValidity: 10 * time.Minute, MaxValidity: 24 * time.Hour})
	svc.Now = c.Now

	key, err := storage.Allocate("alice", "doc.txt", c.t)
	require.NoError(t, err)
	n, err := blobs.Write(context.Background(), key, strings.NewReader("doc"))
	require.NoError(t, err)
	f, err := reg.Create(context.Background(), "alice", "doc.txt", key, n, "text/plain")
	require.NoError(t, err)

	return &fixture{db: d, reg: reg, svc: svc, clock: c, file: f}
}

func TestIssueDefaults(t *testing.T) {
	f := newFixture(t)

	tok, err := f.svc.Issue(context.Background(), f.file.ID, alice, 0)
	require.NoError(t, err)

	assert.Len(t, tok.Token, 32)
	assert.Equal(t, f.file.ID, tok.FileID)
	assert.Equal(t, "alice", tok.IssuedByUserID)
	assert.True(t, tok.CreatedAt.Equal(f.clock.t))
	assert.True(t, tok.ExpiresAt.Equal(f.clock.t.Add(10*time.Minute)))
}

func TestIssueCustomValidity(t *testing.T) {
	f := newFixture(t)

	tok, err := f.svc.Issue(context.Background(), f.file.ID, alice, time.Hour)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.Equal(f.clock.t.Add(time.Hour)))

	_, err = f.svc.Issue(context.Background(), f.file.ID, alice, 48*time.Hour)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestIssueAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, f.file.ID, bob, 0)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	tok, err := f.svc.Issue(ctx, f.file.ID, admin, 0)
	require.NoError(t, err)
	assert.Equal(t, "root", tok.IssuedByUserID)

	_, err = f.svc.Issue(ctx, 4242, alice, 0)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestIssueManyLiveTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Issue(ctx, f.file.ID, alice, 0)
	require.NoError(t, err)
	b, err := f.svc.Issue(ctx, f.file.ID, alice, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)

	for _, tok := range []string{a.Token, b.Token} {
		_, err := f.svc.Validate(ctx, tok)
		assert.NoError(t, err)
	}
}

func TestValidateExpiryWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issuedAt := f.clock.t

	tok, err := f.svc.Issue(ctx, f.file.ID, alice, 10*time.Minute)
	require.NoError(t, err)

	f.clock.t = issuedAt.Add(9*time.Minute + 59*time.Second)
	got, err := f.svc.Validate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, f.file.ID, got.ID)

	f.clock.t = issuedAt.Add(10 * time.Minute)
	_, err = f.svc.Validate(ctx, tok.Token)
	assert.True(t, errors.Is(err, apperr.ErrExpired), "expiry instant itself is expired")

	f.clock.t = issuedAt.Add(10*time.Minute + time.Second)
	_, err = f.svc.Validate(ctx, tok.Token)
	assert.True(t, errors.Is(err, apperr.ErrExpired))
	assert.False(t, errors.Is(err, apperr.ErrNotFound))
}

func TestValidateUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Validate(ctx, strings.Repeat("0", 32))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Validate(ctx, "../../etc/passwd")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Validate(ctx, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestValidateAfterFileDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.svc.Issue(ctx, f.file.ID, alice, 0)
	require.NoError(t, err)

	require.NoError(t, f.reg.Delete(ctx, f.file.ID, alice))

	_, err = f.svc.Validate(ctx, tok.Token)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestValidateSurvivesRenameAndComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.svc.Issue(ctx, f.file.ID, alice, 0)
	require.NoError(t, err)

	_, err = f.reg.Rename(ctx, f.file.ID, alice, "renamed.txt")
	require.NoError(t, err)
	_, err = f.reg.UpdateComment(ctx, f.file.ID, alice, "note")
	require.NoError(t, err)

	got, err := f.svc.Validate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", got.OriginalName)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	short, err := f.svc.Issue(ctx, f.file.ID, alice, time.Minute)
	require.NoError(t, err)
	long, err := f.svc.Issue(ctx, f.file.ID, alice, time.Hour)
	require.NoError(t, err)

	n, err := f.svc.PurgeExpired(ctx, f.clock.t.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	f.clock.t = f.clock.t.Add(5 * time.Minute)
	_, err = f.svc.Validate(ctx, short.Token)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Validate(ctx, long.Token)
	assert.NoError(t, err)
}

func TestRunReaper(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(context.Background(), f.file.ID, alice, time.Minute)
	require.NoError(t, err)

	f.svc.Now = func() time.Time { return f.clock.t.Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunReaper(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		var n int64
		f.db.Model(&model.DownloadToken{}).Count(&n)
		return n == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

func TestRunReaperDisabled(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	go func() {
		f.svc.RunReaper(context.Background(), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero interval must return immediately")
	}
}
