package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/todoweb/internal/credential"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/tests/testutil"
)

func newTestManager(t *testing.T) (*Manager, *credential.Hasher) {
	t.Helper()
	s := testutil.NewTestStore(t)
	h := credential.NewHasher(bcrypt.MinCost)
	return NewManager(s, h, []byte("test-secret"), nil), h
}

func TestSignVerify(t *testing.T) {
	m, _ := newTestManager(t)

	signed := m.Sign("abc-123")
	token, err := m.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", token)

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"no signature", "abc-123"},
		{"tampered token", "abd-123" + signed[len("abc-123"):]},
		{"bad encoding", "abc-123.!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.value)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}

	other := NewManager(m.store, m.hasher, []byte("other-secret"), nil)
	_, err = other.Verify(signed)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestProvision_CreatesGuest(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Provision(ctx)
	require.NoError(t, err)

	assert.True(t, id.IsGuest())
	assert.True(t, strings.HasPrefix(id.User.Email, model.GuestEmailPrefix))
	assert.NotContains(t, id.User.Email, "@")

	resolved, err := m.Resolve(ctx, m.Sign(id.Token))
	require.NoError(t, err)
	assert.Equal(t, id.User.ID, resolved.User.ID)
}

func TestEnsureGuest_SameTokenSameUser(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.EnsureGuest(ctx, "fixed-token")
	require.NoError(t, err)
	b, err := m.EnsureGuest(ctx, "fixed-token")
	require.NoError(t, err)

	assert.Equal(t, a.User.ID, b.User.ID)
}

func TestResolve_UnknownToken(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Resolve(context.Background(), m.Sign("never-issued"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogin(t *testing.T) {
	m, h := newTestManager(t)
	ctx := context.Background()

	hash, err := h.HashPassword("pw")
	require.NoError(t, err)
	account, _, err := m.store.RegisterUser(ctx, model.User{Email: "a@example.com", PasswordHash: hash}, nil)
	require.NoError(t, err)

	guest, err := m.Provision(ctx)
	require.NoError(t, err)

	_, err = m.Login(ctx, guest, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = m.Login(ctx, guest, "a@example.com", "nope")
	assert.ErrorIs(t, err, ErrWrongPassword)

	id, err := m.Login(ctx, guest, "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, account.ID, id.User.ID)
	assert.NotEqual(t, guest.Token, id.Token)
	assert.False(t, id.IsGuest())

	// The old token no longer resolves.
	_, err = m.Resolve(ctx, m.Sign(guest.Token))
	assert.ErrorIs(t, err, ErrNoSession)

	resolved, err := m.Resolve(ctx, m.Sign(id.Token))
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.User.ID)
}

func TestLogout_NextRequestIsNewGuest(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Provision(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, id))

	_, err = m.Resolve(ctx, m.Sign(id.Token))
	assert.ErrorIs(t, err, ErrNoSession)

	next, err := m.Provision(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, id.User.ID, next.User.ID)
}

func TestFlashes(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Provision(ctx)
	require.NoError(t, err)

	require.NoError(t, m.AddFlash(ctx, id, "Page name already existed."))
	flashes, err := m.PopFlashes(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page name already existed."}, flashes)
}
