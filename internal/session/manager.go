// Package session tracks which user each browser is signed in as.
//
// A browser carries an HMAC-signed opaque token in a cookie. The token maps
// to a server-side session row, which points at a user. A browser without a
// valid token gets a freshly provisioned guest account.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/todoweb/internal/credential"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/store"
)

var (
	// ErrNoSession means the cookie is missing, forged, or stale.
	ErrNoSession = errors.New("no session")

	// ErrNotRegistered means no account uses the given email.
	ErrNotRegistered = errors.New("email not registered")

	// ErrWrongPassword means the account exists but the password is wrong.
	ErrWrongPassword = errors.New("wrong password")
)

// guestDigits is the length of the random number in guest emails and
// guest passwords.
const guestDigits = 12

// provisionAttempts bounds retries when a random guest email collides.
const provisionAttempts = 3

// Identity is the resolved user behind a request.
type Identity struct {
	Token string
	User  model.User
}

// IsGuest reports whether the identity is a guest account.
func (id *Identity) IsGuest() bool {
	return id.User.IsGuest()
}

// Manager issues, resolves, rebinds and ends sessions.
type Manager struct {
	store  store.Store
	hasher *credential.Hasher
	secret []byte
	logger *slog.Logger
}

// NewManager returns a Manager signing cookies with secret.
func NewManager(s store.Store, hasher *credential.Hasher, secret []byte, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  s,
		hasher: hasher,
		secret: secret,
		logger: logger.With("component", "session"),
	}
}

// Sign returns the cookie value for token.
func (m *Manager) Sign(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(token))
	return token + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a cookie value's signature and returns its token.
func (m *Manager) Verify(value string) (string, error) {
	token, sig, ok := strings.Cut(strings.TrimSpace(value), ".")
	if !ok || token == "" {
		return "", ErrNoSession
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrNoSession
	}
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(token))
	if !hmac.Equal(mac.Sum(nil), got) {
		return "", ErrNoSession
	}
	return token, nil
}

// Resolve loads the identity behind a signed cookie value.
func (m *Manager) Resolve(ctx context.Context, cookie string) (*Identity, error) {
	token, err := m.Verify(cookie)
	if err != nil {
		return nil, err
	}

	sess, err := m.store.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}

	user, err := m.store.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session user: %w", err)
	}

	if err := m.store.TouchSession(ctx, token); err != nil {
		m.logger.Warn("touching session failed", "user_id", user.ID, "error", err)
	}
	return &Identity{Token: token, User: *user}, nil
}

// Provision issues a new token bound to a new guest account.
func (m *Manager) Provision(ctx context.Context) (*Identity, error) {
	return m.EnsureGuest(ctx, uuid.NewString())
}

// EnsureGuest returns the identity bound to token, creating a guest account
// for it when the token is new. Calling it twice with one token yields the
// same user.
func (m *Manager) EnsureGuest(ctx context.Context, token string) (*Identity, error) {
	var lastErr error
	for attempt := 0; attempt < provisionAttempts; attempt++ {
		guest, err := m.newGuest()
		if err != nil {
			return nil, err
		}

		user, err := m.store.CreateGuestSession(ctx, token, guest)
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("provisioning guest: %w", err)
		}

		if user.Email == guest.Email {
			m.logger.Info("guest provisioned", "user_id", user.ID)
		}
		return &Identity{Token: token, User: *user}, nil
	}
	return nil, fmt.Errorf("provisioning guest after %d attempts: %w", provisionAttempts, lastErr)
}

func (m *Manager) newGuest() (model.User, error) {
	suffix, err := credential.RandomDigits(guestDigits)
	if err != nil {
		return model.User{}, err
	}
	password, err := credential.RandomDigits(guestDigits)
	if err != nil {
		return model.User{}, err
	}
	hash, err := m.hasher.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		Email:        model.GuestEmailPrefix + suffix,
		PasswordHash: hash,
	}, nil
}

// Login checks email and password and, on success, signs the session in
// as that account. The returned identity carries a rotated token.
func (m *Manager) Login(ctx context.Context, id *Identity, email, password string) (*Identity, error) {
	user, err := m.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if err := m.hasher.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, credential.ErrPasswordMismatch) {
			return nil, ErrWrongPassword
		}
		return nil, err
	}

	next, err := m.Bind(ctx, id, *user)
	if err != nil {
		return nil, err
	}
	m.logger.Info("logged in", "user_id", user.ID)
	return next, nil
}

// Bind points the session at user under a fresh token. Pending flashes
// carry over.
func (m *Manager) Bind(ctx context.Context, id *Identity, user model.User) (*Identity, error) {
	token := uuid.NewString()
	old := ""
	if id != nil {
		old = id.Token
	}
	if err := m.store.RebindSession(ctx, old, token, user.ID); err != nil {
		return nil, fmt.Errorf("binding session to user %d: %w", user.ID, err)
	}
	return &Identity{Token: token, User: user}, nil
}

// Logout ends the session. The next request will provision a new guest.
func (m *Manager) Logout(ctx context.Context, id *Identity) error {
	if err := m.store.DeleteSession(ctx, id.Token); err != nil {
		return err
	}
	m.logger.Info("logged out", "user_id", id.User.ID)
	return nil
}

// AddFlash queues a message for the session's next view.
func (m *Manager) AddFlash(ctx context.Context, id *Identity, message string) error {
	return m.store.AppendFlash(ctx, id.Token, message)
}

// PopFlashes returns and clears queued messages.
func (m *Manager) PopFlashes(ctx context.Context, id *Identity) ([]string, error) {
	return m.store.PopFlashes(ctx, id.Token)
}
