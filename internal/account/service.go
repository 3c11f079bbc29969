// Package account registers accounts and carries a guest's data over to
// the account it registers.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/todoweb/internal/credential"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/session"
	"github.com/nhle/todoweb/internal/store"
)

var (
	// ErrAlreadyRegistered means an account already uses the email.
	ErrAlreadyRegistered = errors.New("email already registered")

	// ErrInvalid wraps validation failures of registration input.
	ErrInvalid = errors.New("invalid registration")
)

// Registration is the input of Register.
type Registration struct {
	Email    string `validate:"required,email,max=100"`
	Password string `validate:"required,max=72"`
}

// Service registers accounts.
type Service struct {
	store    store.Store
	hasher   *credential.Hasher
	sessions *session.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService returns an account Service.
func NewService(s store.Store, hasher *credential.Hasher, sessions *session.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		hasher:   hasher,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger.With("component", "account"),
	}
}

// Register creates an account and signs the acting session in as it. If
// the acting identity is a guest, its tasks, completed tasks and pages move
// to the new account. On any failure the acting session is left unchanged.
func (s *Service) Register(ctx context.Context, actor *session.Identity, reg Registration) (*session.Identity, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := s.validate.Struct(reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if _, err := s.store.GetUserByEmail(ctx, reg.Email); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.hasher.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	var guestID *int64
	if actor != nil && actor.IsGuest() {
		guestID = &actor.User.ID
	}

	user, moved, err := s.store.RegisterUser(ctx, model.User{Email: reg.Email, PasswordHash: hash}, guestID)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("registering account: %w", err)
	}

	attrs := []any{"user_id", user.ID}
	if guestID != nil {
		attrs = append(attrs,
			"guest_id", *guestID,
			"tasks", moved.Tasks,
			"done_tasks", moved.DoneTasks,
			"pages", moved.Pages)
	}
	s.logger.Info("account registered", attrs...)

	return s.sessions.Bind(ctx, actor, *user)
}

// Authenticate signs the acting session in as an existing account.
func (s *Service) Authenticate(ctx context.Context, actor *session.Identity, email, password string) (*session.Identity, error) {
	return s.sessions.Login(ctx, actor, email, password)
}
