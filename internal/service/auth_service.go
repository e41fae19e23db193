package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bnka/portal/internal/ids"
	"bnka/portal/internal/models"
	"bnka/portal/internal/repository"
	"bnka/portal/internal/security"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrUsernameTaken            = errors.New("username already taken")
	ErrInvalidInput             = errors.New("username and password required")
	ErrIdentityStoreUnavailable = errors.New("identity store unavailable")
)

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash []byte) error
}

type AuthService struct {
	users      UserStore
	sessions   SessionStore
	hasher     *security.Hasher
	sessionTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	hasher *security.Hasher,
	sessionTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		sessionTTL: sessionTTL,
		log:        log,
		now:        time.Now,
	}
}

type Profile struct {
	FullName string
	Email    string
	Phone    string
}

type RegisterInput struct {
	Username string
	Password string
	Profile  Profile
}

// Register creates a credential record. The password is hashed exactly once,
// after the username has been checked and before anything is stored.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	username := normalizeUsername(input.Username)
	if username == "" || input.Password == "" {
		return models.User{}, ErrInvalidInput
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, s.storeFailure("find user", err)
	}

	passwordHash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		Username:     username,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(input.Profile.FullName),
		Email:        optional(input.Profile.Email),
		Phone:        optional(input.Profile.Phone),
	})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, s.storeFailure("create user", err)
	}

	s.log.Info().Int64("user_id", user.ID).Msg("user registered")
	return user, nil
}

type LoginStatus int

const (
	LoginRejected LoginStatus = iota
	LoginAuthenticated
)

func (s LoginStatus) String() string {
	if s == LoginAuthenticated {
		return "authenticated"
	}
	return "rejected"
}

// LoginOutcome is the result of a login attempt that reached a decision.
// Token is only set when Status is LoginAuthenticated.
type LoginOutcome struct {
	Status  LoginStatus
	User    models.User
	Session models.Session
	Token   string
}

func (o LoginOutcome) Authenticated() bool {
	return o.Status == LoginAuthenticated
}

func (o LoginOutcome) Err() error {
	if o.Authenticated() {
		return nil
	}
	return ErrInvalidCredentials
}

type LoginInput struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// Login never distinguishes an unknown username from a wrong password. The
// returned error is reserved for store and hashing faults.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginOutcome, error) {
	rejected := LoginOutcome{Status: LoginRejected}

	user, err := s.users.FindByUsername(ctx, normalizeUsername(input.Username))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return rejected, s.storeFailure("find user", err)
		}
		if err := s.hasher.DummyCompare(ctx, input.Password); err != nil {
			return rejected, fmt.Errorf("compare password: %w", err)
		}
		return rejected, nil
	}

	ok, err := s.hasher.Compare(ctx, input.Password, user.PasswordHash)
	if err != nil {
		return rejected, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return rejected, nil
	}

	token, tokenHash, err := security.GenerateSessionToken()
	if err != nil {
		return rejected, err
	}

	session := models.Session{
		ID:        ids.New(),
		UserID:    s.SerializeUser(user),
		TokenHash: tokenHash,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: s.now(),
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return rejected, s.storeFailure("create session", err)
	}

	return LoginOutcome{
		Status:  LoginAuthenticated,
		User:    user,
		Session: session,
		Token:   token,
	}, nil
}

// Logout destroys the server-side session. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, security.HashSessionToken(token))
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return s.storeFailure("delete session", err)
	}
	return nil
}

// CurrentUser resolves a session token to its user. Unknown, expired, or
// orphaned sessions report false with a nil error.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (models.User, bool, error) {
	if token == "" {
		return models.User{}, false, nil
	}

	tokenHash := security.HashSessionToken(token)
	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.User{}, false, nil
		}
		return models.User{}, false, s.storeFailure("read session", err)
	}

	if session.Expired(s.now()) {
		if err := s.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("delete expired session failed")
		}
		return models.User{}, false, nil
	}

	return s.DeserializeUser(ctx, session.UserID)
}

// SerializeUser returns the only piece of the user that enters the session store.
func (s *AuthService) SerializeUser(user models.User) int64 {
	return user.ID
}

func (s *AuthService) DeserializeUser(ctx context.Context, id int64) (models.User, bool, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, false, nil
		}
		return models.User{}, false, s.storeFailure("get user", err)
	}
	return user, true, nil
}

func (s *AuthService) storeFailure(op string, err error) error {
	s.log.Error().Err(err).Str("op", op).Msg("identity store failure")
	return fmt.Errorf("%w: %s: %w", ErrIdentityStoreUnavailable, op, err)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
