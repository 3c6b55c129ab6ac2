package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/google/uuid"

	"securedocs/internal/auth"
	"securedocs/internal/cryptox"
	"securedocs/internal/domain"
	"securedocs/internal/lockout"
	"securedocs/internal/logging"
	"securedocs/internal/metrics"
)

const minPasswordLength = 8

const verificationSentMessage = "Verification email sent successfully"

type SignupResult struct {
	Message      string `json:"message"`
	EncryptedURL string `json:"encrypted_url"`
}

type Session struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

// UserService covers accounts: signup, email verification, login and lookups.
type UserService struct {
	users   UserStore
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenManager
	codec   *cryptox.Codec
	lockout lockout.Lockout
	baseURL string
	metrics *metrics.Metrics
	log     logging.Logger
}

func NewUserService(
	users UserStore,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	codec *cryptox.Codec,
	lock lockout.Lockout,
	publicBaseURL string,
	m *metrics.Metrics,
	log logging.Logger,
) *UserService {
	return &UserService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		codec:   codec,
		lockout: lock,
		baseURL: publicBaseURL,
		metrics: m,
		log:     log.With("component", "users"),
	}
}

// Signup creates an unverified client account and returns the sealed verification link.
func (s *UserService) Signup(ctx context.Context, email, password string) (*SignupResult, error) {
	email = domain.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	token, err := generateToken(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &domain.User{
		ID:                uuid.New(),
		Email:             email,
		PasswordHash:      hash,
		Role:              domain.RoleClient,
		VerificationToken: &token,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	sealed, err := s.sealedVerificationURL(token)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "client signed up", "user_id", user.ID)
	return &SignupResult{Message: verificationSentMessage, EncryptedURL: sealed}, nil
}

// IssueVerification rotates the pending verification token of an unverified user and
// returns the new sealed link.
func (s *UserService) IssueVerification(ctx context.Context, email, password string) (*SignupResult, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if user.Verified {
		return nil, domain.Detailed(domain.ErrInvalidInput, "Email already verified")
	}

	token, err := generateToken(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, token); err != nil {
		return nil, fmt.Errorf("store verification token: %w", err)
	}

	sealed, err := s.sealedVerificationURL(token)
	if err != nil {
		return nil, err
	}
	return &SignupResult{Message: verificationSentMessage, EncryptedURL: sealed}, nil
}

func (s *UserService) sealedVerificationURL(token string) (string, error) {
	link := s.baseURL + "/api/auth/verify-email?token=" + url.QueryEscape(token)
	sealed, err := s.codec.Seal(link)
	if err != nil {
		return "", fmt.Errorf("seal verification link: %w", err)
	}
	return s.baseURL + "/api/auth/verify/" + sealed, nil
}

// RedeemVerification verifies the account holding token. The token is cleared in the same
// update, so it cannot be replayed.
func (s *UserService) RedeemVerification(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidToken
	}
	if err := s.users.VerifyByToken(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("verify email: %w", err)
	}
	s.log.Info(ctx, "email verified")
	return nil
}

// RedeemSealedVerification opens a link produced by Signup and redeems the token inside it.
func (s *UserService) RedeemSealedVerification(ctx context.Context, sealed string) error {
	link, err := s.codec.Open(sealed)
	if err != nil {
		return domain.ErrInvalidToken
	}
	u, err := url.Parse(link)
	if err != nil {
		return domain.ErrInvalidToken
	}
	return s.RedeemVerification(ctx, u.Query().Get("token"))
}

func (s *UserService) Login(ctx context.Context, email, password, userType string) (*Session, error) {
	email = domain.NormalizeEmail(email)

	role, err := domain.ParseRole(userType)
	if err != nil {
		s.metrics.Logins.WithLabelValues(metrics.LoginInvalid).Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.lockout.Check(ctx, email); err != nil {
		s.metrics.Logins.WithLabelValues(metrics.LoginLocked).Inc()
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !s.hasher.Check(password, user.PasswordHash) || user.Role != role {
		if ferr := s.lockout.Fail(ctx, email); ferr != nil {
			s.log.Warn(ctx, "failed to record failed login", "error", ferr)
		}
		s.metrics.Logins.WithLabelValues(metrics.LoginInvalid).Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if user.Role == domain.RoleClient && !user.Verified {
		s.metrics.Logins.WithLabelValues(metrics.LoginUnverified).Inc()
		return nil, domain.ErrEmailNotVerified
	}

	if err := s.lockout.Reset(ctx, email); err != nil {
		s.log.Warn(ctx, "failed to reset login failures", "error", err)
	}

	token, err := s.tokens.Issue(domain.Identity{UserID: user.ID, Role: user.Role}, s.tokens.TTL())
	if err != nil {
		return nil, err
	}

	s.metrics.Logins.WithLabelValues(metrics.LoginOK).Inc()
	s.log.Info(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return &Session{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// Me returns the caller's account. A session for a deleted account is treated as invalid.
func (s *UserService) Me(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	if err := Authorize(caller.Role, OperationViewProfile); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, caller domain.Identity) ([]domain.User, error) {
	if err := Authorize(caller.Role, OperationListUsers); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// EnsureOpsUser provisions a verified ops account unless the email is already registered.
func (s *UserService) EnsureOpsUser(ctx context.Context, email, password string) error {
	email = domain.NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	created, err := s.users.CreateIfAbsent(ctx, &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleOps,
		Verified:     true,
	})
	if err != nil {
		return fmt.Errorf("provision ops user: %w", err)
	}
	if created {
		s.log.Info(ctx, "provisioned ops user", "email", email)
		return nil
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup ops user: %w", err)
	}
	if existing.Role != domain.RoleOps {
		s.log.Warn(ctx, "ops bootstrap email already registered with another role",
			"email", email, "role", existing.Role)
	}
	return nil
}

func validateCredentials(email, password string) error {
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Detailed(domain.ErrInvalidInput, "A valid email address is required")
	}
	if len(password) < minPasswordLength {
		return domain.Detailed(domain.ErrInvalidInput,
			fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	return nil
}
