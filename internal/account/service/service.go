// Package service implements registration, login, password reset and the
// profile and settings of an account.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"churnboard/internal/account"
	"churnboard/internal/churn"
	"churnboard/internal/platform/metrics"
	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/email"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/requestcontext"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u *account.User) error
	FindByID(ctx context.Context, userID id.UserID) (*account.User, error)
	FindByEmail(ctx context.Context, email string) (*account.User, error)
	Update(ctx context.Context, u *account.User) error
}

// ResetTokenStore keeps hashed password reset tokens.
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash string, userID id.UserID, ttl time.Duration) error
	Consume(ctx context.Context, tokenHash string) (id.UserID, error)
}

// TokenGenerator issues access tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, error)
}

// DeviceDescriber names the device a login came from.
type DeviceDescriber interface {
	Describe(userAgent string) string
}

const (
	defaultTokenTTL      = 15 * time.Minute
	defaultResetTokenTTL = 30 * time.Minute
)

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

// Service manages accounts.
type Service struct {
	users   UserStore
	resets  ResetTokenStore
	tokens  TokenGenerator
	devices DeviceDescriber

	tokenTTL         time.Duration
	resetTokenTTL    time.Duration
	exposeResetToken bool
	bcryptCost       int
	dummyHash        []byte

	defaultModel         string
	defaultThresholdType string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDevices records the login device on every successful login.
func WithDevices(d DeviceDescriber) Option {
	return func(s *Service) {
		s.devices = d
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.resetTokenTTL = ttl
	}
}

// WithExposeResetToken returns reset tokens to the caller. Only for
// development, where no mail transport exists.
func WithExposeResetToken(expose bool) Option {
	return func(s *Service) {
		s.exposeResetToken = expose
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithDefaultSettings sets the prediction defaults given to new accounts.
func WithDefaultSettings(model, thresholdType string) Option {
	return func(s *Service) {
		s.defaultModel = model
		s.defaultThresholdType = thresholdType
	}
}

// New constructs a Service.
func New(users UserStore, resets ResetTokenStore, tokens TokenGenerator, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if resets == nil {
		return nil, fmt.Errorf("reset token store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token generator is required")
	}
	s := &Service{
		users:                users,
		resets:               resets,
		tokens:               tokens,
		tokenTTL:             defaultTokenTTL,
		resetTokenTTL:        defaultResetTokenTTL,
		bcryptCost:           bcrypt.DefaultCost,
		defaultModel:         churn.ModelLogistic,
		defaultThresholdType: churn.ThresholdF1,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Unknown emails are compared against this hash so login time does not
	// reveal whether an account exists.
	dummy, err := bcrypt.GenerateFromPassword([]byte("churnboard-dummy-password"), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// RegisterInput is a validated registration form.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Company  string
}

// Register creates an account. A missing name is derived from the email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*account.User, error) {
	address := email.Normalize(in.Email)
	if !email.IsValid(address) {
		return nil, dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email.DeriveNameFromEmail(address)
	}
	now := requestcontext.Now(ctx).UTC()
	u := &account.User{
		ID:                   id.NewUserID(),
		Email:                address,
		Name:                 name,
		Company:              strings.TrimSpace(in.Company),
		PasswordHash:         string(hash),
		DefaultModel:         s.defaultModel,
		DefaultThresholdType: s.defaultThresholdType,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.metrics.IncrementUsersCreated()
	s.logAudit(ctx, "user_registered", "user_id", u.ID)
	return u, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, address, password string) (*account.Session, error) {
	u, err := s.users.FindByEmail(ctx, email.Normalize(address))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.logAudit(ctx, "login_failed", "reason", "unknown_email")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logAudit(ctx, "login_failed", "user_id", u.ID, "reason", "bad_password")
		return nil, errInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(u.ID, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	now := requestcontext.Now(ctx).UTC()
	u.LastLoginAt = &now
	if s.devices != nil {
		u.LastLoginDevice = s.devices.Describe(requestcontext.UserAgent(ctx))
	}
	u.UpdatedAt = now
	if err := s.users.Update(ctx, u); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			"user_id", u.ID,
			"error", err,
		)
	}

	s.logAudit(ctx, "user_logged_in", "user_id", u.ID)
	return &account.Session{
		UserID:      u.ID,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return hash, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
