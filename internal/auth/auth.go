// Package auth implements phone-code and email/password sign-in on top of
// the user store, issuing HS256 session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/index"
	"github.com/starford/noteshare/internal/models"
)

const (
	defaultTokenTTL    = 30 * 24 * time.Hour
	defaultCodeTTL     = 5 * time.Minute
	defaultMaxAttempts = 5
	codeDigits         = 6
)

// CodeSender delivers a verification code to a phone number.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log instead of sending an SMS. Suitable for
// local development only.
type LogSender struct {
	Logger *slog.Logger
}

// SendCode logs the code at info level.
func (s LogSender) SendCode(_ context.Context, phone, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("auth: verification code", slog.String("phone", phone), slog.String("code", code))
	return nil
}

// Session is returned by every successful sign-in.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type claims struct {
	jwt.StandardClaims
}

// Service coordinates sign-in flows.
type Service struct {
	users       index.UserStore
	sender      CodeSender
	secret      []byte
	tokenTTL    time.Duration
	codeTTL     time.Duration
	maxAttempts int
	bcryptCost  int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTokenTTL sets the session lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tokenTTL = d
		}
	}
}

// WithCodeTTL sets how long a phone code stays valid.
func WithCodeTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an auth service signing tokens with secret.
func NewService(users index.UserStore, sender CodeSender, secret string, opts ...Option) *Service {
	s := &Service{
		users:       users,
		sender:      sender,
		secret:      []byte(secret),
		tokenTTL:    defaultTokenTTL,
		codeTTL:     defaultCodeTTL,
		maxAttempts: defaultMaxAttempts,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// e164 narrows is.E164, which accepts a missing "+" and two-digit numbers.
var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// SendCode starts a phone sign-in and returns the verification ID the client
// must echo back with the code.
func (s *Service) SendCode(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if err := validation.Validate(phone, validation.Required, is.E164, validation.Match(e164)); err != nil {
		return "", fmt.Errorf("%w: phone: %v", apperr.ErrInvalid, err)
	}
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("auth: generate code: %w", err)
	}
	v := models.Verification{
		ID:        uuid.NewString(),
		Phone:     phone,
		Code:      code,
		ExpiresAt: s.now().Add(s.codeTTL),
	}
	if err := s.users.SaveVerification(ctx, v); err != nil {
		return "", err
	}
	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		_ = s.users.DeleteVerification(ctx, v.ID)
		return "", fmt.Errorf("auth: send code: %w", err)
	}
	return v.ID, nil
}

// ConfirmCode completes a phone sign-in. The account is created on first use.
func (s *Service) ConfirmCode(ctx context.Context, verificationID, code string) (*Session, error) {
	v, err := s.users.GetVerification(ctx, verificationID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, err
	}
	if s.now().After(v.ExpiresAt) || v.Attempts >= s.maxAttempts {
		_ = s.users.DeleteVerification(ctx, v.ID)
		return nil, apperr.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(strings.TrimSpace(code))) != 1 {
		if err := s.users.IncrementAttempts(ctx, v.ID); err != nil {
			return nil, err
		}
		return nil, apperr.ErrUnauthorized
	}
	if err := s.users.DeleteVerification(ctx, v.ID); err != nil {
		return nil, err
	}

	u, err := s.users.UserByPhone(ctx, v.Phone)
	if errors.Is(err, apperr.ErrNotFound) {
		u = &models.User{ID: newUserID(), Phone: v.Phone, CreatedAt: s.now().UTC()}
		err = s.users.CreateUser(ctx, *u)
	}
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// SignUp registers an email/password account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	u := &models.User{
		ID:           newUserID(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, *u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// SignIn checks an email/password pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, apperr.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.issue(u)
}

// Verify validates a session token and returns the user ID it was issued to.
func (s *Service) Verify(token string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" {
		return "", apperr.ErrUnauthorized
	}
	return c.Subject, nil
}

func (s *Service) issue(u *models.User) (*Session, error) {
	now := s.now()
	exp := now.Add(s.tokenTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{StandardClaims: jwt.StandardClaims{
		Subject:   u.ID,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	}})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: exp, User: u}, nil
}

func validateCredentials(email, password string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return fmt.Errorf("%w: email: %v", apperr.ErrInvalid, err)
	}
	// bcrypt ignores everything past 72 bytes.
	if err := validation.Validate(password, validation.Required, validation.Length(6, 72)); err != nil {
		return fmt.Errorf("%w: password: %v", apperr.ErrInvalid, err)
	}
	return nil
}

func randomCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func newUserID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
