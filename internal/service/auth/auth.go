// Package auth implements phone login with one-time codes and issues bearer tokens.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/logger"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// OTPStore keeps one pending code hash per phone.
type OTPStore interface {
	Save(ctx context.Context, phone, hash string, ttl time.Duration) error
	// Take returns the pending hash and removes it.
	Take(ctx context.Context, phone string) (string, bool, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

// Sender delivers a code to the phone.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender only logs that a code was issued.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) SendOTP(_ context.Context, phone, _ string) error {
	s.Log.Info("otp issued", zap.String("phone", maskPhone(phone)))
	return nil
}

type Config struct {
	OTPTTL    time.Duration
	OTPLength int
	// Echo returns the code in the response. Development only.
	Echo bool
}

type Service struct {
	uow     uow.Runner
	otps    OTPStore
	limiter Limiter
	sender  Sender
	tokens  *Tokens
	log     *zap.Logger
	cfg     Config
}

// New builds the auth service. limiter may be nil.
func New(
	runner uow.Runner,
	otps OTPStore,
	limiter Limiter,
	sender Sender,
	tokens *Tokens,
	log *zap.Logger,
	cfg Config,
) *Service {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		cfg.OTPLength = 6
	}
	if log == nil {
		log = zap.NewNop()
	}
	if sender == nil {
		sender = LogSender{Log: log}
	}

	return &Service{
		uow:     runner,
		otps:    otps,
		limiter: limiter,
		sender:  sender,
		tokens:  tokens,
		log:     log,
		cfg:     cfg,
	}
}

func (s *Service) Tokens() *Tokens {
	return s.tokens
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// NormalizePhone strips spaces and dashes and checks the result is 10 to 15 digits
// with an optional leading plus.
func NormalizePhone(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	if !phonePattern.MatchString(p) {
		return "", domain.ValidationError{Field: "phone", Reason: "10 to 15 digits"}
	}
	return p, nil
}

type OTPResult struct {
	ExpiresIn time.Duration `json:"-"`
	// Code is set only when echo is enabled.
	Code string `json:"otp,omitempty"`
}

// RequestOTP issues a fresh code for phone, replacing any pending one.
//
// Returns:
//   - error: domain.ErrValidation for a malformed phone.
//   - error: domain.ErrRateLimited when the phone asked too often.
//   - error: domain.ErrUpstreamUnavailable if the code store or the sender failed.
func (s *Service) RequestOTP(ctx context.Context, phone string) (OTPResult, error) {
	const op = "service.auth.RequestOTP"

	phone, err := NormalizePhone(phone)
	if err != nil {
		return OTPResult{}, fmt.Errorf("%s:%w", op, err)
	}

	if s.limiter != nil {
		allowed, _, retry, err := s.limiter.Allow(ctx, phone)
		if err != nil {
			return OTPResult{}, fmt.Errorf("%s:%w", op, domain.Upstream(err))
		}
		if !allowed {
			return OTPResult{}, fmt.Errorf("%s:%w: retry in %s", op, domain.ErrRateLimited, retry.Round(time.Second))
		}
	}

	code, err := generateCode(s.cfg.OTPLength)
	if err != nil {
		return OTPResult{}, fmt.Errorf("%s:%w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return OTPResult{}, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.otps.Save(ctx, phone, string(hash), s.cfg.OTPTTL); err != nil {
		return OTPResult{}, fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}

	if err := s.sender.SendOTP(ctx, phone, code); err != nil {
		return OTPResult{}, fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}

	res := OTPResult{ExpiresIn: s.cfg.OTPTTL}
	if s.cfg.Echo {
		res.Code = code
	}

	return res, nil
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
	Created   bool        `json:"created"`
}

// VerifyOTP checks the pending code once. A wrong code burns it. Unknown phones are
// registered as customers.
//
// Returns:
//   - Session: bearer token and the user.
//   - error: domain.ErrUnauthorized for a missing, expired or wrong code.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (Session, error) {
	const op = "service.auth.VerifyOTP"

	phone, err := NormalizePhone(phone)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}

	hash, ok, err := s.otps.Take(ctx, phone)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}
	if !ok {
		return Session{}, fmt.Errorf("%s:%w: no pending code", op, domain.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(code))); err != nil {
		return Session{}, fmt.Errorf("%s:%w: wrong code", op, domain.ErrUnauthorized)
	}

	created := false
	u, err := s.uow.Repos().Users().GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		u, err = s.create(ctx, RegisterInput{Phone: phone, Name: defaultName(phone), Role: domain.RoleCustomer})
		created = err == nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}

	if created {
		s.log.Info("customer registered via otp", zap.String(logger.FieldUserID, u.ID.String()))
	}

	return Session{Token: token, ExpiresAt: exp, User: u, Created: created}, nil
}

type RegisterInput struct {
	Phone string
	Name  string
	Email string
	Role  domain.Role
}

// Register creates a user. Super admins cannot self-register.
//
// Returns:
//   - error: domain.ErrConflict if the phone is taken.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	const op = "service.auth.Register"

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}
	in.Phone = phone

	if strings.TrimSpace(in.Name) == "" {
		return Session{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "name", Reason: "required"})
	}

	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	if !in.Role.Valid() || in.Role == domain.RoleSuperAdmin {
		return Session{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "role", Reason: "not allowed"})
	}

	u, err := s.create(ctx, in)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}

	return Session{Token: token, ExpiresAt: exp, User: u, Created: true}, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	const op = "service.auth.Me"

	u, err := s.uow.Repos().Users().Get(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return u, nil
}

// create retries on a referral code collision. A phone collision is returned as is.
func (s *Service) create(ctx context.Context, in RegisterInput) (domain.User, error) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var code string
		code, err = referralCode()
		if err != nil {
			return domain.User{}, err
		}

		u := domain.User{
			ID:           uuid.New(),
			Phone:        in.Phone,
			Name:         strings.TrimSpace(in.Name),
			Email:        strings.TrimSpace(in.Email),
			Role:         in.Role,
			ReferralCode: code,
		}

		err = s.uow.Repos().Users().Create(ctx, &u)
		if err == nil {
			return u, nil
		}
		if !strings.Contains(err.Error(), "referral_code") {
			return domain.User{}, err
		}
	}
	return domain.User{}, err
}

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func referralCode() (string, error) {
	return randomString(referralAlphabet, 8)
}

func generateCode(n int) (string, error) {
	return randomString("0123456789", n)
}

func randomString(alphabet string, n int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

func defaultName(phone string) string {
	if len(phone) > 4 {
		return "Player " + phone[len(phone)-4:]
	}
	return "Player"
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		return domain.Upstream(err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}
