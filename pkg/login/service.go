package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/resolver"
	"github.com/tendant/simple-idm-multiemail/pkg/tokengenerator"
	"github.com/tendant/simple-idm-multiemail/pkg/utils"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// InactiveError is returned when the credentials are right but the account
// may not log in with the address used.
type InactiveError struct {
	Reason account.InactiveReason
}

func (e *InactiveError) Error() string {
	return fmt.Sprintf("account inactive: %s", e.Reason)
}

type Config struct {
	JwtSecret string
	Issuer    string
	Expiry    time.Duration
}

// Result is a successful login.
type Result struct {
	Account    *account.Account
	LoginEmail string
	Token      string
	ExpiresAt  time.Time
}

type LoginService struct {
	resolver *resolver.Resolver
	hasher   account.PasswordHasher
	opts     account.Options
	config   Config
	now      func() time.Time
}

type Option func(*LoginService)

func WithClock(now func() time.Time) Option {
	return func(s *LoginService) {
		s.now = now
	}
}

func NewLoginService(res *resolver.Resolver, hasher account.PasswordHasher, opts account.Options, config Config, options ...Option) *LoginService {
	if config.Expiry == 0 {
		config.Expiry = time.Hour
	}
	s := &LoginService{
		resolver: res,
		hasher:   hasher,
		opts:     opts,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Login authenticates email and password. Any of the account's addresses
// may be used unless OnlyLoginWithPrimaryEmail is set. A secondary address
// must itself be confirmed.
func (s *LoginService) Login(ctx context.Context, email, password string) (*Result, error) {
	if utils.IsBlank(email) || password == "" {
		return nil, ErrInvalidCredentials
	}

	var scope map[string]string
	if s.opts.OnlyLoginWithPrimaryEmail {
		scope = map[string]string{account.AttrPrimary: "true"}
	}
	match, err := s.resolver.MatchByConditions(ctx, map[string]string{account.AttrAddress: email}, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if match == nil {
		slog.Info("Login failed: unknown email", "email", utils.MaskEmail(email))
		return nil, ErrInvalidCredentials
	}

	acct := match.Account
	valid, err := acct.ValidPassword(password, s.hasher)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		slog.Info("Login failed: invalid password", "account_id", acct.ID)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if !acct.ActiveForAuthentication(match.Auth, s.opts, now) {
		reason := acct.InactiveMessage(match.Auth)
		slog.Info("Login refused", "account_id", acct.ID, "reason", reason)
		return nil, &InactiveError{Reason: reason}
	}

	token, err := tokengenerator.CreateSessionToken(s.config.JwtSecret, s.config.Issuer, acct.ID.String(), match.Auth.LoginEmail, s.config.Expiry, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	slog.Info("Login succeeded", "account_id", acct.ID, "email", utils.MaskEmail(match.Auth.LoginEmail))
	return &Result{
		Account:    acct,
		LoginEmail: match.Auth.LoginEmail,
		Token:      token,
		ExpiresAt:  now.Add(s.config.Expiry),
	}, nil
}
