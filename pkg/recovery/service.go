package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/notification"
	"github.com/tendant/simple-idm-multiemail/pkg/ratelimit"
	"github.com/tendant/simple-idm-multiemail/pkg/resolver"
	"github.com/tendant/simple-idm-multiemail/pkg/tokengenerator"
	"github.com/tendant/simple-idm-multiemail/pkg/utils"
)

// ResetParams is the input of a password reset.
type ResetParams struct {
	Token                string `json:"reset_password_token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Service issues reset password tokens for the email record a user names
// and redeems them.
type Service struct {
	resolver   *resolver.Resolver
	store      *account.Store
	tokens     *tokengenerator.Generator
	dispatcher notification.Dispatcher
	hasher     account.PasswordHasher
	limiter    ratelimit.Limiter
	opts       account.Options
	now        func() time.Time
}

type Option func(*Service)

func WithOptions(opts account.Options) Option {
	return func(s *Service) {
		s.opts = opts
	}
}

func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(res *resolver.Resolver, tokens *tokengenerator.Generator, dispatcher notification.Dispatcher, hasher account.PasswordHasher, opts ...Option) *Service {
	s := &Service{
		resolver:   res,
		store:      res.Store(),
		tokens:     tokens,
		dispatcher: dispatcher,
		hasher:     hasher,
		opts:       account.DefaultOptions(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendResetPasswordInstructions sends a reset token to the address in
// attrs["email"]. When the address is unknown the returned account is
// unpersisted and carries an error on "email".
func (s *Service) SendResetPasswordInstructions(ctx context.Context, attrs map[string]string) (*account.Match, error) {
	email, ok := attrs["email"]
	if !ok {
		email = attrs[account.AttrAddress]
	}
	match, err := s.resolver.Resolve(ctx, map[string]string{account.AttrAddress: email},
		[]string{account.AttrAddress}, account.ErrorNotFound)
	if err != nil {
		return nil, err
	}
	if match.Account.Persisted() {
		if err := s.SendInstructions(ctx, match); err != nil {
			return match, err
		}
	}
	return match, nil
}

// SendInstructions stores the digest of a new reset token on the matched
// record and then sends the raw token to that record's address.
func (s *Service) SendInstructions(ctx context.Context, match *account.Match) error {
	acct, rec := match.Account, match.Email
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, "recovery:"+rec.Address)
		if err != nil {
			slog.Error("Rate limiter failed", "err", err)
		} else if !ok {
			acct.Errors.Add("email", account.ErrorThrottled)
			return nil
		}
	}

	raw, digest, err := s.tokens.Generate(ctx, tokengenerator.PurposeResetPassword, s.tokenExists)
	if err != nil {
		return fmt.Errorf("failed to generate reset password token: %w", err)
	}

	now := s.now().UTC()
	prevToken, prevSentAt := rec.ResetPasswordToken, rec.ResetPasswordSentAt
	rec.ResetPasswordToken = digest
	rec.ResetPasswordSentAt = &now
	if err := s.store.SaveEmail(ctx, rec, false); err != nil {
		rec.ResetPasswordToken, rec.ResetPasswordSentAt = prevToken, prevSentAt
		acct.Errors.Absorb(err)
		return fmt.Errorf("failed to save reset password token: %w", err)
	}

	err = s.dispatcher.Dispatch(ctx, notification.Notice{
		Type:      notification.ResetPasswordInstructions,
		To:        rec.Address,
		Token:     raw,
		AccountID: acct.ID.String(),
	})
	if err != nil {
		slog.Error("Failed to dispatch reset password instructions", "account_id", acct.ID, "to", utils.MaskEmail(rec.Address), "err", err)
	}
	return nil
}

func (s *Service) tokenExists(ctx context.Context, digest string) (bool, error) {
	_, err := s.store.FindEmail(ctx, account.Conditions{{Attribute: account.AttrResetPasswordToken, Value: digest}})
	if errors.Is(err, account.ErrEmailNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ResetPasswordByToken sets a new password on the account owning the
// record that holds the token. An expired token leaves the password
// unchanged and adds "expired" on "reset_password_token". The returned
// record shows the raw token the caller supplied, never its digest.
func (s *Service) ResetPasswordByToken(ctx context.Context, params ResetParams) (*account.Match, error) {
	digest := s.tokens.Digest(tokengenerator.PurposeResetPassword, params.Token)
	match, err := s.resolver.Resolve(ctx, map[string]string{account.AttrResetPasswordToken: digest},
		[]string{account.AttrResetPasswordToken}, account.ErrorInvalid)
	if err != nil {
		return nil, err
	}

	acct, rec := match.Account, match.Email
	if acct.Persisted() {
		if err := s.reset(ctx, match, params); err != nil {
			return match, err
		}
	}

	if rec != nil && rec.ResetPasswordToken != "" {
		rec.ResetPasswordToken = params.Token
	}
	return match, nil
}

func (s *Service) reset(ctx context.Context, match *account.Match, params ResetParams) error {
	acct, rec := match.Account, match.Email
	if !rec.ResetPasswordPeriodValid(s.opts, s.now()) {
		acct.Errors.Add(account.AttrResetPasswordToken, account.ErrorExpired)
		return nil
	}

	ok, err := acct.ResetPassword(params.Password, params.PasswordConfirmation, s.hasher, s.opts)
	if err != nil || !ok {
		return err
	}

	if err := s.store.Save(ctx, acct, false); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	rec.ClearResetPasswordToken()
	if err := s.store.SaveEmail(ctx, rec, false); err != nil {
		return fmt.Errorf("failed to clear reset password token: %w", err)
	}
	slog.Info("Password reset", "account_id", acct.ID, "email", utils.MaskEmail(rec.Address))

	err = s.dispatcher.Dispatch(ctx, notification.Notice{
		Type:      notification.PasswordChange,
		To:        rec.Address,
		AccountID: acct.ID.String(),
	})
	if err != nil {
		slog.Error("Failed to dispatch password change notice", "account_id", acct.ID, "err", err)
	}
	return nil
}
