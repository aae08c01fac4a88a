package confirmation

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

// Service issues and redeems confirmation tokens for individual email
// records of an account.
type Service struct {
	resolver   *resolver.Resolver
	store      *account.Store
	tokens     *tokengenerator.Generator
	dispatcher notification.Dispatcher
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

// WithLimiter throttles instruction emails per recipient address.
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

func NewService(res *resolver.Resolver, tokens *tokengenerator.Generator, dispatcher notification.Dispatcher, opts ...Option) *Service {
	s := &Service{
		resolver:   res,
		store:      res.Store(),
		tokens:     tokens,
		dispatcher: dispatcher,
		opts:       account.DefaultOptions(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Options() account.Options {
	return s.opts
}

// SendConfirmationInstructions looks up the record for attrs["email"] and
// resends its instructions. A pending address change is matched before the
// confirmed address. The returned match always carries an account; when
// nothing was found it is unpersisted and has an error on "email".
func (s *Service) SendConfirmationInstructions(ctx context.Context, attrs map[string]string) (*account.Match, error) {
	email := emailParam(attrs)

	var match *account.Match
	if s.opts.Reconfirmable {
		m, err := s.resolver.Resolve(ctx, map[string]string{account.AttrUnconfirmedAddress: email},
			[]string{account.AttrUnconfirmedAddress}, account.ErrorNotFound)
		if err != nil {
			return nil, err
		}
		if m.Account.Persisted() {
			match = m
		}
	}
	if match == nil {
		m, err := s.resolver.Resolve(ctx, map[string]string{account.AttrAddress: email},
			[]string{account.AttrAddress}, account.ErrorNotFound)
		if err != nil {
			return nil, err
		}
		match = m
	}

	if match.Account.Persisted() {
		if err := s.Resend(ctx, match); err != nil {
			return match, err
		}
	}
	return match, nil
}

// Resend sends instructions again if the matched record still has
// something to confirm.
func (s *Service) Resend(ctx context.Context, match *account.Match) error {
	if !match.Email.PendingAnyConfirmation(s.opts.Reconfirmable) {
		match.Account.Errors.Add("email", account.ErrorAlreadyConfirmed)
		return nil
	}
	return s.SendInstructions(ctx, match.Account, match.Email)
}

// SendInstructions issues a token for rec, persists it and only then
// dispatches it. An unexpired raw token is reused. While an address change
// is pending the instructions go to the new address.
func (s *Service) SendInstructions(ctx context.Context, acct *account.Account, rec *account.EmailRecord) error {
	recipient := rec.ConfirmationRecipient(s.opts.Reconfirmable)
	if !s.allow(ctx, recipient) {
		acct.Errors.Add("email", account.ErrorThrottled)
		return nil
	}

	raw, err := s.issueToken(ctx, rec)
	if err != nil {
		acct.Errors.Absorb(err)
		return err
	}

	noticeType := notification.ConfirmationInstructions
	if rec.PendingReconfirmation(s.opts.Reconfirmable) {
		noticeType = notification.ReconfirmationInstructions
	}
	err = s.dispatcher.Dispatch(ctx, notification.Notice{
		Type:      noticeType,
		To:        recipient,
		Token:     raw,
		AccountID: acct.ID.String(),
	})
	if err != nil {
		slog.Error("Failed to dispatch confirmation instructions", "account_id", acct.ID, "to", utils.MaskEmail(recipient), "err", err)
	}
	return nil
}

// issueToken returns the raw token to send, persisting a new one first
// when needed.
func (s *Service) issueToken(ctx context.Context, rec *account.EmailRecord) (string, error) {
	now := s.now().UTC()
	if !s.opts.DigestConfirmationTokens && rec.ConfirmationToken != "" && !rec.ConfirmationPeriodExpired(s.opts, now) {
		return rec.ConfirmationToken, nil
	}

	var raw, stored string
	var err error
	if s.opts.DigestConfirmationTokens {
		raw, stored, err = s.tokens.Generate(ctx, tokengenerator.PurposeConfirmation, s.tokenExists)
	} else {
		raw, err = s.tokens.GenerateRaw(ctx, s.tokenExists)
		stored = raw
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	prevToken, prevSentAt := rec.ConfirmationToken, rec.ConfirmationSentAt
	rec.ConfirmationToken = stored
	rec.ConfirmationSentAt = &now
	if err := s.store.SaveEmail(ctx, rec, false); err != nil {
		rec.ConfirmationToken, rec.ConfirmationSentAt = prevToken, prevSentAt
		return "", fmt.Errorf("failed to save confirmation token: %w", err)
	}
	return raw, nil
}

func (s *Service) tokenExists(ctx context.Context, token string) (bool, error) {
	_, err := s.store.FindEmail(ctx, account.Conditions{{Attribute: account.AttrConfirmationToken, Value: token}})
	if errors.Is(err, account.ErrEmailNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ConfirmByToken confirms the record holding raw, trying the raw value and
// then its digest. A blank token yields an account with an error on
// "confirmation_token"; an unknown token yields a fresh account without
// errors, so callers can tell the two apart from a failed confirmation.
func (s *Service) ConfirmByToken(ctx context.Context, raw string) (*account.Match, error) {
	if utils.IsBlank(raw) {
		acct := account.New("")
		acct.Errors.Add(account.AttrConfirmationToken, account.ErrorBlank)
		return &account.Match{Account: acct}, nil
	}

	match, err := s.matchToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if match == nil {
		match, err = s.matchToken(ctx, s.tokens.Digest(tokengenerator.PurposeConfirmation, raw))
		if err != nil {
			return nil, err
		}
	}
	if match == nil {
		return &account.Match{Account: account.New("")}, nil
	}

	if _, err := s.Confirm(ctx, match, false); err != nil {
		return match, err
	}
	return match, nil
}

func (s *Service) matchToken(ctx context.Context, token string) (*account.Match, error) {
	return s.resolver.MatchByConditions(ctx, map[string]string{account.AttrConfirmationToken: token}, nil)
}

// Confirm marks the matched record confirmed. A pending address change is
// promoted into Address and saved with validation, so a taken address is
// reported on "email". Expected failures are attached to the account and
// reported as false with a nil error.
func (s *Service) Confirm(ctx context.Context, match *account.Match, ensureValid bool) (bool, error) {
	acct, rec := match.Account, match.Email
	if !rec.PendingAnyConfirmation(s.opts.Reconfirmable) {
		acct.Errors.Add("email", account.ErrorAlreadyConfirmed)
		return false, nil
	}

	now := s.now()
	if rec.ConfirmationPeriodExpired(s.opts, now) {
		acct.Errors.AddDetail("email", account.ErrorConfirmationPeriodExpired,
			fmt.Sprintf("needs to be confirmed within %s", s.opts.ConfirmWithin))
		return false, nil
	}

	before := *rec
	rec.SkipConfirmation(now)
	validate := ensureValid
	if rec.PendingReconfirmation(s.opts.Reconfirmable) {
		rec.Address = rec.UnconfirmedAddress
		rec.UnconfirmedAddress = ""
		validate = true
	}

	if err := s.store.SaveEmail(ctx, rec, validate); err != nil {
		rec.Address, rec.UnconfirmedAddress, rec.ConfirmedAt = before.Address, before.UnconfirmedAddress, before.ConfirmedAt
		if acct.Errors.Absorb(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to save confirmation: %w", err)
	}

	slog.Info("Email confirmed", "account_id", acct.ID, "email", utils.MaskEmail(rec.Address))
	return true, nil
}

// AddEmail attaches a new unconfirmed, non-primary address to acct and
// sends its confirmation instructions. An address the account already has
// is returned unchanged.
func (s *Service) AddEmail(ctx context.Context, acct *account.Account, address string) (*account.EmailRecord, error) {
	if rec := acct.FindEmail(address); rec != nil {
		return rec, nil
	}

	rec := account.NewEmail(acct.ID, address)
	if err := s.store.SaveEmail(ctx, rec, true); err != nil {
		if acct.Errors.Absorb(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to add email: %w", err)
	}
	acct.Emails = append(acct.Emails, rec)
	slog.Info("Email added", "account_id", acct.ID, "email", utils.MaskEmail(rec.Address))

	if err := s.SendInstructions(ctx, acct, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ChangeAddress replaces the address of rec. When reconfirmable, the new
// address waits in UnconfirmedAddress until its token is redeemed;
// otherwise it is swapped in directly.
func (s *Service) ChangeAddress(ctx context.Context, acct *account.Account, rec *account.EmailRecord, address string) error {
	address = account.NormalizeAddress(address)
	if address == rec.Address {
		return nil
	}

	before := *rec
	if s.opts.Reconfirmable {
		rec.UnconfirmedAddress = address
		rec.ConfirmationToken = ""
		rec.ConfirmationSentAt = nil
	} else {
		rec.Address = address
	}

	if err := s.store.SaveEmail(ctx, rec, true); err != nil {
		rec.Address, rec.UnconfirmedAddress = before.Address, before.UnconfirmedAddress
		rec.ConfirmationToken, rec.ConfirmationSentAt = before.ConfirmationToken, before.ConfirmationSentAt
		if acct.Errors.Absorb(err) {
			return nil
		}
		return fmt.Errorf("failed to change address: %w", err)
	}

	if !s.opts.Reconfirmable {
		return nil
	}
	return s.SendInstructions(ctx, acct, rec)
}

// SkipConfirmation confirms rec without sending anything.
func (s *Service) SkipConfirmation(ctx context.Context, rec *account.EmailRecord) error {
	rec.SkipConfirmation(s.now())
	return s.store.SaveEmail(ctx, rec, false)
}

func (s *Service) allow(ctx context.Context, recipient string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(ctx, "confirmation:"+recipient)
	if err != nil {
		slog.Error("Rate limiter failed", "err", err)
		return true
	}
	return ok
}

// emailParam reads the address a caller supplied under "email" or
// "address".
func emailParam(attrs map[string]string) string {
	if email, ok := attrs["email"]; ok {
		return email
	}
	return attrs[account.AttrAddress]
}
