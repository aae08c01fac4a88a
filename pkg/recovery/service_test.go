package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/login"
	"github.com/tendant/simple-idm-multiemail/pkg/notification"
	"github.com/tendant/simple-idm-multiemail/pkg/ratelimit"
	"github.com/tendant/simple-idm-multiemail/pkg/resolver"
	"github.com/tendant/simple-idm-multiemail/pkg/tokengenerator"
	"golang.org/x/crypto/bcrypt"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *account.Store
	tokens   *tokengenerator.Generator
	hasher   *login.BcryptHasher
	notifier *notification.MockNotifier
	now      time.Time
	jane     *account.Account
}

func newFixture(t *testing.T, extra ...Option) *fixture {
	t.Helper()
	f := &fixture{now: start}
	clock := func() time.Time { return f.now }

	f.store = account.NewStore(account.NewInMemoryRepository(), account.WithStoreClock(clock))
	tokens, err := tokengenerator.NewGenerator("recovery-test-secret")
	require.NoError(t, err)
	f.tokens = tokens
	f.hasher = &login.BcryptHasher{Cost: bcrypt.MinCost}

	f.notifier = &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions("https://idm.example.com",
		notification.WithNotifier(f.notifier), notification.WithDefaultTemplates())
	require.NoError(t, err)

	jane := account.New("jane@example.com")
	jane.PrimaryEmail().SkipConfirmation(start)
	work := jane.AddEmail("jane.work@example.com")
	work.SkipConfirmation(start)
	_, err = jane.ResetPassword("old-password", "old-password", f.hasher, account.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, f.store.Save(context.Background(), jane, true))
	f.jane = jane

	opts := append([]Option{WithClock(clock)}, extra...)
	f.svc = NewService(resolver.New(f.store), tokens, nm, f.hasher, opts...)
	return f
}

func (f *fixture) requestReset(t *testing.T, email string) string {
	t.Helper()
	match, err := f.svc.SendResetPasswordInstructions(context.Background(), map[string]string{"email": email})
	require.NoError(t, err)
	require.True(t, match.Account.Errors.Empty(), match.Account.Errors.Error())
	data, ok := f.notifier.Last()
	require.True(t, ok)
	return data.Data["Token"]
}

func (f *fixture) passwordMatches(t *testing.T, password string) bool {
	t.Helper()
	acct, err := f.store.Load(context.Background(), f.jane.ID)
	require.NoError(t, err)
	ok, err := acct.ValidPassword(password, f.hasher)
	require.NoError(t, err)
	return ok
}

func TestSendResetPasswordInstructions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	raw := f.requestReset(t, "Jane.Work@example.com")
	data, _ := f.notifier.Last()
	assert.Equal(t, "jane.work@example.com", data.To)
	assert.Contains(t, data.Data["Link"], "https://idm.example.com/password/edit?reset_password_token=")

	acct, err := f.store.Load(ctx, f.jane.ID)
	require.NoError(t, err)
	work := acct.FindEmail("jane.work@example.com")
	assert.Equal(t, f.tokens.Digest(tokengenerator.PurposeResetPassword, raw), work.ResetPasswordToken)
	require.NotNil(t, work.ResetPasswordSentAt)
	assert.True(t, work.ResetPasswordSentAt.Equal(start))
	assert.Empty(t, acct.PrimaryEmail().ResetPasswordToken)

	t.Run("unknown address", func(t *testing.T) {
		match, err := f.svc.SendResetPasswordInstructions(ctx, map[string]string{"email": "nobody@example.com"})
		require.NoError(t, err)
		assert.False(t, match.Account.Persisted())
		assert.Equal(t, []account.ErrorKind{account.ErrorNotFound}, match.Account.Errors.On("email"))
	})

	t.Run("blank address", func(t *testing.T) {
		match, err := f.svc.SendResetPasswordInstructions(ctx, map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, []account.ErrorKind{account.ErrorBlank}, match.Account.Errors.On("email"))
	})
}

func TestResetPasswordByToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	raw := f.requestReset(t, "jane@example.com")
	sent := f.notifier.Count()

	match, err := f.svc.ResetPasswordByToken(ctx, ResetParams{Token: raw, Password: "new-password", PasswordConfirmation: "new-password"})
	require.NoError(t, err)
	assert.True(t, match.Account.Errors.Empty())
	assert.Empty(t, match.Email.ResetPasswordToken)
	assert.True(t, f.passwordMatches(t, "new-password"))

	assert.Equal(t, sent+1, f.notifier.Count())
	assert.Equal(t, notification.PasswordChange, f.notifier.SentTypes[len(f.notifier.SentTypes)-1])

	reused, err := f.svc.ResetPasswordByToken(ctx, ResetParams{Token: raw, Password: "other-password", PasswordConfirmation: "other-password"})
	require.NoError(t, err)
	assert.False(t, reused.Account.Persisted())
	assert.True(t, reused.Account.Errors.Has("email", account.ErrorInvalid))
	assert.True(t, f.passwordMatches(t, "new-password"))
}

func TestResetPasswordByToken_Expired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	raw := f.requestReset(t, "jane@example.com")

	f.now = start.Add(6*time.Hour + time.Nanosecond)
	match, err := f.svc.ResetPasswordByToken(ctx, ResetParams{Token: raw, Password: "new-password", PasswordConfirmation: "new-password"})
	require.NoError(t, err)
	assert.Equal(t, []account.ErrorKind{account.ErrorExpired}, match.Account.Errors.On(account.AttrResetPasswordToken))
	assert.Equal(t, raw, match.Email.ResetPasswordToken)
	assert.True(t, f.passwordMatches(t, "old-password"))
}

func TestResetPasswordByToken_AtDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	raw := f.requestReset(t, "jane@example.com")

	f.now = start.Add(6 * time.Hour)
	match, err := f.svc.ResetPasswordByToken(ctx, ResetParams{Token: raw, Password: "new-password", PasswordConfirmation: "new-password"})
	require.NoError(t, err)
	assert.True(t, match.Account.Errors.Empty())
	assert.True(t, f.passwordMatches(t, "new-password"))
}

func TestResetPasswordByToken_InvalidPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	raw := f.requestReset(t, "jane@example.com")

	match, err := f.svc.ResetPasswordByToken(ctx, ResetParams{Token: raw, Password: "short", PasswordConfirmation: "shorter"})
	require.NoError(t, err)
	assert.True(t, match.Account.Errors.Has("password", account.ErrorTooShort))
	assert.True(t, match.Account.Errors.Has("password_confirmation", account.ErrorConfirmation))
	assert.Equal(t, raw, match.Email.ResetPasswordToken)
	assert.True(t, f.passwordMatches(t, "old-password"))

	again, err := f.svc.ResetPasswordByToken(ctx, ResetParams{Token: raw, Password: "long-enough", PasswordConfirmation: "long-enough"})
	require.NoError(t, err)
	assert.True(t, again.Account.Errors.Empty())
}

func TestResetPasswordByToken_BlankToken(t *testing.T) {
	f := newFixture(t)
	match, err := f.svc.ResetPasswordByToken(context.Background(), ResetParams{Password: "new-password", PasswordConfirmation: "new-password"})
	require.NoError(t, err)
	assert.False(t, match.Account.Persisted())
	assert.Equal(t, []account.ErrorKind{account.ErrorBlank}, match.Account.Errors.On("email"))
	assert.Nil(t, match.Email)
}

func TestSendResetPasswordInstructions_Throttled(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, 0, 0)
	defer limiter.Stop()
	f := newFixture(t, WithLimiter(limiter))
	f.requestReset(t, "jane@example.com")

	match, err := f.svc.SendResetPasswordInstructions(context.Background(), map[string]string{"email": "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, match.Account.Errors.Has("email", account.ErrorThrottled))
	assert.Equal(t, 1, f.notifier.Count())
}
