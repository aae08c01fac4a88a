package account

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func sentAt(t time.Time) *time.Time {
	return &t
}

func TestEmailRecord_ConfirmationPeriodExpired(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.ConfirmWithin = 3 * 24 * time.Hour
	rec := &EmailRecord{Address: "a@example.com", ConfirmationSentAt: sentAt(sent)}

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"well before deadline", sent.Add(time.Hour), false},
		{"exactly at deadline", sent.Add(opts.ConfirmWithin), false},
		{"one microsecond after deadline", sent.Add(opts.ConfirmWithin + time.Microsecond), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rec.ConfirmationPeriodExpired(opts, tt.now))
		})
	}

	t.Run("no deadline configured", func(t *testing.T) {
		o := opts
		o.ConfirmWithin = 0
		assert.False(t, rec.ConfirmationPeriodExpired(o, sent.Add(365*24*time.Hour)))
	})
}

func TestEmailRecord_ConfirmationPeriodValid(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	primary := &EmailRecord{Address: "a@example.com", Primary: true, ConfirmationSentAt: sentAt(sent)}
	secondary := &EmailRecord{Address: "b@example.com", ConfirmationSentAt: sentAt(sent)}

	tests := []struct {
		name     string
		allow    *time.Duration
		rec      *EmailRecord
		now      time.Time
		expected bool
	}{
		{"unlimited grace", nil, primary, sent.Add(1000 * time.Hour), true},
		{"zero grace", Duration(0), primary, sent, false},
		{"inside grace", Duration(2 * time.Hour), primary, sent.Add(time.Hour), true},
		{"grace boundary", Duration(2 * time.Hour), primary, sent.Add(2 * time.Hour), true},
		{"after grace", Duration(2 * time.Hour), primary, sent.Add(2*time.Hour + time.Second), false},
		{"secondary never gets grace", nil, secondary, sent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.AllowUnconfirmedAccessFor = tt.allow
			assert.Equal(t, tt.expected, tt.rec.ConfirmationPeriodValid(opts, tt.now))
		})
	}
}

func TestEmailRecord_PendingStates(t *testing.T) {
	now := time.Now()
	rec := &EmailRecord{Address: "a@example.com"}
	assert.True(t, rec.PendingAnyConfirmation(true))
	assert.False(t, rec.PendingReconfirmation(true))

	rec.SkipConfirmation(now)
	assert.True(t, rec.Confirmed())
	assert.False(t, rec.PendingAnyConfirmation(true))

	rec.UnconfirmedAddress = "new@example.com"
	assert.True(t, rec.PendingReconfirmation(true))
	assert.False(t, rec.PendingReconfirmation(false))
	assert.True(t, rec.PendingAnyConfirmation(true))
	assert.Equal(t, "new@example.com", rec.ConfirmationRecipient(true))
	assert.Equal(t, "a@example.com", rec.ConfirmationRecipient(false))
}

func TestEmailRecord_ResetPasswordPeriodValid(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.ResetPasswordWithin = 6 * time.Hour

	rec := &EmailRecord{}
	assert.False(t, rec.ResetPasswordPeriodValid(opts, sent))

	rec.ResetPasswordSentAt = sentAt(sent)
	assert.True(t, rec.ResetPasswordPeriodValid(opts, sent.Add(6*time.Hour)))
	assert.False(t, rec.ResetPasswordPeriodValid(opts, sent.Add(6*time.Hour+time.Nanosecond)))
}

func TestEmailRecord_Validate(t *testing.T) {
	id := uuid.New()
	assert.True(t, NewEmail(id, "a@example.com").Validate().Empty())
	assert.True(t, NewEmail(id, "").Validate().Has("email", ErrorBlank))
	assert.True(t, NewEmail(id, "not an address").Validate().Has("email", ErrorInvalid))

	rec := NewEmail(id, "a@example.com")
	rec.UnconfirmedAddress = "nope"
	assert.True(t, rec.Validate().Has("unconfirmed_email", ErrorInvalid))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeAddress("  Jane@Example.COM "))
	assert.Equal(t, "jane@example.com", NewEmail(uuid.New(), " JANE@example.com").Address)
}
