package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-multiemail/pkg/account"
)

type fixture struct {
	resolver *Resolver
	store    *account.Store
	jane     *account.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := account.NewStore(account.NewInMemoryRepository())

	jane := account.New("jane@example.com")
	jane.Username = "jane"
	work := jane.AddEmail("jane.work@example.com")
	work.ConfirmationToken = "work-token"
	jane.PrimaryEmail().SkipConfirmation(time.Now())
	require.NoError(t, store.Save(context.Background(), jane, true))

	bob := account.New("bob@example.com")
	bob.PrimaryEmail().ConfirmationToken = "bob-token"
	require.NoError(t, store.Save(context.Background(), bob, true))

	return fixture{resolver: New(store), store: store, jane: jane}
}

func TestMatchByConditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("by address", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{"address": "jane.work@example.com"}, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, f.jane.ID, m.Account.ID)
		assert.Equal(t, "jane.work@example.com", m.Email.Address)
		assert.Equal(t, "jane.work@example.com", m.Auth.LoginEmail)
		assert.Same(t, m.Account.FindEmail("jane.work@example.com"), m.Email)
	})

	t.Run("address is normalized", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{"address": "  JANE@Example.com "}, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "jane@example.com", m.Auth.LoginEmail)
		assert.True(t, m.Email.Primary)
	})

	t.Run("token wins over unknown keys", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{
			"confirmation_token": "bob-token",
			"email":              "jane@example.com",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "bob@example.com", m.Email.Address)
		assert.Equal(t, "bob@example.com", m.Auth.LoginEmail)
	})

	t.Run("identity keys win over opts", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx,
			map[string]string{"address": "bob@example.com"},
			map[string]string{"address": "jane@example.com"})
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "bob@example.com", m.Email.Address)
	})

	t.Run("opts narrow the lookup", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx,
			map[string]string{"address": "jane.work@example.com"},
			map[string]string{"primary": "true"})
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("account keys narrow the owner", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{
			"username": "jane",
			"address":  "jane.work@example.com",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, f.jane.ID, m.Account.ID)
		assert.Equal(t, "jane.work@example.com", m.Email.Address)
		assert.False(t, m.Email.Primary)
		assert.Equal(t, "jane.work@example.com", m.Auth.LoginEmail)
		assert.Same(t, m.Account.FindEmail("jane.work@example.com"), m.Email)
	})

	t.Run("account keys must match the owner", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{
			"username": "someone-else",
			"address":  "jane.work@example.com",
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("not found", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{"address": "nobody@example.com"}, nil)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("no identity key", func(t *testing.T) {
		m, err := f.resolver.MatchByConditions(ctx, map[string]string{"username": "jane"}, nil)
		assert.ErrorIs(t, err, ErrUnsupportedLookup)
		assert.Nil(t, m)
	})
}

func TestBuildConditionsOrder(t *testing.T) {
	criteria := account.Conditions{
		{Attribute: "address", Value: "a@example.com"},
		{Attribute: "confirmation_token", Value: "t"},
	}
	conds := buildConditions(
		map[string]string{"username": "u", "account_id": "x"},
		map[string]string{"primary": "true", "confirmation_token": "ignored", "account_id": "y"},
		criteria,
	)

	var attrs []string
	for _, c := range conds {
		attrs = append(attrs, c.Attribute+"="+c.Value)
	}
	assert.Equal(t, []string{
		"address=a@example.com",
		"confirmation_token=t",
		"username=u",
		"account_id=y",
		"primary=true",
	}, attrs)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		attrs     map[string]string
		required  []string
		kind      account.ErrorKind
		persisted bool
		errKind   account.ErrorKind
		email     string
	}{
		{
			name:      "found",
			attrs:     map[string]string{"address": "jane@example.com"},
			required:  []string{"address"},
			kind:      account.ErrorNotFound,
			persisted: true,
		},
		{
			name:     "not found",
			attrs:    map[string]string{"address": "Nobody@Example.com"},
			required: []string{"address"},
			kind:     account.ErrorNotFound,
			errKind:  account.ErrorNotFound,
			email:    "nobody@example.com",
		},
		{
			name:     "blank value",
			attrs:    map[string]string{"address": "  "},
			required: []string{"address"},
			kind:     account.ErrorNotFound,
			errKind:  account.ErrorBlank,
		},
		{
			name:     "default kind is invalid",
			attrs:    map[string]string{"reset_password_token": "nope"},
			required: []string{"reset_password_token"},
			errKind:  account.ErrorInvalid,
		},
		{
			name:     "unsupported lookup falls through",
			attrs:    map[string]string{"username": "jane"},
			required: []string{"username"},
			errKind:  account.ErrorInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := f.resolver.Resolve(ctx, tt.attrs, tt.required, tt.kind)
			require.NoError(t, err)
			require.NotNil(t, m)
			require.NotNil(t, m.Account)
			assert.Equal(t, tt.persisted, m.Account.Persisted())
			if tt.persisted {
				assert.True(t, m.Account.Errors.Empty())
				assert.NotNil(t, m.Email)
				return
			}
			assert.Nil(t, m.Email)
			assert.Equal(t, []account.ErrorKind{tt.errKind}, m.Account.Errors.On("email"))
			assert.Equal(t, tt.email, m.Account.Email())
		})
	}
}

func TestParameterFilter(t *testing.T) {
	f := DefaultParameterFilter(DefaultSchema())
	in := map[string]string{
		"address":  " Jane@Example.COM ",
		"password": "secret",
		"primary":  "true",
	}
	out := f.Filter(in)
	assert.Equal(t, map[string]string{"address": "jane@example.com", "primary": "true"}, out)
	assert.Equal(t, " Jane@Example.COM ", in["address"])
}

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, TableEmail, s.TableFor("address"))
	assert.Equal(t, TableEmail, s.TableFor("id"))
	assert.Equal(t, TableAccount, s.TableFor("username"))
	assert.Equal(t, TableAccount, s.TableFor("unknown"))
	assert.False(t, s.Knows("email"))
}
