package account

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepositoryContract runs the behavior every Repository must share.
func testRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	store := NewStore(repo)

	jane := New("jane@example.com")
	jane.Username = "jane-" + uuid.NewString()[:8]
	jane.AddEmail("jane.work@example.com")
	jane.PrimaryEmail().SkipConfirmation(time.Now())
	jane.FindEmail("jane.work@example.com").ConfirmationToken = "tok-" + uuid.NewString()
	require.NoError(t, store.Save(ctx, jane, true))

	t.Run("FindEmail by address", func(t *testing.T) {
		rec, err := repo.FindEmail(ctx, Conditions{{Attribute: AttrAddress, Value: "jane.work@example.com"}})
		require.NoError(t, err)
		assert.Equal(t, jane.ID, rec.AccountID)
		assert.False(t, rec.Primary)
		assert.True(t, rec.Persisted())
	})

	t.Run("FindEmail with several conditions", func(t *testing.T) {
		_, err := repo.FindEmail(ctx, Conditions{
			{Attribute: AttrAddress, Value: "jane.work@example.com"},
			{Attribute: AttrPrimary, Value: "true"},
		})
		assert.ErrorIs(t, err, ErrEmailNotFound)
	})

	t.Run("FindEmail unknown attribute", func(t *testing.T) {
		_, err := repo.FindEmail(ctx, Conditions{{Attribute: "password", Value: "x"}})
		assert.ErrorIs(t, err, ErrUnknownAttribute)
	})

	t.Run("FindAccount joins email conditions", func(t *testing.T) {
		acct, err := repo.FindAccount(ctx, Conditions{
			{Attribute: AttrUsername, Value: jane.Username},
			{Attribute: AttrAddress, Value: "jane.work@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, jane.ID, acct.ID)
		assert.True(t, acct.Persisted())

		_, err = repo.FindAccount(ctx, Conditions{
			{Attribute: AttrUsername, Value: jane.Username},
			{Attribute: AttrAddress, Value: "someone@example.com"},
		})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("address uniqueness", func(t *testing.T) {
		other := New("jane.work@example.com")
		err := store.Save(ctx, other, true)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Errors.Has("email", ErrorTaken))
	})

	t.Run("token uniqueness", func(t *testing.T) {
		token := jane.FindEmail("jane.work@example.com").ConfirmationToken
		other := New("other-" + uuid.NewString()[:8] + "@example.com")
		other.PrimaryEmail().ConfirmationToken = token
		err := store.Save(ctx, other, true)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Errors.Has(AttrConfirmationToken, ErrorTaken))
	})

	t.Run("ListEmails and DeleteEmail", func(t *testing.T) {
		emails, err := repo.ListEmails(ctx, jane.ID)
		require.NoError(t, err)
		require.Len(t, emails, 2)

		work := jane.FindEmail("jane.work@example.com")
		require.NoError(t, repo.DeleteEmail(ctx, work.ID))
		assert.ErrorIs(t, repo.DeleteEmail(ctx, work.ID), ErrEmailNotFound)

		emails, err = repo.ListEmails(ctx, jane.ID)
		require.NoError(t, err)
		assert.Len(t, emails, 1)
	})

	t.Run("GetAccount missing", func(t *testing.T) {
		_, err := repo.GetAccount(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestInMemoryRepository(t *testing.T) {
	testRepositoryContract(t, NewInMemoryRepository())
}

func TestFileRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)
	testRepositoryContract(t, repo)
	assert.FileExists(t, filepath.Join(dir, accountsFile))

	t.Run("reopen keeps data", func(t *testing.T) {
		reopened, err := NewFileRepository(dir)
		require.NoError(t, err)
		rec, err := reopened.FindEmail(context.Background(), Conditions{{Attribute: AttrAddress, Value: "jane@example.com"}})
		require.NoError(t, err)
		assert.True(t, rec.Primary)
		assert.True(t, rec.Confirmed())
	})

	t.Run("corrupt file", func(t *testing.T) {
		bad := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(bad, accountsFile), []byte("{"), 0644))
		_, err := NewFileRepository(bad)
		assert.Error(t, err)
	})
}
