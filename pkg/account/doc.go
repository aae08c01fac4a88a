// Package account models accounts that own several email addresses, one
// of them primary.
//
// Confirmation and password recovery state lives on each EmailRecord, so
// every address is confirmed on its own. The Account answers login
// questions through ActiveForAuthentication and InactiveMessage, taking the
// address used for the attempt from an AuthContext.
//
// Persistence goes through Store, which wraps a Repository (in-memory, JSON
// file, PostgreSQL or MongoDB) and keeps exactly one primary record per
// account after every save:
//
//	store := account.NewStore(account.NewInMemoryRepository())
//	acct := account.New("jane@example.com")
//	if err := store.Save(ctx, acct, true); err != nil {
//	    // acct.Errors holds field errors for validation failures
//	}
package account
