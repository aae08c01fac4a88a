package account

import "slices"

// PrimaryEmail returns the primary record, or nil.
func (a *Account) PrimaryEmail() *EmailRecord {
	for _, rec := range a.Emails {
		if rec.Primary {
			return rec
		}
	}
	return nil
}

// FindEmail looks up a record by normalized address.
func (a *Account) FindEmail(address string) *EmailRecord {
	address = NormalizeAddress(address)
	if address == "" {
		return nil
	}
	for _, rec := range a.Emails {
		if rec.Address == address {
			return rec
		}
	}
	return nil
}

// AddEmail appends a new non-primary record, or returns the existing one.
func (a *Account) AddEmail(address string) *EmailRecord {
	if rec := a.FindEmail(address); rec != nil {
		return rec
	}
	rec := NewEmail(a.ID, address)
	a.Emails = append(a.Emails, rec)
	return rec
}

// ChangePrimaryEmailTo makes address the primary record, building it when
// the account does not have it yet. Every other record is demoted.
func (a *Account) ChangePrimaryEmailTo(address string, allowUnconfirmed bool) (*EmailRecord, error) {
	rec := a.FindEmail(address)
	if rec != nil && !rec.Confirmed() && !allowUnconfirmed {
		return nil, ErrPrimaryNotConfirmed
	}
	if rec == nil {
		if !allowUnconfirmed {
			return nil, ErrPrimaryNotConfirmed
		}
		rec = a.AddEmail(address)
	}
	for _, other := range a.Emails {
		other.Primary = other == rec
	}
	return rec, nil
}

// EnsureSinglePrimary restores the one-primary invariant. With no primary
// the first confirmed record (else the first record) is promoted. With
// several, a record that was just switched on wins over ones already stored
// as primary.
func (a *Account) EnsureSinglePrimary() {
	var primaries []*EmailRecord
	for _, rec := range a.Emails {
		if rec.Primary {
			primaries = append(primaries, rec)
		}
	}

	switch len(primaries) {
	case 1:
		return
	case 0:
		if len(a.Emails) == 0 {
			return
		}
		idx := slices.IndexFunc(a.Emails, func(rec *EmailRecord) bool { return rec.Confirmed() })
		if idx < 0 {
			idx = 0
		}
		a.Emails[idx].Primary = true
	default:
		winner := primaries[0]
		for i := len(primaries) - 1; i >= 0; i-- {
			if primaries[i].PrimaryChanged() {
				winner = primaries[i]
				break
			}
		}
		for _, rec := range primaries {
			rec.Primary = rec == winner
		}
	}
}

func (a *Account) removeEmail(rec *EmailRecord) {
	a.Emails = slices.DeleteFunc(a.Emails, func(r *EmailRecord) bool { return r == rec })
}
