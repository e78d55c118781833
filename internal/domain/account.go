package domain

import (
	"fmt"
	"time"
)

// Account is the OAuth grant used to authorize API requests. It is created
// once per authorization flow, persisted by a credential store and loaded
// again when the API client is constructed.
type Account struct {
	AccessToken string        `json:"access_token"`
	Expiration  time.Duration `json:"expiration"`
	GrantDate   time.Time     `json:"grant_date"`
}

// NewAccount creates an Account granted at grantDate that stays valid for
// expiration.
func NewAccount(accessToken string, expiration time.Duration, grantDate time.Time) (Account, error) {
	account := Account{
		AccessToken: accessToken,
		Expiration:  expiration,
		GrantDate:   grantDate.UTC(),
	}

	if err := account.Validate(); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Validate checks that the account carries a token and a positive lifetime.
func (a Account) Validate() error {
	if a.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	if a.Expiration <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidExpiration, a.Expiration)
	}
	return nil
}

// ExpiresAt returns the instant the grant stops being valid.
func (a Account) ExpiresAt() time.Time {
	return a.GrantDate.Add(a.Expiration)
}

// IsAuthorizedAt reports whether the account is usable at now, that is
// whether it has a token and now is strictly before GrantDate+Expiration.
func (a Account) IsAuthorizedAt(now time.Time) bool {
	return a.AccessToken != "" && now.Before(a.ExpiresAt())
}

// IsAuthorized reports whether the account is usable right now.
func (a Account) IsAuthorized() bool {
	return a.IsAuthorizedAt(time.Now())
}
