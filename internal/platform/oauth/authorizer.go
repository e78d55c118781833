// Package oauth obtains an access token with the OAuth client-credentials
// grant and turns it into a domain.Account.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/platform/keystore"
	"github.com/phrazzld/restaurant-reviews/internal/redact"
)

// DefaultTokenURL is the token endpoint of the business-data API.
const DefaultTokenURL = "https://api.yelp.com/oauth2/token"

var (
	// ErrAuthorizationFailed is returned when the token endpoint rejects the
	// grant or cannot be reached.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrMissingExpiry is returned when the token response does not say how
	// long the token is valid.
	ErrMissingExpiry = errors.New("token response has no expiry")
)

// Config holds the client credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Authorizer exchanges client credentials for an Account.
type Authorizer struct {
	credentials clientcredentials.Config
	httpClient  *http.Client
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthorizer creates an Authorizer. The client secret is sent in the
// request body. A nil httpClient uses http.DefaultClient.
func NewAuthorizer(cfg Config, httpClient *http.Client, logger *slog.Logger) *Authorizer {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Authorizer{
		credentials: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger.With("component", "oauth_authorizer"),
	}
}

// Authorize runs the grant and returns the resulting account. The grant date
// is taken just before the request is sent.
func (a *Authorizer) Authorize(ctx context.Context) (domain.Account, error) {
	grantDate := a.now()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.credentials.Token(ctx)
	if err != nil {
		a.logger.Warn("token request failed", "error", redact.Error(err))
		return domain.Account{}, fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	expiration, err := expirationOf(token, grantDate)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := domain.NewAccount(token.AccessToken, expiration, grantDate)
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	a.logger.Info("authorized",
		"access_token", redact.Secret(account.AccessToken),
		"expires_at", account.ExpiresAt())

	return account, nil
}

// AuthorizeAndSave runs the grant and saves the account to store. A failure
// to save is logged and otherwise ignored: the account is still returned and
// usable for this process.
func (a *Authorizer) AuthorizeAndSave(ctx context.Context, store keystore.Store) (domain.Account, error) {
	account, err := a.Authorize(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	if err := store.Save(ctx, account); err != nil {
		a.logger.Warn("failed to save account, continuing with in-memory credentials",
			"error", redact.Error(err))
	}

	return account, nil
}

// expirationOf prefers the raw expires_in field and falls back to the
// absolute expiry computed by the oauth2 package.
func expirationOf(token *oauth2.Token, grantDate time.Time) (time.Duration, error) {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Second, nil
		}
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Second, nil
		}
	}

	if token.Expiry.IsZero() {
		return 0, ErrMissingExpiry
	}
	expiration := token.Expiry.Sub(grantDate).Round(time.Second)
	if expiration <= 0 {
		return 0, fmt.Errorf("%w: token already expired", ErrMissingExpiry)
	}
	return expiration, nil
}
