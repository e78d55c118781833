// Package yelp implements the business search, detail and review operations
// of the Fusion API on top of the fetch client.
package yelp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/platform/fetch"
)

// SearchParams are the inputs of a search. Zero values fall back to the
// defaults: limit 50, sort by rating, no categories, no radius.
type SearchParams struct {
	Term       string
	Coordinate domain.Coordinate
	Categories []domain.Category
	Radius     *int
	Limit      int
	SortBy     SortType
}

func (p SearchParams) endpoint() SearchEndpoint {
	return SearchEndpoint{
		Term:       p.Term,
		Coordinate: p.Coordinate,
		Radius:     p.Radius,
		Categories: p.Categories,
		Limit:      p.Limit,
		SortBy:     p.SortBy,
	}
}

// Client issues authenticated requests against the API. The token is fixed
// at construction; build a new Client after re-authorizing.
type Client struct {
	fetch   *fetch.Client
	token   string
	baseURL string
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, such as a stub.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a Client that sends token as a bearer credential over
// session. A nil session uses http.DefaultClient.
func NewClient(session fetch.Session, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		fetch:   fetch.NewClient(session, logger),
		token:   token,
		baseURL: DefaultBaseURL,
		logger:  logger.With("component", "yelp_client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromAccount creates a Client using the access token of account.
func NewClientFromAccount(
	session fetch.Session,
	account domain.Account,
	logger *slog.Logger,
	opts ...Option,
) *Client {
	return NewClient(session, account.AccessToken, logger, opts...)
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) request(ctx context.Context, e Endpoint) (*http.Request, error) {
	req, err := RequestWithAuthorizationHeader(ctx, e, c.baseURL, c.token)
	if err != nil {
		return nil, &fetch.Error{Kind: fetch.ErrRequestFailed, Err: err}
	}
	return req, nil
}

// Search looks for businesses around params.Coordinate. Records in the
// response that cannot be decoded are dropped; a response without a
// businesses array yields an empty result. completion is called exactly
// once from another goroutine.
func (c *Client) Search(
	ctx context.Context,
	params SearchParams,
	completion func([]*domain.Business, error),
) {
	req, err := c.request(ctx, params.endpoint())
	if err != nil {
		go completion(nil, err)
		return
	}

	c.logger.Debug("searching businesses",
		"term", params.Term,
		"coordinate", params.Coordinate.String())

	fetch.FetchMany(c.fetch, req, func(json domain.JSON) []*domain.Business {
		return domain.DecodeBusinesses(json["businesses"])
	}, completion)
}

// BusinessByID fetches a single business. A response that cannot be decoded
// into a business is reported as fetch.ErrJSONParsingFailure.
func (c *Client) BusinessByID(
	ctx context.Context,
	id string,
	completion func(*domain.Business, error),
) {
	if id == "" {
		go completion(nil, &fetch.Error{Kind: fetch.ErrRequestFailed, Err: domain.ErrEmptyBusinessID})
		return
	}

	req, err := c.request(ctx, BusinessEndpoint{ID: id})
	if err != nil {
		go completion(nil, err)
		return
	}

	fetch.Fetch(c.fetch, req, domain.NewBusiness, completion)
}

// UpdateDetails fetches the detail record of business and merges its hours
// and photos into the same instance, which is then passed to completion.
// Callers must not read business concurrently with an update in flight.
func (c *Client) UpdateDetails(
	ctx context.Context,
	business *domain.Business,
	completion func(*domain.Business, error),
) {
	if business == nil || business.ID == "" {
		go completion(business, &fetch.Error{Kind: fetch.ErrRequestFailed, Err: domain.ErrEmptyBusinessID})
		return
	}

	req, err := c.request(ctx, BusinessEndpoint{ID: business.ID})
	if err != nil {
		go completion(business, err)
		return
	}

	fetch.Fetch(c.fetch, req, func(json domain.JSON) (*domain.Business, error) {
		business.UpdateWithHoursAndPhotos(json)
		return business, nil
	}, completion)
}

// Reviews fetches the review excerpts of business. Malformed reviews are
// dropped.
func (c *Client) Reviews(
	ctx context.Context,
	business *domain.Business,
	completion func([]domain.Review, error),
) {
	if business == nil || business.ID == "" {
		go completion(nil, &fetch.Error{Kind: fetch.ErrRequestFailed, Err: domain.ErrEmptyBusinessID})
		return
	}
	id := business.ID

	req, err := c.request(ctx, ReviewsEndpoint{BusinessID: id})
	if err != nil {
		go completion(nil, err)
		return
	}

	fetch.FetchMany(c.fetch, req, func(json domain.JSON) []domain.Review {
		return domain.DecodeReviews(id, json["reviews"])
	}, completion)
}

// SearchSync runs Search and waits for its result.
func (c *Client) SearchSync(ctx context.Context, params SearchParams) ([]*domain.Business, error) {
	return fetch.Await(func(done func([]*domain.Business, error)) {
		c.Search(ctx, params, done)
	})
}

// BusinessByIDSync runs BusinessByID and waits for its result.
func (c *Client) BusinessByIDSync(ctx context.Context, id string) (*domain.Business, error) {
	return fetch.Await(func(done func(*domain.Business, error)) {
		c.BusinessByID(ctx, id, done)
	})
}

// ReviewsSync runs Reviews and waits for its result.
func (c *Client) ReviewsSync(ctx context.Context, business *domain.Business) ([]domain.Review, error) {
	return fetch.Await(func(done func([]domain.Review, error)) {
		c.Reviews(ctx, business, done)
	})
}

// UpdateDetailsSync runs UpdateDetails and waits for it to finish.
func (c *Client) UpdateDetailsSync(ctx context.Context, business *domain.Business) (*domain.Business, error) {
	return fetch.Await(func(done func(*domain.Business, error)) {
		c.UpdateDetails(ctx, business, done)
	})
}
