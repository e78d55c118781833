package yelp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// DefaultBaseURL is the root of the Fusion API.
const DefaultBaseURL = "https://api.yelp.com/v3"

// SortType orders search results.
type SortType string

// Sort orders accepted by the search endpoint.
const (
	SortBestMatch   SortType = "best_match"
	SortRating      SortType = "rating"
	SortReviewCount SortType = "review_count"
	SortDistance    SortType = "distance"
)

// DefaultLimit is the number of results requested when none is given.
const DefaultLimit = 50

// Endpoint describes one API resource. Endpoints are pure values; they are
// turned into requests by Request and RequestWithAuthorizationHeader.
type Endpoint interface {
	Path() string
	Query() url.Values
}

// SearchEndpoint is the business search resource.
type SearchEndpoint struct {
	Term       string
	Coordinate domain.Coordinate
	Radius     *int
	Categories []domain.Category
	Limit      int
	SortBy     SortType
}

// Path implements Endpoint.
func (e SearchEndpoint) Path() string {
	return "/businesses/search"
}

// Query implements Endpoint. Categories are sent as a comma separated list of
// aliases; radius is only sent when set.
func (e SearchEndpoint) Query() url.Values {
	q := url.Values{}
	q.Set("term", e.Term)
	q.Set("latitude", strconv.FormatFloat(e.Coordinate.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(e.Coordinate.Longitude, 'f', -1, 64))

	if len(e.Categories) > 0 {
		aliases := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			aliases = append(aliases, c.Alias)
		}
		q.Set("categories", strings.Join(aliases, ","))
	}
	if e.Radius != nil {
		q.Set("radius", strconv.Itoa(*e.Radius))
	}

	limit := e.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q.Set("limit", strconv.Itoa(limit))

	sortBy := e.SortBy
	if sortBy == "" {
		sortBy = SortRating
	}
	q.Set("sort_by", string(sortBy))

	return q
}

// BusinessEndpoint is the business detail resource.
type BusinessEndpoint struct {
	ID string
}

// Path implements Endpoint.
func (e BusinessEndpoint) Path() string {
	return "/businesses/" + url.PathEscape(e.ID)
}

// Query implements Endpoint.
func (e BusinessEndpoint) Query() url.Values {
	return nil
}

// ReviewsEndpoint is the review excerpt resource of one business.
type ReviewsEndpoint struct {
	BusinessID string
}

// Path implements Endpoint.
func (e ReviewsEndpoint) Path() string {
	return "/businesses/" + url.PathEscape(e.BusinessID) + "/reviews"
}

// Query implements Endpoint.
func (e ReviewsEndpoint) Query() url.Values {
	return nil
}

// Request builds an unauthenticated GET request for e below baseURL.
func Request(ctx context.Context, e Endpoint, baseURL string) (*http.Request, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + e.Path())
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if q := e.Query(); len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// RequestWithAuthorizationHeader builds a request for e carrying token as a
// bearer credential.
func RequestWithAuthorizationHeader(
	ctx context.Context,
	e Endpoint,
	baseURL string,
	token string,
) (*http.Request, error) {
	req, err := Request(ctx, e, baseURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
