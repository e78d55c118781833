package yelp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/platform/fetch"
	"github.com/phrazzld/restaurant-reviews/internal/testutils/yelpstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, stub *yelpstub.Server) *Client {
	t.Helper()
	return NewClient(stub.Client(), yelpstub.DefaultToken, testLogger(), WithBaseURL(stub.BaseURL()))
}

var brooklyn = domain.NewCoordinate(40.6801, -73.9963)

func TestClient_Search(t *testing.T) {
	t.Parallel()

	t.Run("drops malformed records and keeps order", func(t *testing.T) {
		t.Parallel()

		stub := yelpstub.New(t)
		malformed := yelpstub.Business("broken", "Broken", 40.0, -73.0)
		delete(malformed, "rating")
		stub.SetSearchResults(
			yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963),
			malformed,
			"not an object",
			yelpstub.Business("di-fara", "Di Fara", 40.6250, -73.9615),
		)

		businesses, err := newTestClient(t, stub).SearchSync(context.Background(), SearchParams{
			Term:       "pizza",
			Coordinate: brooklyn,
		})

		require.NoError(t, err)
		require.Len(t, businesses, 2)
		assert.Equal(t, "lucali", businesses[0].ID)
		assert.Equal(t, "di-fara", businesses[1].ID)
	})

	t.Run("sends defaults", func(t *testing.T) {
		t.Parallel()

		stub := yelpstub.New(t)
		_, err := newTestClient(t, stub).SearchSync(context.Background(), SearchParams{
			Term:       "tacos",
			Coordinate: brooklyn,
		})
		require.NoError(t, err)

		q := stub.LastSearchQuery()
		assert.Equal(t, "tacos", q.Get("term"))
		assert.Equal(t, "40.6801", q.Get("latitude"))
		assert.Equal(t, "-73.9963", q.Get("longitude"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "rating", q.Get("sort_by"))
		assert.False(t, q.Has("radius"))
		assert.False(t, q.Has("categories"))
		assert.Equal(t, []string{"Bearer " + yelpstub.DefaultToken}, stub.Authorizations())
	})

	t.Run("missing businesses field yields empty result", func(t *testing.T) {
		t.Parallel()

		stub := yelpstub.New(t)
		stub.SetRawBody(yelpstub.SearchPath, `{"total":0}`)

		businesses, err := newTestClient(t, stub).SearchSync(context.Background(), SearchParams{Coordinate: brooklyn})
		require.NoError(t, err)
		assert.NotNil(t, businesses)
		assert.Empty(t, businesses)
	})

	t.Run("unparsable body", func(t *testing.T) {
		t.Parallel()

		stub := yelpstub.New(t)
		stub.SetRawBody(yelpstub.SearchPath, `<html>`)

		_, err := newTestClient(t, stub).SearchSync(context.Background(), SearchParams{Coordinate: brooklyn})
		assert.ErrorIs(t, err, fetch.ErrJSONConversionFailure)
	})

	t.Run("rejected token", func(t *testing.T) {
		t.Parallel()

		stub := yelpstub.New(t)
		stub.SetSearchResults(yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963))
		client := NewClient(stub.Client(), "expired", testLogger(), WithBaseURL(stub.BaseURL()))

		businesses, err := client.SearchSync(context.Background(), SearchParams{Coordinate: brooklyn})
		assert.Nil(t, businesses)
		require.ErrorIs(t, err, fetch.ErrResponseUnsuccessful)

		var fetchErr *fetch.Error
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusUnauthorized, fetchErr.StatusCode)
	})
}

func TestClient_BusinessByID(t *testing.T) {
	t.Parallel()

	stub := yelpstub.New(t)
	stub.SetBusiness("lucali", yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963))
	invalid := yelpstub.Business("nameless", "", 1, 1)
	stub.SetBusiness("nameless", invalid)
	client := newTestClient(t, stub)

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		business, err := client.BusinessByIDSync(context.Background(), "lucali")
		require.NoError(t, err)
		assert.Equal(t, "Lucali", business.Name)
		assert.Equal(t, brooklyn, business.Coordinate)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		_, err := client.BusinessByIDSync(context.Background(), "missing")
		assert.ErrorIs(t, err, fetch.ErrResponseUnsuccessful)
	})

	t.Run("record without required field", func(t *testing.T) {
		t.Parallel()

		business, err := client.BusinessByIDSync(context.Background(), "nameless")
		assert.Nil(t, business)
		assert.ErrorIs(t, err, fetch.ErrJSONParsingFailure)
		assert.ErrorIs(t, err, domain.ErrDecode)
	})

	t.Run("empty id", func(t *testing.T) {
		t.Parallel()

		_, err := client.BusinessByIDSync(context.Background(), "")
		assert.ErrorIs(t, err, fetch.ErrRequestFailed)
		assert.ErrorIs(t, err, domain.ErrEmptyBusinessID)
	})
}

func TestClient_UpdateDetailsMergesInPlace(t *testing.T) {
	t.Parallel()

	stub := yelpstub.New(t)
	search := yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963)
	stub.SetSearchResults(search)

	detail := yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963)
	detail["photos"] = []any{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"}
	detail["hours"] = []any{domain.JSON{
		"hours_type":  "REGULAR",
		"is_open_now": true,
		"open": []any{
			domain.JSON{"day": 0, "start": "1700", "end": "2200", "is_overnight": false},
		},
	}}
	stub.SetBusiness("lucali", detail)

	client := newTestClient(t, stub)
	ctx := context.Background()

	businesses, err := client.SearchSync(ctx, SearchParams{Term: "pizza", Coordinate: brooklyn})
	require.NoError(t, err)
	require.Len(t, businesses, 1)
	original := businesses[0]
	assert.Nil(t, original.Photos)
	assert.False(t, original.IsOpenNow())

	updated, err := client.UpdateDetailsSync(ctx, original)
	require.NoError(t, err)

	assert.Same(t, original, updated)
	assert.Equal(t, []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"}, original.Photos)
	require.Len(t, original.Hours, 1)
	assert.Equal(t, "1700", original.Hours[0].Open[0].Start)
	assert.True(t, original.IsOpenNow())
}

func TestClient_UpdateDetailsFailureKeepsBusiness(t *testing.T) {
	t.Parallel()

	stub := yelpstub.New(t)
	stub.SetStatus(yelpstub.BusinessPath("lucali"), http.StatusInternalServerError)
	business, err := domain.NewBusiness(yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963))
	require.NoError(t, err)

	_, err = newTestClient(t, stub).UpdateDetailsSync(context.Background(), business)
	assert.ErrorIs(t, err, fetch.ErrResponseUnsuccessful)
	assert.Nil(t, business.Hours)
	assert.Nil(t, business.Photos)
}

func TestClient_Reviews(t *testing.T) {
	t.Parallel()

	stub := yelpstub.New(t)
	stub.SetReviews("lucali",
		yelpstub.Review("Best pie in Brooklyn.", "Ana", 5),
		domain.JSON{"rating": 3, "text": "no user"},
		yelpstub.Review("Long wait.", "Ben", 3),
	)
	business, err := domain.NewBusiness(yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963))
	require.NoError(t, err)

	reviews, err := newTestClient(t, stub).ReviewsSync(context.Background(), business)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Ana", reviews[0].UserName)
	assert.Equal(t, "Ben", reviews[1].UserName)
	for _, r := range reviews {
		assert.Equal(t, "lucali", r.BusinessID)
	}
	assert.Equal(t, 1, stub.RequestCount(yelpstub.ReviewsPath("lucali")))
}

func TestClient_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, "token", testLogger(), WithBaseURL("://bad"))
	_, err := client.SearchSync(context.Background(), SearchParams{Coordinate: brooklyn})
	assert.ErrorIs(t, err, fetch.ErrRequestFailed)
}
