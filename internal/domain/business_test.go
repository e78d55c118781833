package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireRoundTrip pushes a mapping through encoding/json the way a response
// body would arrive, so numbers come back as float64.
func wireRoundTrip(t *testing.T, in JSON) JSON {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out JSON
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func validBusinessJSON(id string) JSON {
	return JSON{
		"id":   id,
		"name": "Joe's Pizza",
		"coordinates": JSON{
			"latitude":  40.7306,
			"longitude": -73.9890,
		},
		"categories": []any{
			JSON{"alias": "pizza", "title": "Pizza"},
		},
		"is_closed":    false,
		"rating":       4.5,
		"review_count": 1520.0,
		"price":        "$",
		"location": JSON{
			"display_address": []any{"7 Carmine St", "New York, NY 10014"},
		},
	}
}

func TestNewBusiness(t *testing.T) {
	t.Parallel()

	t.Run("well formed", func(t *testing.T) {
		t.Parallel()

		b, err := NewBusiness(validBusinessJSON("joes-pizza"))
		require.NoError(t, err)

		assert.Equal(t, "joes-pizza", b.ID)
		assert.Equal(t, "Joe's Pizza", b.Name)
		assert.Equal(t, NewCoordinate(40.7306, -73.9890), b.Coordinate)
		assert.Equal(t, []Category{{Alias: "pizza", Title: "Pizza"}}, b.Categories)
		assert.False(t, b.IsClosed)
		assert.Equal(t, 4.5, b.Rating)
		assert.Equal(t, 1520, b.ReviewCount)
		assert.Equal(t, []string{"7 Carmine St", "New York, NY 10014"}, b.Address)
		assert.Nil(t, b.Hours, "hours are absent until details are merged")
		assert.Nil(t, b.Photos)
		assert.Nil(t, b.Reviews)
	})

	requiredFields := []string{"id", "name", "coordinates", "categories", "is_closed", "rating"}
	for _, field := range requiredFields {
		t.Run("missing "+field, func(t *testing.T) {
			t.Parallel()

			in := validBusinessJSON("x")
			delete(in, field)

			b, err := NewBusiness(in)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, b)
		})
	}

	t.Run("mismatched required type", func(t *testing.T) {
		t.Parallel()

		in := validBusinessJSON("x")
		in["rating"] = "five"

		_, err := NewBusiness(in)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("missing nested latitude", func(t *testing.T) {
		t.Parallel()

		in := validBusinessJSON("x")
		in["coordinates"] = JSON{"longitude": 1.0}

		_, err := NewBusiness(in)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("malformed optional field is tolerated", func(t *testing.T) {
		t.Parallel()

		in := validBusinessJSON("x")
		in["price"] = 3.0
		in["photos"] = "not-a-list"

		b, err := NewBusiness(in)
		require.NoError(t, err)
		assert.Empty(t, b.Price)
		assert.Nil(t, b.Photos)
	})
}

func TestBusinessRoundTrip(t *testing.T) {
	t.Parallel()

	original := &Business{
		ID:          "round-trip",
		Name:        "Lucali",
		Coordinate:  NewCoordinate(40.6802, -73.9990),
		Categories:  []Category{{Alias: "pizza", Title: "Pizza"}, {Alias: "italian", Title: "Italian"}},
		IsClosed:    true,
		Rating:      4.0,
		ReviewCount: 12,
		Price:       "$$",
		Phone:       "+17188584086",
		ImageURL:    "https://example.com/lucali.jpg",
		URL:         "https://example.com/lucali",
		Address:     []string{"575 Henry St"},
		Distance:    120.5,
		Hours: []Hours{{
			HoursType: "REGULAR",
			IsOpenNow: true,
			Open:      []OpenPeriod{{Day: 0, Start: "1700", End: "2200"}, {Day: 5, Start: "1700", End: "0100", IsOvernight: true}},
		}},
		Photos: []string{"https://example.com/1.jpg"},
	}

	decoded, err := NewBusiness(wireRoundTrip(t, original.JSON()))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestBusiness_UpdateWithHoursAndPhotos(t *testing.T) {
	t.Parallel()

	b, err := NewBusiness(validBusinessJSON("joes-pizza"))
	require.NoError(t, err)
	before := b

	b.UpdateWithHoursAndPhotos(wireRoundTrip(t, JSON{
		"hours": []any{JSON{
			"hours_type":  "REGULAR",
			"is_open_now": true,
			"open":        []any{JSON{"day": 2, "start": "1100", "end": "2300", "is_overnight": false}},
		}},
		"photos": []any{"https://example.com/a.jpg", "https://example.com/b.jpg"},
	}))

	assert.Same(t, before, b)
	require.Len(t, b.Hours, 1)
	assert.Equal(t, []OpenPeriod{{Day: 2, Start: "1100", End: "2300"}}, b.Hours[0].Open)
	assert.True(t, b.IsOpenNow())
	assert.Equal(t, []string{"https://example.com/a.jpg", "https://example.com/b.jpg"}, b.Photos)

	// A response without hours or photos keeps what was merged before.
	b.UpdateWithHoursAndPhotos(JSON{"id": "joes-pizza"})
	assert.Len(t, b.Hours, 1)
	assert.Len(t, b.Photos, 2)
}

func TestDecodeBusinesses(t *testing.T) {
	t.Parallel()

	malformed := validBusinessJSON("bad")
	delete(malformed, "name")

	raw := wireRoundTrip(t, JSON{"businesses": []any{
		validBusinessJSON("first"),
		malformed,
		"not a mapping",
		validBusinessJSON("second"),
		JSON{},
		validBusinessJSON("third"),
	}})

	businesses := DecodeBusinesses(raw["businesses"])
	require.Len(t, businesses, 3)
	assert.Equal(t, "first", businesses[0].ID)
	assert.Equal(t, "second", businesses[1].ID)
	assert.Equal(t, "third", businesses[2].ID)

	assert.Empty(t, DecodeBusinesses(nil))
	assert.Empty(t, DecodeBusinesses("businesses"))
	assert.NotNil(t, DecodeBusinesses(nil))
}
