package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// JSON is an untyped, string-keyed mapping as produced by decoding an API
// response body into a generic value.
type JSON = map[string]any

// ReviewTimeLayout is the layout the API uses for review timestamps.
const ReviewTimeLayout = "2006-01-02 15:04:05"

var validate = validator.New()

func newDecoder(out any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(ReviewTimeLayout),
		Result:     out,
		TagName:    "mapstructure",
	})
}

// decodeStrict decodes input into out and validates the required-field set
// declared by out's validate tags. Any type mismatch or missing required field
// is reported as ErrDecode.
func decodeStrict(input any, out any) error {
	dec, err := newDecoder(out)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return nil
}

// decodeLenient decodes whatever it can from input into out. Fields that are
// absent or of the wrong type are left at their zero value.
func decodeLenient(input any, out any) {
	dec, err := newDecoder(out)
	if err != nil {
		return
	}
	_ = dec.Decode(input)
}

// asJSONArray returns the elements of raw if it is an array, or nil otherwise.
func asJSONArray(raw any) []any {
	switch items := raw.(type) {
	case []any:
		return items
	case []JSON:
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}

// DecodeBusinesses decodes an array of business mappings. Elements that are
// not mappings or that fail to decode are dropped; the relative order of the
// remaining elements is preserved. Anything other than an array yields an
// empty slice.
func DecodeBusinesses(raw any) []*Business {
	items := asJSONArray(raw)
	businesses := make([]*Business, 0, len(items))
	for _, item := range items {
		m, ok := item.(JSON)
		if !ok {
			continue
		}
		business, err := NewBusiness(m)
		if err != nil {
			continue
		}
		businesses = append(businesses, business)
	}
	return businesses
}

// DecodeReviews decodes an array of review mappings for the given business,
// dropping malformed elements the same way DecodeBusinesses does.
func DecodeReviews(businessID string, raw any) []Review {
	items := asJSONArray(raw)
	reviews := make([]Review, 0, len(items))
	for _, item := range items {
		m, ok := item.(JSON)
		if !ok {
			continue
		}
		review, err := NewReview(businessID, m)
		if err != nil {
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews
}
