package domain

import "time"

// Review is a review excerpt for a business. Reviews are values and are not
// modified after they are built.
type Review struct {
	ID          string
	BusinessID  string
	Rating      float64
	Text        string
	TimeCreated time.Time
	UserName    string
	URL         string
}

type reviewUserWire struct {
	Name string `mapstructure:"name" validate:"required"`
}

type reviewWire struct {
	Rating      *float64        `mapstructure:"rating" validate:"required"`
	Text        string          `mapstructure:"text" validate:"required"`
	TimeCreated *time.Time      `mapstructure:"time_created" validate:"required"`
	User        *reviewUserWire `mapstructure:"user" validate:"required"`
}

type reviewExtrasWire struct {
	ID  string `mapstructure:"id"`
	URL string `mapstructure:"url"`
}

// NewReview builds a Review for businessID from a single review mapping.
// The reviews response does not repeat the business identity, so the caller
// supplies it.
func NewReview(businessID string, json JSON) (Review, error) {
	var core reviewWire
	if err := decodeStrict(json, &core); err != nil {
		return Review{}, err
	}

	var extras reviewExtrasWire
	decodeLenient(json, &extras)

	return Review{
		ID:          extras.ID,
		BusinessID:  businessID,
		Rating:      *core.Rating,
		Text:        core.Text,
		TimeCreated: core.TimeCreated.UTC(),
		UserName:    core.User.Name,
		URL:         extras.URL,
	}, nil
}

// JSON encodes r into the mapping shape the API uses.
func (r Review) JSON() JSON {
	return JSON{
		"id":           r.ID,
		"rating":       r.Rating,
		"text":         r.Text,
		"time_created": r.TimeCreated.Format(ReviewTimeLayout),
		"url":          r.URL,
		"user":         JSON{"name": r.UserName},
	}
}
