package domain

// Category is a business category as reported by the API. The alias is the
// identifier used when filtering searches.
type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

// OpenPeriod is a single opening interval. Start and End use the API's
// "HHMM" 24-hour format and Day runs from 0 (Monday) to 6 (Sunday).
type OpenPeriod struct {
	Day         int    `json:"day"`
	Start       string `json:"start"`
	End         string `json:"end"`
	IsOvernight bool   `json:"is_overnight"`
}

// Hours is a set of opening periods of one kind (usually "REGULAR").
type Hours struct {
	HoursType string       `json:"hours_type"`
	IsOpenNow bool         `json:"is_open_now"`
	Open      []OpenPeriod `json:"open"`
}

// Business is a restaurant returned by a search or detail request.
//
// A Business is created from a search or detail response and then enriched
// in place: detail and review requests that complete later write their
// results into the same instance, so every holder of the pointer observes
// them. Writers are serialised by the operation queue, not by a lock.
type Business struct {
	ID          string
	Name        string
	Coordinate  Coordinate
	Categories  []Category
	IsClosed    bool
	Rating      float64
	ReviewCount int
	Price       string
	Phone       string
	ImageURL    string
	URL         string
	Address     []string
	Distance    float64

	// Hours and Photos are nil until a detail response has been merged.
	Hours  []Hours
	Photos []string

	// Reviews is nil until a reviews response has been attached.
	Reviews []Review
}

type coordinateWire struct {
	Latitude  *float64 `mapstructure:"latitude" validate:"required"`
	Longitude *float64 `mapstructure:"longitude" validate:"required"`
}

type categoryWire struct {
	Alias string `mapstructure:"alias" validate:"required"`
	Title string `mapstructure:"title"`
}

// businessWire holds the fields a business cannot be built without.
type businessWire struct {
	ID          string          `mapstructure:"id" validate:"required"`
	Name        string          `mapstructure:"name" validate:"required"`
	Coordinates *coordinateWire `mapstructure:"coordinates" validate:"required"`
	Categories  []categoryWire  `mapstructure:"categories" validate:"required,dive"`
	IsClosed    *bool           `mapstructure:"is_closed" validate:"required"`
	Rating      *float64        `mapstructure:"rating" validate:"required"`
}

type locationWire struct {
	DisplayAddress []string `mapstructure:"display_address"`
}

type openPeriodWire struct {
	Day         int    `mapstructure:"day"`
	Start       string `mapstructure:"start"`
	End         string `mapstructure:"end"`
	IsOvernight bool   `mapstructure:"is_overnight"`
}

type hoursWire struct {
	HoursType string           `mapstructure:"hours_type"`
	IsOpenNow bool             `mapstructure:"is_open_now"`
	Open      []openPeriodWire `mapstructure:"open"`
}

// businessExtrasWire holds the optional fields. It is decoded leniently.
type businessExtrasWire struct {
	ReviewCount int          `mapstructure:"review_count"`
	Price       string       `mapstructure:"price"`
	Phone       string       `mapstructure:"phone"`
	ImageURL    string       `mapstructure:"image_url"`
	URL         string       `mapstructure:"url"`
	Distance    float64      `mapstructure:"distance"`
	Location    locationWire `mapstructure:"location"`
}

type detailsWire struct {
	Hours  []hoursWire `mapstructure:"hours"`
	Photos []string    `mapstructure:"photos"`
}

// NewBusiness builds a Business from a single business mapping. It fails with
// ErrDecode when a required field is missing or has the wrong type; optional
// fields that are absent or malformed are left empty.
func NewBusiness(json JSON) (*Business, error) {
	var core businessWire
	if err := decodeStrict(json, &core); err != nil {
		return nil, err
	}

	var extras businessExtrasWire
	decodeLenient(json, &extras)

	categories := make([]Category, 0, len(core.Categories))
	for _, c := range core.Categories {
		categories = append(categories, Category{Alias: c.Alias, Title: c.Title})
	}

	business := &Business{
		ID:          core.ID,
		Name:        core.Name,
		Coordinate:  NewCoordinate(*core.Coordinates.Latitude, *core.Coordinates.Longitude),
		Categories:  categories,
		IsClosed:    *core.IsClosed,
		Rating:      *core.Rating,
		ReviewCount: extras.ReviewCount,
		Price:       extras.Price,
		Phone:       extras.Phone,
		ImageURL:    extras.ImageURL,
		URL:         extras.URL,
		Address:     extras.Location.DisplayAddress,
		Distance:    extras.Distance,
	}
	business.UpdateWithHoursAndPhotos(json)

	return business, nil
}

// UpdateWithHoursAndPhotos merges the hours and photos of a detail response
// into b. Fields missing from json leave the current values untouched.
func (b *Business) UpdateWithHoursAndPhotos(json JSON) {
	var details detailsWire
	decodeLenient(json, &details)

	if _, ok := json["hours"]; ok && details.Hours != nil {
		hours := make([]Hours, 0, len(details.Hours))
		for _, h := range details.Hours {
			periods := make([]OpenPeriod, 0, len(h.Open))
			for _, p := range h.Open {
				periods = append(periods, OpenPeriod(p))
			}
			hours = append(hours, Hours{HoursType: h.HoursType, IsOpenNow: h.IsOpenNow, Open: periods})
		}
		b.Hours = hours
	}

	if _, ok := json["photos"]; ok && details.Photos != nil {
		b.Photos = details.Photos
	}
}

// IsOpenNow reports whether any merged hours block says the business is open.
// It is false until details have been fetched.
func (b *Business) IsOpenNow() bool {
	for _, h := range b.Hours {
		if h.IsOpenNow {
			return true
		}
	}
	return false
}

// JSON encodes b into the mapping shape the API uses, so that it can be fed
// back into NewBusiness or served by a stub.
func (b *Business) JSON() JSON {
	categories := make([]any, 0, len(b.Categories))
	for _, c := range b.Categories {
		categories = append(categories, JSON{"alias": c.Alias, "title": c.Title})
	}

	out := JSON{
		"id":   b.ID,
		"name": b.Name,
		"coordinates": JSON{
			"latitude":  b.Coordinate.Latitude,
			"longitude": b.Coordinate.Longitude,
		},
		"categories":   categories,
		"is_closed":    b.IsClosed,
		"rating":       b.Rating,
		"review_count": b.ReviewCount,
		"price":        b.Price,
		"phone":        b.Phone,
		"image_url":    b.ImageURL,
		"url":          b.URL,
		"distance":     b.Distance,
	}

	if b.Address != nil {
		address := make([]any, 0, len(b.Address))
		for _, line := range b.Address {
			address = append(address, line)
		}
		out["location"] = JSON{"display_address": address}
	}

	if b.Hours != nil {
		hours := make([]any, 0, len(b.Hours))
		for _, h := range b.Hours {
			open := make([]any, 0, len(h.Open))
			for _, p := range h.Open {
				open = append(open, JSON{
					"day":          p.Day,
					"start":        p.Start,
					"end":          p.End,
					"is_overnight": p.IsOvernight,
				})
			}
			hours = append(hours, JSON{
				"hours_type":  h.HoursType,
				"is_open_now": h.IsOpenNow,
				"open":        open,
			})
		}
		out["hours"] = hours
	}

	if b.Photos != nil {
		photos := make([]any, 0, len(b.Photos))
		for _, p := range b.Photos {
			photos = append(photos, p)
		}
		out["photos"] = photos
	}

	return out
}
