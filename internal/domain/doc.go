// Package domain contains the core entities of the restaurant-reviews client:
// businesses, reviews, coordinates and the OAuth account used to talk to the
// business-data API. It also owns the JSON decoding layer that turns loosely
// typed API payloads into these entities.
package domain
