package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// Operation names used in logs and transition events
const (
	BusinessDetailsOperationName = "business_details"
	BusinessReviewsOperationName = "business_reviews"
)

// ErrNilBusiness is returned by business operations created without a business.
var ErrNilBusiness = errors.New("business is nil")

// DetailsUpdater merges the detail record of a business into it in place.
// *yelp.Client satisfies it.
type DetailsUpdater interface {
	UpdateDetails(ctx context.Context, business *domain.Business, completion func(*domain.Business, error))
}

// ReviewsFetcher fetches the reviews of a business.
// *yelp.Client satisfies it.
type ReviewsFetcher interface {
	Reviews(ctx context.Context, business *domain.Business, completion func([]domain.Review, error))
}

// NewBusinessDetailsOperation creates an operation that merges hours and
// photos into business. The business is referenced, not copied; whoever reads
// it must wait for the operation to be terminal.
func NewBusinessDetailsOperation(business *domain.Business, updater DetailsUpdater) *Operation {
	return NewOperation(BusinessDetailsOperationName, func(ctx context.Context, op *Operation, done func(error)) {
		if business == nil {
			done(ErrNilBusiness)
			return
		}
		if op.IsCancelled() {
			done(nil)
			return
		}

		updater.UpdateDetails(ctx, business, func(_ *domain.Business, err error) {
			if err != nil {
				done(fmt.Errorf("failed to update details of business %s: %w", business.ID, err))
				return
			}
			done(nil)
		})
	})
}

// NewBusinessReviewsOperation creates an operation that fetches the reviews
// of business and attaches them to it. Reviews that arrive after the
// operation was cancelled are discarded.
func NewBusinessReviewsOperation(business *domain.Business, fetcher ReviewsFetcher) *Operation {
	return NewOperation(BusinessReviewsOperationName, func(ctx context.Context, op *Operation, done func(error)) {
		if business == nil {
			done(ErrNilBusiness)
			return
		}
		if op.IsCancelled() {
			done(nil)
			return
		}

		fetcher.Reviews(ctx, business, func(reviews []domain.Review, err error) {
			if err != nil {
				done(fmt.Errorf("failed to fetch reviews of business %s: %w", business.ID, err))
				return
			}
			if op.IsCancelled() {
				done(nil)
				return
			}
			business.Reviews = reviews
			done(nil)
		})
	})
}

// BusinessClient fetches both details and reviews.
type BusinessClient interface {
	DetailsUpdater
	ReviewsFetcher
}

// NewDetailsThenReviews builds the details operation and a reviews operation
// that depends on it, so the two never write to business concurrently. Both
// still need to be added to a queue.
func NewDetailsThenReviews(business *domain.Business, client BusinessClient) (details, reviews *Operation) {
	details = NewBusinessDetailsOperation(business, client)
	reviews = NewBusinessReviewsOperation(business, client)
	// Both operations are fresh, so the edge cannot be rejected.
	_ = reviews.AddDependency(details)
	return details, reviews
}
