package task

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/platform/fetch"
	"github.com/phrazzld/restaurant-reviews/internal/platform/yelp"
	"github.com/phrazzld/restaurant-reviews/internal/testutils/yelpstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBusinessClient implements BusinessClient with injectable behaviour.
type fakeBusinessClient struct {
	updateFn  func(business *domain.Business) error
	reviewsFn func(business *domain.Business) ([]domain.Review, error)
}

func (f *fakeBusinessClient) UpdateDetails(
	_ context.Context,
	business *domain.Business,
	completion func(*domain.Business, error),
) {
	go func() {
		err := f.updateFn(business)
		completion(business, err)
	}()
}

func (f *fakeBusinessClient) Reviews(
	_ context.Context,
	business *domain.Business,
	completion func([]domain.Review, error),
) {
	go func() {
		completion(f.reviewsFn(business))
	}()
}

func newTestBusiness(t *testing.T, id string) *domain.Business {
	t.Helper()
	business, err := domain.NewBusiness(yelpstub.Business(id, "Lucali", 40.6801, -73.9963))
	require.NoError(t, err)
	return business
}

func TestDetailsThenReviews_EndToEnd(t *testing.T) {
	t.Parallel()

	stub := yelpstub.New(t)
	detail := yelpstub.Business("lucali", "Lucali", 40.6801, -73.9963)
	detail["photos"] = []any{"https://img.example.com/1.jpg"}
	stub.SetBusiness("lucali", detail)
	stub.SetReviews("lucali", yelpstub.Review("Worth the wait.", "Ana", 5))
	stub.SetDelay(yelpstub.BusinessPath("lucali"), 50*time.Millisecond)

	client := yelp.NewClient(stub.Client(), yelpstub.DefaultToken, setupTestLogger(),
		yelp.WithBaseURL(stub.BaseURL()))
	business := newTestBusiness(t, "lucali")

	q := startQueue(t, QueueConfig{WorkerCount: 4, QueueSize: 10})
	details, reviews := NewDetailsThenReviews(business, client)
	assert.Equal(t, []*Operation{details}, reviews.Dependencies())

	notified := make(chan *domain.Business, 1)
	reviews.SetCompletion(func(*Operation) { notified <- business })

	require.NoError(t, q.Add(reviews, details))

	select {
	case got := <-notified:
		assert.Same(t, business, got)
	case <-time.After(waitTimeout):
		t.Fatal("reviews completion was not delivered")
	}
	waitAll(t, q)

	assert.Equal(t, StateFinished, details.State())
	assert.Equal(t, StateFinished, reviews.State())
	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, business.Photos)
	require.Len(t, business.Reviews, 1)
	assert.Equal(t, "Ana", business.Reviews[0].UserName)
	assert.Equal(t,
		[]string{yelpstub.BusinessPath("lucali"), yelpstub.ReviewsPath("lucali")},
		stub.Requests())
}

func TestBusinessDetailsOperation_FailureFinishes(t *testing.T) {
	t.Parallel()

	stub := yelpstub.New(t)
	stub.SetStatus(yelpstub.BusinessPath("lucali"), http.StatusServiceUnavailable)
	client := yelp.NewClient(stub.Client(), yelpstub.DefaultToken, setupTestLogger(),
		yelp.WithBaseURL(stub.BaseURL()))

	q := startQueue(t, DefaultQueueConfig())
	op := NewBusinessDetailsOperation(newTestBusiness(t, "lucali"), client)
	require.NoError(t, q.Add(op))
	waitAll(t, q)

	assert.Equal(t, StateFinished, op.State())
	assert.ErrorIs(t, op.Err(), fetch.ErrResponseUnsuccessful)
}

func TestBusinessReviewsOperation_DiscardsReviewsAfterCancel(t *testing.T) {
	t.Parallel()

	inFlight := make(chan struct{})
	release := make(chan struct{})
	client := &fakeBusinessClient{
		reviewsFn: func(business *domain.Business) ([]domain.Review, error) {
			close(inFlight)
			<-release
			return []domain.Review{{BusinessID: business.ID, Text: "late"}}, nil
		},
	}

	business := newTestBusiness(t, "lucali")
	q := startQueue(t, DefaultQueueConfig())
	op := NewBusinessReviewsOperation(business, client)
	require.NoError(t, q.Add(op))

	select {
	case <-inFlight:
	case <-time.After(waitTimeout):
		t.Fatal("reviews request was not issued")
	}
	op.Cancel()
	close(release)
	waitAll(t, q)

	assert.Equal(t, StateCancelled, op.State())
	assert.Nil(t, business.Reviews)
}

func TestBusinessReviewsOperation_ReportsFetchError(t *testing.T) {
	t.Parallel()

	client := &fakeBusinessClient{
		reviewsFn: func(*domain.Business) ([]domain.Review, error) {
			return nil, errors.New("offline")
		},
	}

	business := newTestBusiness(t, "lucali")
	q := startQueue(t, DefaultQueueConfig())
	op := NewBusinessReviewsOperation(business, client)
	require.NoError(t, q.Add(op))
	waitAll(t, q)

	assert.Equal(t, StateFinished, op.State())
	assert.ErrorContains(t, op.Err(), "offline")
	assert.Nil(t, business.Reviews)
}

func TestDetailsThenReviews_CancelledDetailsStillReleasesReviews(t *testing.T) {
	t.Parallel()

	var detailsCalled bool
	client := &fakeBusinessClient{
		updateFn: func(*domain.Business) error {
			detailsCalled = true
			return nil
		},
		reviewsFn: func(b *domain.Business) ([]domain.Review, error) {
			return []domain.Review{{BusinessID: b.ID, Text: "good"}}, nil
		},
	}

	business := newTestBusiness(t, "lucali")
	q := NewQueue(DefaultQueueConfig(), setupTestLogger())
	t.Cleanup(q.Stop)

	details, reviews := NewDetailsThenReviews(business, client)
	require.NoError(t, q.Add(details, reviews))
	details.Cancel()
	q.Start()
	waitAll(t, q)

	assert.False(t, detailsCalled)
	assert.Equal(t, StateCancelled, details.State())
	assert.Equal(t, StateFinished, reviews.State())
	require.Len(t, business.Reviews, 1)
}

func TestBusinessOperations_NilBusiness(t *testing.T) {
	t.Parallel()

	q := startQueue(t, DefaultQueueConfig())
	details := NewBusinessDetailsOperation(nil, &fakeBusinessClient{})
	reviews := NewBusinessReviewsOperation(nil, &fakeBusinessClient{})
	require.NoError(t, q.Add(details, reviews))
	waitAll(t, q)

	assert.ErrorIs(t, details.Err(), ErrNilBusiness)
	assert.ErrorIs(t, reviews.Err(), ErrNilBusiness)
}
