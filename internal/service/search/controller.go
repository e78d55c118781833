// Package search coordinates location, business search and the selection of
// a business into what a view shows.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
	"github.com/phrazzld/restaurant-reviews/internal/platform/yelp"
	"github.com/phrazzld/restaurant-reviews/internal/service/location"
	"github.com/phrazzld/restaurant-reviews/internal/task"
)

var (
	// ErrNotAuthorized is returned by Start when the account or the location
	// permission is missing.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrMissingDependency is returned by NewController for an incomplete
	// Dependencies value.
	ErrMissingDependency = errors.New("missing dependency")
)

// View renders what the controller produces. Every method is called on the
// controller's dispatcher.
type View interface {
	ShowBusinesses(businesses []*domain.Business)
	ShowBusiness(business *domain.Business)
	ShowReviews(business *domain.Business, reviews []domain.Review)
	ShowError(err error)
}

// Client is the part of the API client the controller uses. *yelp.Client
// satisfies it.
type Client interface {
	Search(ctx context.Context, params yelp.SearchParams, completion func([]*domain.Business, error))
	task.BusinessClient
}

// OperationQueue accepts operations for execution. *task.Queue satisfies it.
type OperationQueue interface {
	Add(ops ...*task.Operation) error
}

// Dependencies are the collaborators of a Controller. Queue must deliver
// completions on Dispatcher.
type Dependencies struct {
	Client     Client
	Account    *domain.Account
	Location   location.Provider
	Queue      OperationQueue
	Dispatcher task.Dispatcher
	View       View

	// Defaults fills in everything except Term and Coordinate.
	Defaults yelp.SearchParams
}

// Controller turns location updates, search terms and row selections into
// API calls and view updates.
type Controller struct {
	client     Client
	account    *domain.Account
	location   location.Provider
	queue      OperationQueue
	dispatcher task.Dispatcher
	view       View
	defaults   yelp.SearchParams
	results    *ResultSet
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	coordinate *domain.Coordinate
	generation uint64
	replaced   uint64
	selection  []*task.Operation
}

var _ location.Delegate = (*Controller)(nil)

// NewController creates a Controller and registers it as the location
// delegate. Close releases it.
func NewController(deps Dependencies, logger *slog.Logger) (*Controller, error) {
	switch {
	case deps.Client == nil:
		return nil, fmt.Errorf("%w: client", ErrMissingDependency)
	case deps.Location == nil:
		return nil, fmt.Errorf("%w: location provider", ErrMissingDependency)
	case deps.Queue == nil:
		return nil, fmt.Errorf("%w: operation queue", ErrMissingDependency)
	case deps.View == nil:
		return nil, fmt.Errorf("%w: view", ErrMissingDependency)
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = task.InlineDispatcher{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		client:     deps.Client,
		account:    deps.Account,
		location:   deps.Location,
		queue:      deps.Queue,
		dispatcher: deps.Dispatcher,
		view:       deps.View,
		defaults:   deps.Defaults,
		results:    NewResultSet(),
		logger:     logger.With("component", "search_controller"),
		ctx:        ctx,
		cancel:     cancel,
	}
	deps.Location.SetDelegate(c)
	return c, nil
}

// Results returns the rows of the latest search.
func (c *Controller) Results() *ResultSet {
	return c.results
}

// Coordinate returns the last coordinate reported by the location provider.
func (c *Controller) Coordinate() (domain.Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coordinate == nil {
		return domain.Coordinate{}, false
	}
	return *c.coordinate, true
}

// IsAuthorized reports whether both the API account and location access are
// usable.
func (c *Controller) IsAuthorized() bool {
	return c.account != nil && c.account.IsAuthorized() && c.location.IsAuthorized()
}

// Start requests the current location when authorized. The nearby search
// follows from ObtainedCoordinate.
func (c *Controller) Start() error {
	if !c.IsAuthorized() {
		accountOK := c.account != nil && c.account.IsAuthorized()
		return fmt.Errorf("%w: account %t, location %t", ErrNotAuthorized, accountOK, c.location.IsAuthorized())
	}
	c.location.RequestLocation(c.ctx)
	return nil
}

// ObtainedCoordinate implements location.Delegate. Every new coordinate
// triggers a nearby search.
func (c *Controller) ObtainedCoordinate(coordinate domain.Coordinate) {
	c.mu.Lock()
	c.coordinate = &coordinate
	c.mu.Unlock()

	c.logger.Debug("coordinate obtained", "coordinate", coordinate.String())
	c.ShowNearby(coordinate)
}

// FailedWithError implements location.Delegate.
func (c *Controller) FailedWithError(err error) {
	c.logger.Warn("location failed", "error", err)
	c.dispatcher.Dispatch(func() {
		c.view.ShowError(err)
	})
}

// ShowNearby searches around coordinate without a term.
func (c *Controller) ShowNearby(coordinate domain.Coordinate) {
	c.search("", coordinate)
}

// UpdateSearchTerm searches for term around the last known coordinate. It
// does nothing when term is empty or no coordinate is known yet.
func (c *Controller) UpdateSearchTerm(term string) {
	coordinate, ok := c.Coordinate()
	if term == "" || !ok {
		return
	}
	c.search(term, coordinate)
}

func (c *Controller) search(term string, coordinate domain.Coordinate) {
	params := c.defaults
	params.Term = term
	params.Coordinate = coordinate

	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	c.client.Search(c.ctx, params, func(businesses []*domain.Business, err error) {
		c.dispatcher.Dispatch(func() {
			if !c.isLatest(generation) {
				c.logger.Debug("dropping superseded search results", "term", term)
				return
			}
			if err != nil {
				c.logger.Error("search failed", "term", term, "error", err)
				c.view.ShowError(err)
				return
			}
			c.results.Replace(businesses)

			// Bumped after Replace: a selection that read the old count is
			// dropped even if it picked a new row. The cancelled chain stays
			// recorded so the next selection still waits for it.
			c.mu.Lock()
			c.replaced++
			selection := c.selection
			c.mu.Unlock()
			for _, op := range selection {
				op.Cancel()
			}

			c.view.ShowBusinesses(c.results.Businesses())
		})
	})
}

func (c *Controller) isLatest(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == generation
}

// isShowing reports whether the rows listed at version replaced are still
// the ones on display.
func (c *Controller) isShowing(replaced uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaced == replaced
}

// SelectBusiness loads the details and then the reviews of the business at
// row index. The view gets the business once its details are merged and the
// reviews once they arrive. Selecting again cancels what is left of the
// previous selection, and the new chain does not start before the previous
// one is terminal, so a business never has two writers. Results replaced by
// a newer search are neither updated nor shown. The returned operation is the
// last one of the chain.
func (c *Controller) SelectBusiness(index int) (*task.Operation, error) {
	c.mu.Lock()
	replaced := c.replaced
	c.mu.Unlock()

	business, err := c.results.Object(index)
	if err != nil {
		return nil, err
	}

	details, reviews := task.NewDetailsThenReviews(business, c.client)

	details.SetCompletion(func(op *task.Operation) {
		switch {
		case op.IsCancelled():
			return
		case !c.isShowing(replaced):
			c.logger.Debug("dropping details of a replaced row", "index", index, "business_id", business.ID)
			return
		case op.Err() != nil:
			c.view.ShowError(op.Err())
			return
		}
		if err := c.results.Update(business, index); err != nil {
			c.logger.Warn("selected row no longer present", "index", index, "error", err)
		}
		c.view.ShowBusiness(business)
	})
	reviews.SetCompletion(func(op *task.Operation) {
		switch {
		case op.IsCancelled(), !c.isShowing(replaced):
			return
		case op.Err() != nil:
			c.view.ShowError(op.Err())
			return
		}
		c.view.ShowReviews(business, business.Reviews)
	})

	c.mu.Lock()
	previous := c.selection
	c.selection = []*task.Operation{details, reviews}
	c.mu.Unlock()

	for _, op := range previous {
		op.Cancel()
		if err := details.AddDependency(op); err != nil {
			return nil, fmt.Errorf("failed to order business %s after the previous selection: %w", business.ID, err)
		}
	}

	if err := c.queue.Add(details, reviews); err != nil {
		return nil, fmt.Errorf("failed to schedule business %s: %w", business.ID, err)
	}

	c.logger.Debug("business selected", "index", index, "business_id", business.ID)
	return reviews, nil
}

// Close cancels in-flight requests and the current selection.
func (c *Controller) Close() {
	c.cancel()
	c.cancelSelection()
}

func (c *Controller) cancelSelection() {
	c.mu.Lock()
	selection := c.selection
	c.selection = nil
	c.mu.Unlock()

	for _, op := range selection {
		op.Cancel()
	}
}
