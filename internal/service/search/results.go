package search

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

const (
	dimensions  = 2
	minChildren = 2
	maxChildren = 16

	// Businesses are indexed as tiny squares around their coordinate.
	pointTolerance = 1e-9
)

var (
	// ErrIndexOutOfRange is returned for a row that is not in the result set.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidRegion is returned for a region with a non-positive span.
	ErrInvalidRegion = errors.New("invalid region")
)

// Region is a map viewport: a center and the latitude/longitude span around it.
type Region struct {
	Center         domain.Coordinate
	LatitudeDelta  float64
	LongitudeDelta float64
}

// NewRegion returns the region centered on center spanning the given deltas.
func NewRegion(center domain.Coordinate, latitudeDelta, longitudeDelta float64) Region {
	return Region{Center: center, LatitudeDelta: latitudeDelta, LongitudeDelta: longitudeDelta}
}

// Contains reports whether c lies inside the region, borders included.
func (r Region) Contains(c domain.Coordinate) bool {
	minLat, minLon := r.Center.Latitude-r.LatitudeDelta/2, r.Center.Longitude-r.LongitudeDelta/2
	return c.Latitude >= minLat && c.Latitude <= minLat+r.LatitudeDelta &&
		c.Longitude >= minLon && c.Longitude <= minLon+r.LongitudeDelta
}

func (r Region) rect() (*rtreego.Rect, error) {
	if r.LatitudeDelta <= 0 || r.LongitudeDelta <= 0 {
		return nil, fmt.Errorf("%w: span %gx%g", ErrInvalidRegion, r.LatitudeDelta, r.LongitudeDelta)
	}
	corner := rtreego.Point{
		r.Center.Latitude - r.LatitudeDelta/2,
		r.Center.Longitude - r.LongitudeDelta/2,
	}
	rect, err := rtreego.NewRect(corner, []float64{r.LatitudeDelta, r.LongitudeDelta})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}
	return rect, nil
}

// entry wraps a row of the result set for the R-tree.
type entry struct {
	business *domain.Business
	index    int
	rect     *rtreego.Rect
}

func (e *entry) Bounds() *rtreego.Rect {
	return e.rect
}

func newEntry(business *domain.Business, index int) *entry {
	point := rtreego.Point{business.Coordinate.Latitude, business.Coordinate.Longitude}
	return &entry{business: business, index: index, rect: point.ToRect(pointTolerance)}
}

// ResultSet holds the businesses of the latest search in display order and
// indexes them spatially for map queries. It is safe for concurrent use.
type ResultSet struct {
	mu      sync.RWMutex
	entries []*entry
	tree    *rtreego.Rtree
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Replace discards the current rows and stores businesses in order. Nil
// businesses are skipped.
func (s *ResultSet) Replace(businesses []*domain.Business) {
	entries := make([]*entry, 0, len(businesses))
	objects := make([]rtreego.Spatial, 0, len(businesses))
	for _, business := range businesses {
		if business == nil {
			continue
		}
		e := newEntry(business, len(entries))
		entries = append(entries, e)
		objects = append(objects, e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.tree = rtreego.NewTree(dimensions, minChildren, maxChildren, objects...)
}

// Len returns the number of rows.
func (s *ResultSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Businesses returns the rows in display order.
func (s *ResultSet) Businesses() []*domain.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Business, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.business
	}
	return out
}

// Object returns the business at row index.
func (s *ResultSet) Object(index int) (*domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.entries) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.entries))
	}
	return s.entries[index].business, nil
}

// Update stores business at row index, re-indexing it if it moved.
func (s *ResultSet) Update(business *domain.Business, index int) error {
	if business == nil {
		return errors.New("business is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.entries))
	}

	old := s.entries[index]
	s.tree.Delete(old)
	e := newEntry(business, index)
	s.entries[index] = e
	s.tree.Insert(e)
	return nil
}

// WithinRegion returns the businesses inside region in display order.
func (s *ResultSet) WithinRegion(region Region) ([]*domain.Business, error) {
	rect, err := region.rect()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := s.tree.SearchIntersect(rect)
	matches := make([]*entry, 0, len(hits))
	for _, hit := range hits {
		e, ok := hit.(*entry)
		if !ok || !region.Contains(e.business.Coordinate) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].index < matches[j].index })

	out := make([]*domain.Business, len(matches))
	for i, e := range matches {
		out[i] = e.business
	}
	return out, nil
}

// Nearest returns up to k businesses closest to coordinate, nearest first.
func (s *ResultSet) Nearest(coordinate domain.Coordinate, k int) []*domain.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k > len(s.entries) {
		k = len(s.entries)
	}
	if k <= 0 {
		return nil
	}

	hits := s.tree.NearestNeighbors(k, rtreego.Point{coordinate.Latitude, coordinate.Longitude})
	out := make([]*domain.Business, 0, len(hits))
	for _, hit := range hits {
		if e, ok := hit.(*entry); ok && e != nil {
			out = append(out, e.business)
		}
	}
	return out
}
