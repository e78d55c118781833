package location

import (
	"context"
	"sync"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// FixedSource is a Source that always reports the same coordinate. The CLI
// uses it with the coordinate from configuration or flags.
type FixedSource struct {
	mu         sync.Mutex
	coordinate *domain.Coordinate
	status     AuthorizationStatus
	answer     AuthorizationStatus
}

var _ Source = (*FixedSource)(nil)

// NewFixedSource returns an authorized source reporting coordinate.
func NewFixedSource(coordinate domain.Coordinate) *FixedSource {
	return &FixedSource{
		coordinate: &coordinate,
		status:     StatusAuthorizedWhenInUse,
		answer:     StatusAuthorizedWhenInUse,
	}
}

// NewUndeterminedSource returns a source whose user has not been asked yet
// and who will answer a prompt with answer.
func NewUndeterminedSource(coordinate domain.Coordinate, answer AuthorizationStatus) *FixedSource {
	return &FixedSource{
		coordinate: &coordinate,
		status:     StatusNotDetermined,
		answer:     answer,
	}
}

// SetStatus overrides the authorization status.
func (s *FixedSource) SetStatus(status AuthorizationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// ClearCoordinate makes later fixes fail with ErrUnableToFindLocation.
func (s *FixedSource) ClearCoordinate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coordinate = nil
}

// AuthorizationStatus implements Source.
func (s *FixedSource) AuthorizationStatus() AuthorizationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RequestWhenInUseAuthorization implements Source.
func (s *FixedSource) RequestWhenInUseAuthorization(ctx context.Context) (AuthorizationStatus, error) {
	if err := ctx.Err(); err != nil {
		return StatusNotDetermined, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusNotDetermined {
		s.status = s.answer
	}
	return s.status, nil
}

// CurrentCoordinate implements Source.
func (s *FixedSource) CurrentCoordinate(ctx context.Context) (domain.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinate == nil {
		return domain.Coordinate{}, ErrUnableToFindLocation
	}
	return *s.coordinate, nil
}
