package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// Manager adapts a Source to Provider. Delegates are called from a
// background goroutine; callers that need a particular thread hop there
// themselves.
type Manager struct {
	source Source
	logger *slog.Logger

	mu          sync.RWMutex
	delegate    Delegate
	permissions PermissionsDelegate
}

var _ Provider = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPermissionsDelegate registers the receiver of authorization outcomes.
func WithPermissionsDelegate(d PermissionsDelegate) ManagerOption {
	return func(m *Manager) {
		m.permissions = d
	}
}

// NewManager creates a Manager over source.
func NewManager(source Source, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		source: source,
		logger: logger.With("component", "location_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDelegate registers the receiver of location results, replacing any
// previous one.
func (m *Manager) SetDelegate(delegate Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = delegate
}

// IsAuthorized reports whether location access has been granted.
func (m *Manager) IsAuthorized() bool {
	return m.source.AuthorizationStatus() == StatusAuthorizedWhenInUse
}

// RequestAuthorization asks for location access. It fails with
// ErrDisallowedByUser when access was already restricted or denied, prompts
// when the user has not been asked yet and does nothing when access is
// already granted. The answer to a prompt goes to the permissions delegate.
func (m *Manager) RequestAuthorization(ctx context.Context) error {
	status := m.source.AuthorizationStatus()

	switch status {
	case StatusRestricted, StatusDenied:
		return fmt.Errorf("%w: status %s", ErrDisallowedByUser, status)
	case StatusAuthorizedWhenInUse:
		return nil
	}

	answer, err := m.source.RequestWhenInUseAuthorization(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	m.logger.Debug("location authorization answered", "status", answer.String())

	m.mu.RLock()
	permissions := m.permissions
	m.mu.RUnlock()
	if permissions == nil {
		return nil
	}

	if answer == StatusAuthorizedWhenInUse {
		permissions.AuthorizationSucceeded()
	} else {
		permissions.AuthorizationFailed(answer)
	}
	return nil
}

// RequestLocation asks for a single position fix and reports it to the
// delegate. It returns immediately.
func (m *Manager) RequestLocation(ctx context.Context) {
	go m.locate(ctx)
}

func (m *Manager) locate(ctx context.Context) {
	m.mu.RLock()
	delegate := m.delegate
	m.mu.RUnlock()

	if !m.IsAuthorized() {
		m.report(delegate, domain.Coordinate{}, ErrDisallowedByUser)
		return
	}

	coordinate, err := m.source.CurrentCoordinate(ctx)
	if err != nil && !isLocationError(err) {
		err = fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	m.report(delegate, coordinate, err)
}

func (m *Manager) report(delegate Delegate, coordinate domain.Coordinate, err error) {
	if err != nil {
		m.logger.Warn("location request failed", "error", err)
	} else {
		m.logger.Debug("location obtained", "coordinate", coordinate.String())
	}

	if delegate == nil {
		return
	}
	if err != nil {
		delegate.FailedWithError(err)
		return
	}
	delegate.ObtainedCoordinate(coordinate)
}

func isLocationError(err error) bool {
	return errors.Is(err, ErrUnknown) ||
		errors.Is(err, ErrDisallowedByUser) ||
		errors.Is(err, ErrUnableToFindLocation)
}
