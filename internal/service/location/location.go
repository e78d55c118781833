// Package location is the boundary to the device's positioning service. It
// tracks whether the user allowed location access and reports the current
// coordinate to a delegate.
package location

import (
	"context"
	"errors"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// Location errors reported to delegates and returned by RequestAuthorization.
var (
	// ErrUnknown wraps failures of the positioning service itself.
	ErrUnknown = errors.New("location: unknown error")

	// ErrDisallowedByUser means location access is restricted or denied.
	ErrDisallowedByUser = errors.New("location: access disallowed by user")

	// ErrUnableToFindLocation means the service answered without a position.
	ErrUnableToFindLocation = errors.New("location: unable to find location")
)

// AuthorizationStatus is the user's answer to the location access prompt.
type AuthorizationStatus int

const (
	// StatusNotDetermined means the user has never been asked.
	StatusNotDetermined AuthorizationStatus = iota
	// StatusRestricted means access is blocked by policy.
	StatusRestricted
	// StatusDenied means the user refused access.
	StatusDenied
	// StatusAuthorizedWhenInUse means access is granted while the app is in use.
	StatusAuthorizedWhenInUse
)

// String returns the status name used in logs.
func (s AuthorizationStatus) String() string {
	switch s {
	case StatusNotDetermined:
		return "not_determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorizedWhenInUse:
		return "authorized_when_in_use"
	default:
		return "unknown"
	}
}

// Source is the platform positioning service.
type Source interface {
	// AuthorizationStatus returns the current authorization status.
	AuthorizationStatus() AuthorizationStatus

	// RequestWhenInUseAuthorization prompts the user and returns the answer.
	RequestWhenInUseAuthorization(ctx context.Context) (AuthorizationStatus, error)

	// CurrentCoordinate returns a single position fix.
	CurrentCoordinate(ctx context.Context) (domain.Coordinate, error)
}

// Delegate receives the outcome of RequestLocation.
type Delegate interface {
	ObtainedCoordinate(coordinate domain.Coordinate)
	FailedWithError(err error)
}

// PermissionsDelegate receives the outcome of an authorization prompt.
type PermissionsDelegate interface {
	AuthorizationSucceeded()
	AuthorizationFailed(status AuthorizationStatus)
}

// Provider is what the search controller needs from the location layer.
type Provider interface {
	IsAuthorized() bool
	RequestAuthorization(ctx context.Context) error
	RequestLocation(ctx context.Context)
	SetDelegate(delegate Delegate)
}
