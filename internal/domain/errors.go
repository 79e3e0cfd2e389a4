package domain

import "errors"

var (
	// ErrNoVisitsFound means the area has no visits on the requested date.
	ErrNoVisitsFound = errors.New("no visits found")
	// ErrNoCandidateAgents means no agent could be found for the area at any search radius.
	ErrNoCandidateAgents = errors.New("no candidate agents")
	ErrUnresolvedDropoff = errors.New("unresolved dropoff")
	// ErrDistanceProviderUnavailable means the routing API failed and geodesic distance was used.
	ErrDistanceProviderUnavailable = errors.New("distance provider unavailable")
	ErrCapacityExceeded            = errors.New("capacity exceeded")
)
