package domain

import "time"

type StopKind string

const (
	StopVisit   StopKind = "visit"
	StopDropoff StopKind = "dropoff"
)

// Represents a single stop in an agent's route.
// Visit stops carry the visit id in RefID; drop-off stops carry the drop-off id
// and the visits whose specimens are handed off there.
type RouteStop struct {
	Kind       StopKind
	RefID      string
	Location   Coordinates
	Sequence   int
	LegMiles   float64
	TravelTime time.Duration
	Geometry   [][2]float64
	VisitIDs   []string
}

// Represents the sequenced route for a single agent: every visit in trip
// order followed by the consolidated drop-off stops. Distances are measured
// from the agent's home through each stop.
type AgentRoute struct {
	AgentID         string
	Stops           []RouteStop
	TotalMiles      float64
	TotalTravelTime time.Duration
}
