package domain

import (
	"slices"
	"strconv"
	"strings"
)

// AgentRecord is one row of the agent roster.
type AgentRecord struct {
	ID   string
	Area string
	Home Coordinates
}

// Field agent aggregate accumulating visits, workload and travel distance
// during a single allocation run.
//
// Workload always equals the sum of workload points of the assigned visits;
// Assign and AssignGroup are the only mutators that keep it that way.
type Agent struct {
	ID               string
	Area             string
	Home             Coordinates
	Workload         int
	VisitIDs         []string
	Distance         float64
	CurrentLocation  Coordinates
	DistanceToTarget float64
}

// NewAgent materializes a fresh working copy of a roster entry.
func NewAgent(rec AgentRecord, distanceToTarget float64) *Agent {
	return &Agent{
		ID:               rec.ID,
		Area:             rec.Area,
		Home:             rec.Home,
		VisitIDs:         []string{},
		CurrentLocation:  rec.Home,
		DistanceToTarget: distanceToTarget,
	}
}

// HasCapacity reports whether points more workload fit under the ceiling.
func (a *Agent) HasCapacity(points int, ceiling float64) bool {
	return float64(a.Workload+points) <= ceiling
}

// Assign appends a single visit, adds legMiles to the distance accumulator
// and advances the current location to the visit.
func (a *Agent) Assign(v *Visit, legMiles float64) {
	a.VisitIDs = append(a.VisitIDs, v.ID)
	a.Workload += v.WorkloadPoints
	a.Distance += legMiles
	a.CurrentLocation = v.Location

	v.AgentID = a.ID
	v.TripOrder = len(a.VisitIDs)
}

// AssignGroup appends visits in scheduled-time order, adds totalMiles to the
// distance accumulator once and leaves the cursor on the last visit.
func (a *Agent) AssignGroup(visits []*Visit, totalMiles float64) {
	if len(visits) == 0 {
		return
	}

	ordered := slices.Clone(visits)
	slices.SortStableFunc(ordered, CompareSchedule)

	for _, v := range ordered {
		a.VisitIDs = append(a.VisitIDs, v.ID)
		a.Workload += v.WorkloadPoints
		v.AgentID = a.ID
		v.TripOrder = len(a.VisitIDs)
	}
	a.Distance += totalMiles
	a.CurrentLocation = ordered[len(ordered)-1].Location
}

// CompareAgentIDs orders ids numerically when both parse as integers and
// lexicographically otherwise.
func CompareAgentIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}
