package domain

import (
	"strings"
	"time"
)

// DropoffRequirement names the clinic a visit's specimens must be handed off to.
// State and Zip are optional and only narrow the match.
type DropoffRequirement struct {
	Clinic string
	State  string
	Zip    string
}

// Represents a single patient appointment for one day in one area.
//
// A Visit is created from reference data at the start of a run and mutated
// in place by the allocator (AgentID, TripOrder) and the route sequencer
// (TripOrder, DropoffID, DropoffSeq). Zero values mean "not yet assigned".
type Visit struct {
	ID             string
	Area           string
	Date           string
	Location       Coordinates
	ScheduledAt    time.Time
	WorkloadPoints int
	Dropoff        *DropoffRequirement

	AgentID    string
	TripOrder  int
	DropoffID  string
	DropoffSeq int
}

// NeedsDropoff reports whether the visit names a drop-off clinic.
func (v *Visit) NeedsDropoff() bool {
	return v.Dropoff != nil && strings.TrimSpace(v.Dropoff.Clinic) != ""
}

// Reset clears all per-run assignment state.
func (v *Visit) Reset() {
	v.AgentID = ""
	v.TripOrder = 0
	v.DropoffID = ""
	v.DropoffSeq = 0
}

// CompareSchedule orders visits by scheduled time, then id.
func CompareSchedule(a, b *Visit) int {
	if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
