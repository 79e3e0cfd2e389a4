package domain

import "time"

// AgentResult is the per-agent outcome of a run.
type AgentResult struct {
	AgentID  string
	Workload int
	Distance float64
	VisitIDs []string
}

// VisitResult is the per-visit outcome of a run.
type VisitResult struct {
	VisitID    string
	AgentID    string
	TripOrder  int
	DropoffID  string
	DropoffSeq int
}

// AssignmentRun is the complete output of one (area, date) run.
type AssignmentRun struct {
	RunID           string
	Area            string
	Date            string
	CreatedAt       time.Time
	AgentsNeeded    int
	AverageWorkload float64
	Agents          []AgentResult
	Visits          []VisitResult
	Routes          []AgentRoute
	Overflow        []string
	Unresolved      []string
	Warnings        []string
}
