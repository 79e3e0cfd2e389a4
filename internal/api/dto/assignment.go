package dto

import "time"

type CoordinatesRequest struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lon *float64 `json:"lon" validate:"required,min=-180,max=180"`
}

type CreateAssignmentsRequest struct {
	Area   string              `json:"area" validate:"required"`
	Date   string              `json:"date" validate:"required,datetime=2006-01-02"`
	Mode   string              `json:"mode" validate:"omitempty,oneof=scheduled nearest"`
	Center *CoordinatesRequest `json:"center"`
}

type AgentResponse struct {
	AgentID  string   `json:"agent_id"`
	Workload int      `json:"workload"`
	Miles    float64  `json:"miles"`
	VisitIDs []string `json:"visit_ids"`
}

type VisitResponse struct {
	VisitID    string `json:"visit_id"`
	AgentID    string `json:"agent_id"`
	TripOrder  int    `json:"trip_order"`
	DropoffID  string `json:"dropoff_id,omitempty"`
	DropoffSeq int    `json:"dropoff_seq,omitempty"`
}

type StopResponse struct {
	Kind          string       `json:"kind"`
	RefID         string       `json:"ref_id"`
	Sequence      int          `json:"sequence"`
	Lat           float64      `json:"lat"`
	Lon           float64      `json:"lon"`
	LegMiles      float64      `json:"leg_miles"`
	TravelMinutes float64      `json:"travel_minutes"`
	VisitIDs      []string     `json:"visit_ids,omitempty"`
	Geometry      [][2]float64 `json:"geometry,omitempty"`
}

type RouteResponse struct {
	AgentID            string         `json:"agent_id"`
	TotalMiles         float64        `json:"total_miles"`
	TotalTravelMinutes float64        `json:"total_travel_minutes"`
	Stops              []StopResponse `json:"stops"`
}

type AssignmentRunResponse struct {
	RunID           string          `json:"run_id"`
	Area            string          `json:"area"`
	Date            string          `json:"date"`
	CreatedAt       time.Time       `json:"created_at"`
	AgentsNeeded    int             `json:"agents_needed"`
	AverageWorkload float64         `json:"average_workload"`
	Agents          []AgentResponse `json:"agents"`
	Visits          []VisitResponse `json:"visits"`
	Routes          []RouteResponse `json:"routes"`
	Overflow        []string        `json:"overflow"`
	Unresolved      []string        `json:"unresolved"`
	Warnings        []string        `json:"warnings"`
}
