package events

import (
	"field-route-service/internal/domain"
	"time"
)

// RunMessage is the wire form of a finished assignment run.
type RunMessage struct {
	RunID           string           `json:"run_id"`
	Area            string           `json:"area"`
	Date            string           `json:"date"`
	CreatedAt       time.Time        `json:"created_at"`
	AgentsNeeded    int              `json:"agents_needed"`
	AverageWorkload float64          `json:"average_workload"`
	Agents          []AgentMessage   `json:"agents"`
	Visits          []VisitMessage   `json:"visits"`
	Dropoffs        []DropoffMessage `json:"dropoffs"`
	Overflow        []string         `json:"overflow,omitempty"`
	Unresolved      []string         `json:"unresolved,omitempty"`
}

type AgentMessage struct {
	AgentID    string   `json:"agent_id"`
	Workload   int      `json:"workload"`
	Miles      float64  `json:"miles"`
	RouteMiles float64  `json:"route_miles"`
	VisitIDs   []string `json:"visit_ids"`
}

type VisitMessage struct {
	VisitID    string `json:"visit_id"`
	AgentID    string `json:"agent_id"`
	TripOrder  int    `json:"trip_order"`
	DropoffID  string `json:"dropoff_id,omitempty"`
	DropoffSeq int    `json:"dropoff_seq,omitempty"`
}

// DropoffMessage is one drop-off stop of one agent's route.
type DropoffMessage struct {
	AgentID   string   `json:"agent_id"`
	DropoffID string   `json:"dropoff_id"`
	Sequence  int      `json:"sequence"`
	VisitIDs  []string `json:"visit_ids"`
}

func NewRunMessage(run *domain.AssignmentRun) RunMessage {
	routeMiles := make(map[string]float64, len(run.Routes))
	msg := RunMessage{
		RunID:           run.RunID,
		Area:            run.Area,
		Date:            run.Date,
		CreatedAt:       run.CreatedAt,
		AgentsNeeded:    run.AgentsNeeded,
		AverageWorkload: run.AverageWorkload,
		Agents:          make([]AgentMessage, 0, len(run.Agents)),
		Visits:          make([]VisitMessage, 0, len(run.Visits)),
		Dropoffs:        []DropoffMessage{},
		Overflow:        run.Overflow,
		Unresolved:      run.Unresolved,
	}

	for _, r := range run.Routes {
		routeMiles[r.AgentID] = r.TotalMiles
		for _, s := range r.Stops {
			if s.Kind != domain.StopDropoff {
				continue
			}
			msg.Dropoffs = append(msg.Dropoffs, DropoffMessage{
				AgentID:   r.AgentID,
				DropoffID: s.RefID,
				Sequence:  s.Sequence,
				VisitIDs:  s.VisitIDs,
			})
		}
	}

	for _, a := range run.Agents {
		msg.Agents = append(msg.Agents, AgentMessage{
			AgentID:    a.AgentID,
			Workload:   a.Workload,
			Miles:      a.Distance,
			RouteMiles: routeMiles[a.AgentID],
			VisitIDs:   a.VisitIDs,
		})
	}
	for _, v := range run.Visits {
		msg.Visits = append(msg.Visits, VisitMessage(v))
	}

	return msg
}
