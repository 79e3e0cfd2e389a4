package domain

// Specimen hand-off location (lab or clinic site). Immutable reference data.
type DropoffLocation struct {
	ID       string
	Clinic   string
	Location Coordinates
	Address  string
	City     string
	State    string
	Zip      string
}

// DropoffGroup lists the visits sharing one resolved drop-off, in the order
// they were first resolved. Only lives for the duration of a run.
type DropoffGroup struct {
	DropoffID string
	VisitIDs  []string
}

// WorkloadProfile is the historical average workload one agent carries per day in an area.
type WorkloadProfile struct {
	Area          string
	AveragePoints float64
}
