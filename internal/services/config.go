package services

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the engine's tunable parameters.
type Config struct {
	// DropoffDiscount is the fraction taken off distance scores when an
	// assignment consolidates visits onto a shared drop-off.
	DropoffDiscount float64
	// CapacityMultiplier scales the area's average workload into the
	// per-agent capacity ceiling.
	CapacityMultiplier float64
	// DefaultAverageWorkload is used for areas without a workload profile.
	DefaultAverageWorkload float64

	BaseRadiusMiles float64
	RadiusStepMiles float64
	MaxRadiusMiles  float64
	// AreaOnly drops out-of-area agents whenever at least one in-area agent is available.
	AreaOnly bool

	// Workers bounds concurrent distance evaluations within a phase.
	Workers int

	AverageSpeedMPH float64
	MinLegTravel    time.Duration
}

func DefaultConfig() Config {
	return Config{
		DropoffDiscount:        0.2,
		CapacityMultiplier:     4,
		DefaultAverageWorkload: 1000,
		BaseRadiusMiles:        30,
		RadiusStepMiles:        20,
		MaxRadiusMiles:         100,
		AreaOnly:               true,
		Workers:                5,
		AverageSpeedMPH:        30,
		MinLegTravel:           5 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.DropoffDiscount < 0 || c.DropoffDiscount >= 1 {
		return fmt.Errorf("dropoff discount must be in [0, 1), got %v", c.DropoffDiscount)
	}
	if c.CapacityMultiplier <= 0 {
		return fmt.Errorf("capacity multiplier must be positive, got %v", c.CapacityMultiplier)
	}
	if c.DefaultAverageWorkload <= 0 {
		return fmt.Errorf("default average workload must be positive, got %v", c.DefaultAverageWorkload)
	}
	if c.BaseRadiusMiles <= 0 || c.RadiusStepMiles <= 0 || c.MaxRadiusMiles < c.BaseRadiusMiles {
		return errors.New("search radii must be positive and max radius must not be below base radius")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.AverageSpeedMPH <= 0 {
		return fmt.Errorf("average speed must be positive, got %v", c.AverageSpeedMPH)
	}
	return nil
}
