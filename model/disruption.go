package model

import "time"

// DisruptionCategory names the kind of asset a disruption targets.
type DisruptionCategory int

const (
	DisruptionStop DisruptionCategory = iota
	DisruptionRoute
	DisruptionCharger
	DisruptionDepot
	DisruptionBus
)

// DisruptionSource distinguishes the random consecutive-stop generator from
// flood-hazard-driven disruptions, so logs and metrics can attribute cause.
type DisruptionSource int

const (
	SourceRandom DisruptionSource = iota
	SourceFlood
)

// DisruptionEvent is an active or expired impairment of a stop, route,
// charger, depot, or bus over a time window. For a DisruptionRoute event,
// AffectedStopIDs names exactly the stops within that route that are
// actually unusable (the randomly chosen consecutive run, or the stops a
// flood raster query found submerged) — the route itself otherwise
// remains serviceable.
type DisruptionEvent struct {
	ID              string
	Category        DisruptionCategory
	Source          DisruptionSource
	TargetID        string
	AffectedStopIDs []string
	StartTime       time.Time
	EndTime         time.Time
	Description     string
}

// Active reports whether the disruption covers now.
func (d *DisruptionEvent) Active(now time.Time) bool {
	return !now.Before(d.StartTime) && now.Before(d.EndTime)
}
