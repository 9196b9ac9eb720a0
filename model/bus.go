package model

import "time"

// BusStatus is the tagged variant describing what a bus is doing right now.
// Exactly one of these holds at any tick; fields irrelevant to the current
// status are left at their zero value rather than interpreted.
type BusStatus int

const (
	InDepot BusStatus = iota
	Idle
	OnRoute
	HeadingToCharger
	Charging
	ReturningToDepot
	Stranded
)

func (s BusStatus) String() string {
	switch s {
	case InDepot:
		return "in_depot"
	case Idle:
		return "idle"
	case OnRoute:
		return "on_route"
	case HeadingToCharger:
		return "heading_to_charger"
	case Charging:
		return "charging"
	case ReturningToDepot:
		return "returning_to_depot"
	case Stranded:
		return "stranded"
	default:
		return "unknown"
	}
}

// ChargingState tracks an in-progress charging session.
type ChargingState struct {
	StationID string
	StartedAt time.Time
	MinEndAt  time.Time
}

// DecisionAction is the kind of action the MIP optimizer (or a fallback
// heuristic) can commit a bus to for the current tick.
type DecisionAction int

const (
	ActionNone DecisionAction = iota
	ActionCharge
	ActionReturnDepot
	ActionMove
)

// PendingDecision is the immediate, single-tick action extracted from the
// optimizer's solution and awaiting application by the apply package.
type PendingDecision struct {
	Action       DecisionAction
	TargetNodeID string // charger id for ActionCharge/ActionMove-to-charger, depot id for ActionReturnDepot
}

// Bus is a single fleet vehicle. Buses never hold pointers to other buses,
// stops, or stations; all cross-references are by ID through the owning
// State, so concurrent per-tick steps never alias mutable state.
type Bus struct {
	ID      string `json:"bus_id"`
	Model   string `json:"model"`
	Company string `json:"company"`

	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
	SoCPercent         float64 `json:"soc_percent"`
	CostPerKm          float64 `json:"cost_per_km"`

	Status BusStatus

	CurrentStopID  string
	CurrentRouteID string

	// HomeDepotID is the bus's permanent base; DepotID is the depot it is
	// currently parked at (or bound for). Returns always target home.
	HomeDepotID string
	DepotID     string

	Location Location

	Charge *ChargingState

	Schedule DailySchedule

	// NextTripIndex is the position in Schedule.Trips of the next trip
	// not yet dispatched; each trip fires exactly once.
	NextTripIndex int

	Decision PendingDecision

	DistanceTraveledMeters float64
	EnergyConsumedKWh      float64
	UnservedDemand         float64
	DelaySeconds           float64
	StrandedAt             *time.Time
}

// ReturnDepotID is the depot a return-to-depot transition targets: the
// home depot when set, else the current depot (test fixtures and minimal
// datasets often configure only one).
func (b *Bus) ReturnDepotID() string {
	if b.HomeDepotID != "" {
		return b.HomeDepotID
	}
	return b.DepotID
}

// SoCFraction returns SoCPercent as a 0..1 fraction.
func (b *Bus) SoCFraction() float64 {
	return b.SoCPercent / 100.0
}

// IsCritical reports whether the bus is at or below a critical state of
// charge threshold (expressed as a percentage, e.g. 22.0).
func (b *Bus) IsCritical(thresholdPercent float64) bool {
	return b.SoCPercent <= thresholdPercent
}
