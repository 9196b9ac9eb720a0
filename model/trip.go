package model

import (
	"fmt"
	"time"
)

// Trip is a single scheduled run of a route by a bus, anchored to a service
// day. Overnight trips (EndTime past midnight) are normalized by loaders to
// add 24h to EndTime so EndTime always follows StartTime.
type Trip struct {
	RouteID   string    `json:"route_id"`
	DepotID   string    `json:"depot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Validate enforces the EndTime > StartTime invariant.
func (t Trip) Validate() error {
	if !t.EndTime.After(t.StartTime) {
		return fmt.Errorf("trip on route %s: end time %s not after start time %s",
			t.RouteID, t.EndTime, t.StartTime)
	}
	return nil
}

// DailySchedule is the ordered list of trips a single bus serves in a day.
type DailySchedule struct {
	BusID string `json:"bus_id"`
	Trips []Trip `json:"trips"`
}

// TripAt returns the trip at position i, or nil past the end of the
// schedule. Dispatch walks the schedule by index so a trip that finishes
// ahead of its scheduled window is never re-fired.
func (s *DailySchedule) TripAt(i int) *Trip {
	if i < 0 || i >= len(s.Trips) {
		return nil
	}
	return &s.Trips[i]
}

