package model

import "sync"

// State is the single owner of every simulation entity. Components never
// hold their own copies of buses, stops, or stations; they look them up by
// ID through State on each tick. This is what makes per-tick parallel bus
// steps safe: a Bus mutates only itself, and shared resources (charging
// stations) guard their own internal counters.
type State struct {
	Stops    map[string]*Stop
	Routes   map[string]*Route
	Depots   map[string]*Depot
	Stations map[string]*ChargingStation

	Buses []*Bus

	mu                sync.RWMutex
	busByID           map[string]*Bus
	ActiveDisruptions []*DisruptionEvent
}

// NewState builds an empty State with initialized lookup maps.
func NewState() *State {
	return &State{
		Stops:    make(map[string]*Stop),
		Routes:   make(map[string]*Route),
		Depots:   make(map[string]*Depot),
		Stations: make(map[string]*ChargingStation),
		busByID:  make(map[string]*Bus),
	}
}

// IndexBuses (re)builds the bus-by-id lookup from Buses. Call after
// populating Buses during load.
func (s *State) IndexBuses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busByID = make(map[string]*Bus, len(s.Buses))
	for _, b := range s.Buses {
		s.busByID[b.ID] = b
	}
}

// BusByID returns the bus with the given id, or nil if absent.
func (s *State) BusByID(id string) *Bus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busByID[id]
}

// SetActiveDisruptions replaces the disruption list. Called once per tick by
// the disruption manager; bus steps only ever read the slice afterward.
func (s *State) SetActiveDisruptions(events []*DisruptionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActiveDisruptions = events
}

// Disruptions returns the current active disruption list.
func (s *State) Disruptions() []*DisruptionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ActiveDisruptions
}

// StopDisrupted reports whether stopID is currently unusable: either a
// direct DisruptionStop on it, or a DisruptionRoute on routeID that lists
// stopID among its AffectedStopIDs. A route-level disruption never
// disrupts stops it doesn't name — the rest of the route stays serviceable.
func (s *State) StopDisrupted(stopID string, routeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.ActiveDisruptions {
		switch d.Category {
		case DisruptionStop:
			if d.TargetID == stopID {
				return true
			}
		case DisruptionRoute:
			if d.TargetID != routeID {
				continue
			}
			for _, id := range d.AffectedStopIDs {
				if id == stopID {
					return true
				}
			}
		}
	}
	return false
}

// ChargerDisrupted reports whether any active disruption targets chargerID.
func (s *State) ChargerDisrupted(chargerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.ActiveDisruptions {
		if d.Category == DisruptionCharger && d.TargetID == chargerID {
			return true
		}
	}
	return false
}

// DepotDisrupted reports whether any active disruption targets depotID.
func (s *State) DepotDisrupted(depotID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.ActiveDisruptions {
		if d.Category == DisruptionDepot && d.TargetID == depotID {
			return true
		}
	}
	return false
}
