package model

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// rawRoute mirrors the on-disk route JSON format.
type rawRoute struct {
	ID      string       `json:"route_id"`
	Name    string       `json:"name"`
	Stops   []rawStop    `json:"stops"`
}

type rawStop struct {
	ID      string  `json:"stop_id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	IsStage bool    `json:"is_stage"`
	Demand  float64 `json:"demand"`
}

// LoadRoutesFromReader parses a route-set JSON document into stops keyed by
// id and routes keyed by id. Segment distances are left unresolved
// (HasDistance=false).
func LoadRoutesFromReader(r io.Reader) (map[string]*Stop, map[string]*Route, error) {
	dec := json.NewDecoder(r)
	var raw []rawRoute
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decode routes: %w", err)
	}
	stops := make(map[string]*Stop)
	routes := make(map[string]*Route, len(raw))
	for _, rr := range raw {
		stopIDs := make([]string, 0, len(rr.Stops))
		for _, s := range rr.Stops {
			stops[s.ID] = &Stop{
				ID:      s.ID,
				Name:    s.Name,
				Location: Location{Lat: s.Lat, Lon: s.Lon},
				IsStage: s.IsStage,
				Demand:  s.Demand,
			}
			stopIDs = append(stopIDs, s.ID)
		}
		route := &Route{ID: rr.ID, Name: rr.Name, StopIDs: stopIDs}
		if err := route.Rebuild(); err != nil {
			return nil, nil, fmt.Errorf("route %s: %w", rr.ID, err)
		}
		routes[rr.ID] = route
	}
	return stops, routes, nil
}

// rawDepot and rawStation mirror the on-disk depot/charger JSON formats.
type rawDepot struct {
	ID        string  `json:"depot_id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	ChargerID string  `json:"charger_id,omitempty"`
}

type rawStation struct {
	ID                  string   `json:"charger_id"`
	Name                string   `json:"name"`
	Lat                 float64  `json:"lat"`
	Lon                 float64  `json:"lon"`
	Slots               int      `json:"slots"`
	KW                  float64  `json:"kw"`
	CompatibleCompanies []string `json:"compatible_companies"`
}

// LoadDepotsFromReader parses a depot-set JSON document.
func LoadDepotsFromReader(r io.Reader) (map[string]*Depot, error) {
	dec := json.NewDecoder(r)
	var raw []rawDepot
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode depots: %w", err)
	}
	depots := make(map[string]*Depot, len(raw))
	for _, rd := range raw {
		depots[rd.ID] = &Depot{
			ID:        rd.ID,
			Name:      rd.Name,
			Location:  Location{Lat: rd.Lat, Lon: rd.Lon},
			ChargerID: rd.ChargerID,
		}
	}
	return depots, nil
}

// LoadStationsFromReader parses a charging-station-set JSON document.
func LoadStationsFromReader(r io.Reader) (map[string]*ChargingStation, error) {
	dec := json.NewDecoder(r)
	var raw []rawStation
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}
	stations := make(map[string]*ChargingStation, len(raw))
	for _, rs := range raw {
		if rs.Slots < 1 {
			rs.Slots = 1
		}
		stations[rs.ID] = &ChargingStation{
			ID:                  rs.ID,
			Name:                rs.Name,
			Location:            Location{Lat: rs.Lat, Lon: rs.Lon},
			Slots:               rs.Slots,
			KW:                  rs.KW,
			Operational:         true,
			CompatibleCompanies: rs.CompatibleCompanies,
		}
	}
	return stations, nil
}

// rawDuty mirrors the on-disk schedule JSON format: one duty per row,
// departure/arrival as HH:MM clock times within the service day.
type rawDuty struct {
	BusID     string `json:"bus_id"`
	RouteID   string `json:"route_id"`
	DepotID   string `json:"depot_id"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
}

// LoadSchedulesFromReader parses duty entries and attaches them to the
// matching buses as daily schedules anchored to serviceDay. An arrival
// clock time earlier than its departure crosses midnight and gains a day.
// Rows naming an unknown bus or carrying an unparseable time are skipped;
// the skip count is returned so the caller can log them.
func LoadSchedulesFromReader(r io.Reader, serviceDay time.Time, buses []*Bus) (int, error) {
	dec := json.NewDecoder(r)
	var raw []rawDuty
	if err := dec.Decode(&raw); err != nil {
		return 0, fmt.Errorf("decode schedules: %w", err)
	}

	byID := make(map[string]*Bus, len(buses))
	for _, b := range buses {
		byID[b.ID] = b
	}

	day := time.Date(serviceDay.Year(), serviceDay.Month(), serviceDay.Day(), 0, 0, 0, 0, serviceDay.Location())
	skipped := 0
	for _, duty := range raw {
		bus, ok := byID[duty.BusID]
		if !ok {
			skipped++
			continue
		}
		start, errS := clockTime(day, duty.Departure)
		end, errE := clockTime(day, duty.Arrival)
		if errS != nil || errE != nil {
			skipped++
			continue
		}
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}
		bus.Schedule.BusID = bus.ID
		bus.Schedule.Trips = append(bus.Schedule.Trips, Trip{
			RouteID:   duty.RouteID,
			DepotID:   duty.DepotID,
			StartTime: start,
			EndTime:   end,
		})
	}

	for _, b := range buses {
		sort.Slice(b.Schedule.Trips, func(i, j int) bool {
			return b.Schedule.Trips[i].StartTime.Before(b.Schedule.Trips[j].StartTime)
		})
	}
	return skipped, nil
}

func clockTime(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock time %q: %w", hhmm, err)
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// rawFleetBus mirrors the on-disk fleet JSON format.
type rawFleetBus struct {
	ID                 string  `json:"bus_id"`
	Model              string  `json:"model"`
	Company            string  `json:"company"`
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
	InitialSoCPercent  float64 `json:"initial_soc_percent"`
	CostPerKm          float64 `json:"cost_per_km"`
	DepotID            string  `json:"depot_id"`
}

// LoadFleetFromReader parses a fleet JSON document into Bus entities parked
// in their depot and fully idle, ready for schedule assignment.
func LoadFleetFromReader(r io.Reader) ([]*Bus, error) {
	dec := json.NewDecoder(r)
	var raw []rawFleetBus
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fleet: %w", err)
	}
	buses := make([]*Bus, 0, len(raw))
	for _, rb := range raw {
		soc := rb.InitialSoCPercent
		if soc <= 0 {
			soc = 100
		}
		buses = append(buses, &Bus{
			ID:                 rb.ID,
			Model:              rb.Model,
			Company:            rb.Company,
			BatteryCapacityKWh: rb.BatteryCapacityKWh,
			SoCPercent:         soc,
			CostPerKm:          rb.CostPerKm,
			Status:             InDepot,
			HomeDepotID:        rb.DepotID,
			DepotID:            rb.DepotID,
		})
	}
	return buses, nil
}
