// Package disruption runs the per-tick disruption lifecycle: expiring
// finished events, rolling random consecutive-stop incidents, and
// translating flood hazard depth into stop/route/charger/depot/bus
// impairments.
package disruption

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"efleetsim/flood"
	"efleetsim/model"
)

// Config holds the random-incident knobs, mirroring the settings consulted
// by the random disruption generator.
type Config struct {
	Probability    float64
	MinStops       int
	MaxStops       int
	MinMinutes     int
	MaxMinutes     int
}

// Manager owns the active disruption set and advances it once per tick.
type Manager struct {
	cfg   Config
	flood *flood.Map
	rng   *rand.Rand
	log   *zap.Logger
}

// New constructs a Manager. rng should be seeded once per run for
// reproducible scenarios.
func New(cfg Config, floodMap *flood.Map, rng *rand.Rand, log *zap.Logger) *Manager {
	return &Manager{cfg: cfg, flood: floodMap, rng: rng, log: log}
}

// Update advances the disruption lifecycle by one tick: expire, then
// random, then flood. The resulting active list is written into state.
func (m *Manager) Update(now time.Time, state *model.State) {
	active := m.expire(now, state.Disruptions())

	if d := m.generateRandom(now, state); d != nil {
		active = append(active, d)
	}

	active = append(active, m.floodDisruptions(now, state, active)...)

	state.SetActiveDisruptions(active)
	m.applyImpacts(now, state, active)
}

func (m *Manager) expire(now time.Time, active []*model.DisruptionEvent) []*model.DisruptionEvent {
	kept := active[:0:0]
	for _, d := range active {
		if d.EndTime.After(now) {
			kept = append(kept, d)
		}
	}
	return kept
}

func (m *Manager) generateRandom(now time.Time, state *model.State) *model.DisruptionEvent {
	if m.rng.Float64() > m.cfg.Probability {
		return nil
	}
	routeIDs := make([]string, 0, len(state.Routes))
	for id, r := range state.Routes {
		if len(r.StopIDs) > 0 {
			routeIDs = append(routeIDs, id)
		}
	}
	if len(routeIDs) == 0 {
		return nil
	}
	routeID := routeIDs[m.rng.Intn(len(routeIDs))]
	route := state.Routes[routeID]

	maxAffected := m.cfg.MaxStops
	if maxAffected > len(route.StopIDs) {
		maxAffected = len(route.StopIDs)
	}
	minAffected := m.cfg.MinStops
	if minAffected > maxAffected {
		minAffected = maxAffected
	}
	numAffected := minAffected
	if maxAffected > minAffected {
		numAffected = minAffected + m.rng.Intn(maxAffected-minAffected+1)
	}
	startIdx := m.rng.Intn(len(route.StopIDs) - numAffected + 1)
	affected := append([]string(nil), route.StopIDs[startIdx:startIdx+numAffected]...)

	durationMin := m.cfg.MinMinutes
	if m.cfg.MaxMinutes > m.cfg.MinMinutes {
		durationMin += m.rng.Intn(m.cfg.MaxMinutes - m.cfg.MinMinutes + 1)
	}

	ev := &model.DisruptionEvent{
		ID:              uuid.NewString(),
		Category:        model.DisruptionRoute,
		Source:          model.SourceRandom,
		TargetID:        route.ID,
		AffectedStopIDs: affected,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(durationMin) * time.Minute),
		Description:     "random incident on " + route.Name + " affecting " + route.ID,
	}
	m.log.Info("random disruption", zap.String("id", ev.ID), zap.String("route", route.ID),
		zap.Strings("stops", affected), zap.Int("duration_min", durationMin))
	return ev
}

// floodDisruptions emits one event per newly flooded target. A target that
// already has a live flood event keeps it until it expires rather than
// stacking a fresh duplicate every tick the water stays high; once the
// depth recedes below threshold, expiry removes the event and nothing new
// is emitted.
func (m *Manager) floodDisruptions(now time.Time, state *model.State, active []*model.DisruptionEvent) []*model.DisruptionEvent {
	if m.flood == nil || !m.flood.Enabled() {
		return nil
	}
	covered := make(map[model.DisruptionCategory]map[string]bool)
	for _, d := range active {
		if d.Source != model.SourceFlood {
			continue
		}
		if covered[d.Category] == nil {
			covered[d.Category] = make(map[string]bool)
		}
		covered[d.Category][d.TargetID] = true
	}
	cfg := m.flood.Config()
	var out []*model.DisruptionEvent

	if cfg.DisruptStops || cfg.DisruptRoutes {
		for _, route := range state.Routes {
			if covered[model.DisruptionRoute][route.ID] {
				continue
			}
			var floodedStops []string
			for _, stopID := range route.StopIDs {
				stop, ok := state.Stops[stopID]
				if !ok {
					continue
				}
				if m.flood.Flooded(stop.Location, now) {
					floodedStops = append(floodedStops, stopID)
				}
			}
			if len(floodedStops) == 0 {
				continue
			}
			out = append(out, &model.DisruptionEvent{
				ID:              uuid.NewString(),
				Category:        model.DisruptionRoute,
				Source:          model.SourceFlood,
				TargetID:        route.ID,
				AffectedStopIDs: floodedStops,
				StartTime:       now,
				EndTime:         now.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
				Description:     "flood disruption on " + route.Name,
			})
		}
	}

	if cfg.DisruptChargers {
		for _, st := range state.Stations {
			if covered[model.DisruptionCharger][st.ID] {
				continue
			}
			if m.flood.Flooded(st.Location, now) {
				out = append(out, &model.DisruptionEvent{
					ID:        uuid.NewString(),
					Category:  model.DisruptionCharger,
					Source:    model.SourceFlood,
					TargetID:  st.ID,
					StartTime: now,
					EndTime:   now.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
				})
			}
		}
	}

	if cfg.DisruptDepots {
		for _, d := range state.Depots {
			if covered[model.DisruptionDepot][d.ID] {
				continue
			}
			if m.flood.Flooded(d.Location, now) {
				out = append(out, &model.DisruptionEvent{
					ID:        uuid.NewString(),
					Category:  model.DisruptionDepot,
					Source:    model.SourceFlood,
					TargetID:  d.ID,
					StartTime: now,
					EndTime:   now.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
				})
			}
		}
	}

	if cfg.DisruptBuses {
		for _, b := range state.Buses {
			if covered[model.DisruptionBus][b.ID] {
				continue
			}
			if m.flood.Flooded(b.Location, now) {
				out = append(out, &model.DisruptionEvent{
					ID:        uuid.NewString(),
					Category:  model.DisruptionBus,
					Source:    model.SourceFlood,
					TargetID:  b.ID,
					StartTime: now,
					EndTime:   now.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
				})
			}
		}
	}

	return out
}

// applyImpacts sets station operational status and strands flooded buses.
// Restoration of a station is implicit: operational is recomputed fresh
// every tick from the current active set, so a station with no active
// charger disruption this tick is operational again.
func (m *Manager) applyImpacts(now time.Time, state *model.State, active []*model.DisruptionEvent) {
	disruptedChargers := make(map[string]bool)
	for _, d := range active {
		if !d.Active(now) {
			continue
		}
		switch d.Category {
		case model.DisruptionBus:
			if b := state.BusByID(d.TargetID); b != nil && b.Status != model.Stranded {
				if b.Charge != nil {
					if st, ok := state.Stations[b.Charge.StationID]; ok {
						st.Release()
					}
					b.Charge = nil
				}
				b.Status = model.Stranded
			}
		case model.DisruptionCharger:
			disruptedChargers[d.TargetID] = true
		}
	}
	for id, st := range state.Stations {
		st.Operational = !disruptedChargers[id]
	}
}
