// Package logsink writes the per-tick bus state CSV and the end-of-run
// summary report.
package logsink

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"efleetsim/model"
)

var fieldNames = []string{
	"timestamp",
	"sim_time",
	"bus_id",
	"status",
	"latitude",
	"longitude",
	"soc",
	"delay_seconds",
	"unserved_demand",
	"current_route",
	"current_stop_index",
	"charging_station",
	"active_disruptions",
}

// Sink writes one CSV row per bus per tick, matching the field list the
// run's external log consumers expect.
type Sink struct {
	f *os.File
	w *csv.Writer
}

// Open creates (truncating) the CSV file at path and writes its header.
func Open(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log sink %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(fieldNames); err != nil {
		f.Close()
		return nil, fmt.Errorf("write log sink header: %w", err)
	}
	return &Sink{f: f, w: w}, nil
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

// LogStep writes one row per bus for the given tick.
func (s *Sink) LogStep(now time.Time, state *model.State) error {
	disruptions := state.Disruptions()
	descs := make([]string, 0, len(disruptions))
	for _, d := range disruptions {
		descs = append(descs, d.TargetID+":"+strings.Join(d.AffectedStopIDs, ","))
	}
	disruptionDesc := "None"
	if len(descs) > 0 {
		disruptionDesc = strings.Join(descs, ";")
	}

	for _, b := range state.Buses {
		routeName := "None"
		if b.CurrentRouteID != "" {
			routeName = b.CurrentRouteID
			if r, ok := state.Routes[b.CurrentRouteID]; ok && r.Name != "" {
				routeName = r.Name
			}
		}
		stopIndex := 0
		if r, ok := state.Routes[b.CurrentRouteID]; ok && b.CurrentStopID != "" {
			stopIndex = r.IndexOf(b.CurrentStopID) + 1
		}
		stationName := "None"
		if b.Charge != nil {
			stationName = b.Charge.StationID
		}
		row := []string{
			time.Now().Format("2006-01-02 15:04:05"),
			now.Format("15:04:05"),
			b.ID,
			b.Status.String(),
			strconv.FormatFloat(b.Location.Lat, 'f', 6, 64),
			strconv.FormatFloat(b.Location.Lon, 'f', 6, 64),
			strconv.FormatFloat(round2(b.SoCPercent), 'f', 2, 64),
			strconv.FormatFloat(round2(b.DelaySeconds), 'f', 0, 64),
			strconv.FormatFloat(round2(b.UnservedDemand), 'f', 2, 64),
			routeName,
			strconv.Itoa(stopIndex),
			stationName,
			disruptionDesc,
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("write log row for bus %s: %w", b.ID, err)
		}
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Summary carries end-of-run metrics for the console report; the engine
// fills it in as the run progresses and returns it from both run modes.
type Summary struct {
	Ticks            int
	DisruptionsTotal int
	StrandedBuses    int
}

// PrintConsoleReport prints a human-readable end-of-run summary, in the
// same terse style as a batch simulation's stdout report. Per-bus
// operating cost is distance times the bus's configured cost rate.
func PrintConsoleReport(state *model.State, sum Summary) {
	fmt.Println("=== Simulation Report ===")
	fmt.Printf("Ticks run: %d\n", sum.Ticks)
	fmt.Printf("Buses: %d\n", len(state.Buses))

	byID := make(map[string]*model.Bus, len(state.Buses))
	ids := make([]string, 0, len(state.Buses))
	totalDistKM := 0.0
	totalEnergyKWh := 0.0
	totalUnserved := 0.0
	totalCost := 0.0
	for _, b := range state.Buses {
		byID[b.ID] = b
		ids = append(ids, b.ID)
		totalDistKM += b.DistanceTraveledMeters / 1000
		totalEnergyKWh += b.EnergyConsumedKWh
		totalUnserved += b.UnservedDemand
		totalCost += b.DistanceTraveledMeters / 1000 * b.CostPerKm
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := byID[id]
		distKM := b.DistanceTraveledMeters / 1000
		fmt.Printf("  %-12s %-20s soc=%6.2f%% dist=%8.2fkm unserved=%6.2f cost=%8.2f\n",
			b.ID, b.Status, b.SoCPercent, distKM, b.UnservedDemand, round2(distKM*b.CostPerKm))
	}

	fmt.Printf("Total distance: %.2f km\n", round2(totalDistKM))
	fmt.Printf("Total energy consumed: %.2f kWh\n", round2(totalEnergyKWh))
	fmt.Printf("Total unserved demand: %.2f\n", round2(totalUnserved))
	fmt.Printf("Total operating cost: %.2f\n", round2(totalCost))
	fmt.Printf("Disruptions over the run: %d\n", sum.DisruptionsTotal)
	fmt.Printf("Stranded buses: %d\n", sum.StrandedBuses)
}
