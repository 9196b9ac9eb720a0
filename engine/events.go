package engine

import (
	"efleetsim/model"
	"efleetsim/sched"
)

// BuildEventList extracts trip-start and trip-end events from every bus's
// daily schedule, for the hybrid scheduler to cluster into batches.
func BuildEventList(state *model.State) []sched.Event {
	var events []sched.Event
	for _, b := range state.Buses {
		for _, trip := range b.Schedule.Trips {
			events = append(events,
				sched.Event{Time: trip.StartTime, Type: sched.EventTripStart, BusID: b.ID},
				sched.Event{Time: trip.EndTime, Type: sched.EventTripEnd, BusID: b.ID},
			)
		}
	}
	return events
}
