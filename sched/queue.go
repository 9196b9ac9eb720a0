// Package sched provides the event priority queue and hybrid adaptive
// scheduler that decide when the engine next advances and by how much.
package sched

import (
	"container/heap"
	"time"
)

// EventType names why an Event was scheduled.
type EventType int

const (
	EventTripStart EventType = iota
	EventTripEnd
	EventChargingEnd
	EventDisruptionStart
	EventDisruptionEnd
)

// Event is a discrete, time-stamped occurrence feeding the batch scheduler.
type Event struct {
	Time  time.Time
	Type  EventType
	BusID string
}

// eventPQ is a min-heap of Events ordered by time, then bus id for
// deterministic tie-breaking.
type eventPQ []Event

func (p eventPQ) Len() int { return len(p) }
func (p eventPQ) Less(i, j int) bool {
	if !p[i].Time.Equal(p[j].Time) {
		return p[i].Time.Before(p[j].Time)
	}
	return p[i].BusID < p[j].BusID
}
func (p eventPQ) Swap(i, j int)       { p[i], p[j] = p[j], p[i] }
func (p *eventPQ) Push(x any)         { *p = append(*p, x.(Event)) }
func (p *eventPQ) Pop() any {
	old := *p
	n := len(old)
	v := old[n-1]
	*p = old[:n-1]
	return v
}

// Queue is a priority queue of Events with batch-clustering support: events
// within BatchThreshold of the earliest pending event are extracted
// together by NextBatch.
type Queue struct {
	pq             eventPQ
	BatchThreshold time.Duration
}

// NewQueue returns an empty Queue with the given batch clustering window.
func NewQueue(batchThreshold time.Duration) *Queue {
	q := &Queue{BatchThreshold: batchThreshold}
	heap.Init(&q.pq)
	return q
}

// Add pushes a single event onto the queue.
func (q *Queue) Add(e Event) {
	heap.Push(&q.pq, e)
}

// AddAll pushes every event in es onto the queue.
func (q *Queue) AddAll(es []Event) {
	for _, e := range es {
		q.Add(e)
	}
}

// NextBatch pops the earliest event and every subsequent event within
// BatchThreshold of it, returning nil if the queue is empty.
func (q *Queue) NextBatch() []Event {
	if q.pq.Len() == 0 {
		return nil
	}
	first := heap.Pop(&q.pq).(Event)
	batch := []Event{first}
	batchEnd := first.Time.Add(q.BatchThreshold)
	for q.pq.Len() > 0 && !q.pq[0].Time.After(batchEnd) {
		batch = append(batch, heap.Pop(&q.pq).(Event))
	}
	return batch
}

// PeekTime returns the time of the earliest pending event, or the zero
// value and false if the queue is empty.
func (q *Queue) PeekTime() (time.Time, bool) {
	if q.pq.Len() == 0 {
		return time.Time{}, false
	}
	return q.pq[0].Time, true
}

// Len reports the number of pending events.
func (q *Queue) Len() int { return q.pq.Len() }

// Clear removes every pending event.
func (q *Queue) Clear() { q.pq = nil }
