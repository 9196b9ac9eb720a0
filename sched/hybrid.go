package sched

import "time"

// StepType names the kind of tick the hybrid scheduler produced.
type StepType int

const (
	StepBatch StepType = iota
	StepFine
	StepCoarse
)

func (s StepType) String() string {
	switch s {
	case StepBatch:
		return "batch"
	case StepFine:
		return "fine_step"
	case StepCoarse:
		return "coarse_step"
	default:
		return "unknown"
	}
}

// Step is one entry in a built hybrid schedule.
type Step struct {
	Time  time.Time
	Type  StepType
	Batch []Event // non-nil only for StepBatch
}

// HybridScheduler precomputes a full run's step sequence up front by
// alternating between draining clustered event batches and taking
// adaptive fixed timesteps (fine when the next event is near, coarse
// during quiet periods), so the engine's tick loop is a flat iteration
// over a slice rather than a live decision each tick.
type HybridScheduler struct {
	BatchThreshold time.Duration
	FineStep       time.Duration
	CoarseStep     time.Duration
	GapThreshold   time.Duration

	schedule []Step
	index    int
}

// NewHybridScheduler constructs a scheduler with the given timestep
// parameters. Call Build to compute the step sequence for a run.
func NewHybridScheduler(batchThreshold, fineStep, coarseStep, gapThreshold time.Duration) *HybridScheduler {
	return &HybridScheduler{
		BatchThreshold: batchThreshold,
		FineStep:       fineStep,
		CoarseStep:     coarseStep,
		GapThreshold:   gapThreshold,
	}
}

// Build computes the full step schedule between simStart and simEnd given
// events. events need not be pre-sorted; they are pushed onto an internal
// Queue which orders them.
func (h *HybridScheduler) Build(events []Event, simStart, simEnd time.Time) {
	q := NewQueue(h.BatchThreshold)
	q.AddAll(events)

	h.schedule = h.schedule[:0]
	h.index = 0

	current := simStart
	for current.Before(simEnd) && q.Len() > 0 {
		nextEventTime, _ := q.PeekTime()

		if !nextEventTime.After(current.Add(time.Second)) {
			batch := q.NextBatch()
			batchTime := batch[len(batch)-1].Time
			if batchTime.Before(current) {
				// events predating the run fire at its first instant
				batchTime = current
			}
			h.schedule = append(h.schedule, Step{Time: batchTime, Type: StepBatch, Batch: batch})
			current = batchTime
			continue
		}

		gap := nextEventTime.Sub(current)
		step := h.FineStep
		stepType := StepFine
		if gap > h.GapThreshold {
			step = h.CoarseStep
			stepType = StepCoarse
		}

		next := current.Add(step)
		if nextEventTime.Before(next) {
			next = nextEventTime
		}
		if simEnd.Before(next) {
			next = simEnd
		}
		h.schedule = append(h.schedule, Step{Time: next, Type: stepType})
		current = next
	}

	for current.Before(simEnd) {
		next := current.Add(h.CoarseStep)
		if simEnd.Before(next) {
			next = simEnd
		}
		h.schedule = append(h.schedule, Step{Time: next, Type: StepCoarse})
		current = next
	}
}

// NextStep returns the next step in the built schedule, and false once the
// schedule is exhausted.
func (h *HybridScheduler) NextStep() (Step, bool) {
	if h.index >= len(h.schedule) {
		return Step{}, false
	}
	s := h.schedule[h.index]
	h.index++
	return s, true
}

// Reset rewinds the step iterator to the beginning of the built schedule.
func (h *HybridScheduler) Reset() {
	h.index = 0
}

// Stats summarizes the built schedule, mainly for end-of-run reporting.
type Stats struct {
	TotalSteps  int
	Batches     int
	FineSteps   int
	CoarseSteps int
}

// Stats computes counts over the built schedule.
func (h *HybridScheduler) Stats() Stats {
	var s Stats
	s.TotalSteps = len(h.schedule)
	for _, step := range h.schedule {
		switch step.Type {
		case StepBatch:
			s.Batches++
		case StepFine:
			s.FineSteps++
		case StepCoarse:
			s.CoarseSteps++
		}
	}
	return s
}
