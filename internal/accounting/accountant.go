// ABOUTME: Cost Accountant — measures setup, teardown, and per-wave scheduling overhead
// ABOUTME: All durations are reported in microseconds per the orchestration cost contract

package accounting

import (
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

// Accountant wraps one run's timing. It is driven by an injected types.Clock so tests can
// produce deterministic, reproducible cost figures.
type Accountant struct {
	clock types.Clock

	graphBuildStart time.Time
	graphBuildEnd   time.Time

	runStart      time.Time
	firstDispatch time.Time
	lastTaskEnd   time.Time
	runEnd        time.Time

	prevWaveEnd time.Time
	waves       []types.WaveCost
}

// New creates an Accountant driven by clock.
func New(clock types.Clock) *Accountant {
	return &Accountant{clock: clock}
}

func (a *Accountant) now() time.Time {
	return a.clock.Now()
}

// MarkGraphBuildStart/End bracket §4.C's wall time.
func (a *Accountant) MarkGraphBuildStart() { a.graphBuildStart = a.now() }
func (a *Accountant) MarkGraphBuildEnd()   { a.graphBuildEnd = a.now() }

// MarkRunStart is execute()'s entry point.
func (a *Accountant) MarkRunStart() {
	a.runStart = a.now()
	a.prevWaveEnd = a.runStart
}

// MarkFirstDispatch is recorded once, the first time any task is dispatched. The first
// wave's scheduling delay is measured from this point, so it does not overlap setup.
func (a *Accountant) MarkFirstDispatch() {
	if a.firstDispatch.IsZero() {
		a.firstDispatch = a.now()
		a.prevWaveEnd = a.firstDispatch
	}
}

// MarkWave records one wave's scheduling delay (gap since the previous wave ended, or since
// the first dispatch for the first wave) and its own duration, identified by a 1-based
// iteration number.
func (a *Accountant) MarkWave(iteration int, taskIDs []string, waveStart, waveEnd time.Time) {
	delay := waveStart.Sub(a.prevWaveEnd)
	if delay < 0 {
		delay = 0
	}
	a.waves = append(a.waves, types.WaveCost{
		Iteration:             iteration,
		TaskIDs:                append([]string(nil), taskIDs...),
		DurationMicros:         waveEnd.Sub(waveStart).Microseconds(),
		SchedulingDelayMicros: delay.Microseconds(),
	})
	a.prevWaveEnd = waveEnd
	a.lastTaskEnd = waveEnd
}

// MarkRunEnd is execute()'s return point.
func (a *Accountant) MarkRunEnd() { a.runEnd = a.now() }

// GraphBuildDurationMicros is the measured §4.C wall time.
func (a *Accountant) GraphBuildDurationMicros() int64 {
	if a.graphBuildStart.IsZero() || a.graphBuildEnd.IsZero() {
		return 0
	}
	return a.graphBuildEnd.Sub(a.graphBuildStart).Microseconds()
}

// Finalize computes the OrchestrationCost summary from the marks recorded so far.
func (a *Accountant) Finalize() types.OrchestrationCost {
	setup := int64(0)
	if !a.firstDispatch.IsZero() {
		setup = a.firstDispatch.Sub(a.runStart).Microseconds()
	}

	teardown := int64(0)
	if !a.runEnd.IsZero() && !a.lastTaskEnd.IsZero() {
		teardown = a.runEnd.Sub(a.lastTaskEnd).Microseconds()
	}

	var scheduling int64
	for _, w := range a.waves {
		scheduling += w.SchedulingDelayMicros
	}

	total := setup + teardown + scheduling

	totalExecution := int64(0)
	if !a.runEnd.IsZero() && !a.runStart.IsZero() {
		totalExecution = a.runEnd.Sub(a.runStart).Microseconds()
	}

	var percentage float64
	if totalExecution > 0 {
		percentage = float64(total) / float64(totalExecution)
	}

	return types.OrchestrationCost{
		SetupDurationMicros:      setup,
		TeardownDurationMicros:   teardown,
		SchedulingOverheadMicros: scheduling,
		TotalMicros:              total,
		Percentage:               percentage,
		ExecutionIterations:      len(a.waves),
		Waves:                    a.waves,
	}
}

// ExecutionTimeMs is the total wall time of the run in milliseconds.
func (a *Accountant) ExecutionTimeMs() int64 {
	if a.runEnd.IsZero() || a.runStart.IsZero() {
		return 0
	}
	return a.runEnd.Sub(a.runStart).Milliseconds()
}
