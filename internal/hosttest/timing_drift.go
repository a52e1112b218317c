package hosttest

import (
	"fmt"
	"math"
	"time"
)

const TimingDriftName = "timing_drift"

const (
	KeyTick   = "tick"
	KeyFinish = "finish"
)

const (
	DefaultDriftTolerance = 0.05
	defaultDriftPeriod    = time.Second

	// driftEpsilon absorbs float rounding at the tolerance boundary.
	driftEpsilon = 1e-9
)

// TimingDrift compares the device's tick events against host wall-clock
// time. Each interval and the run as a whole must stay within Tolerance of
// the nominal Period.
type TimingDrift struct {
	Period    time.Duration
	Tolerance float64

	host       Host
	dispatcher *Dispatcher
	ticks      []float64
	done       bool
}

func NewTimingDrift(period time.Duration, tolerance float64) *TimingDrift {
	return &TimingDrift{Period: period, Tolerance: tolerance}
}

func newTimingDriftFromParams(params map[string]string) (HostTest, error) {
	period, err := durationParam(params, "period", defaultDriftPeriod)
	if err != nil {
		return nil, err
	}
	if period == 0 {
		return nil, fmt.Errorf("%w: period must be positive", ErrInvalidParam)
	}

	tolerance, err := floatParam(params, "tolerance", DefaultDriftTolerance)
	if err != nil {
		return nil, err
	}

	return NewTimingDrift(period, tolerance), nil
}

func (t *TimingDrift) Setup(h Host) error {
	t.host = h
	t.ticks = nil
	t.done = false

	t.dispatcher = NewDispatcher(h.Log())
	t.dispatcher.Register(KeyTick, t.onTick)
	t.dispatcher.Register(KeyEnd, t.onEnd)
	t.dispatcher.Register(KeyFinish, t.onEnd)

	return nil
}

func (t *TimingDrift) Handle(ev Event) error {
	if t.done {
		return ErrExhausted
	}
	return t.dispatcher.Dispatch(ev)
}

func (t *TimingDrift) Teardown() {}

func (t *TimingDrift) onTick(ev Event) error {
	t.ticks = append(t.ticks, ev.Timestamp)
	return nil
}

func (t *TimingDrift) onEnd(Event) error {
	t.done = true

	passed, reason := t.Verdict()
	t.host.NotifyComplete(passed, reason)

	return nil
}

// Verdict evaluates the ticks received so far. At least two are needed.
func (t *TimingDrift) Verdict() (bool, string) {
	return evaluateDrift(t.ticks, t.Period.Seconds(), t.Tolerance)
}

func evaluateDrift(ticks []float64, period, tolerance float64) (bool, string) {
	intervals := len(ticks) - 1
	if intervals < 1 {
		return false, fmt.Sprintf("received %d tick events, need at least 2", len(ticks))
	}

	maxIntervalDrift := tolerance * period
	for i := 1; i < len(ticks); i++ {
		drift := math.Abs(ticks[i] - ticks[i-1] - period)
		if drift > maxIntervalDrift+driftEpsilon {
			return false, fmt.Sprintf("interval %d drifted %.3fs, limit %.3fs", i, drift, maxIntervalDrift)
		}
	}

	elapsed := ticks[len(ticks)-1] - ticks[0]
	totalDrift := math.Abs(elapsed - float64(intervals)*period)
	maxTotalDrift := maxIntervalDrift * float64(intervals)
	if totalDrift > maxTotalDrift+driftEpsilon {
		return false, fmt.Sprintf("total drift %.3fs over %d intervals, limit %.3fs", totalDrift, intervals, maxTotalDrift)
	}

	return true, fmt.Sprintf("total drift %.3fs over %d intervals", totalDrift, intervals)
}
