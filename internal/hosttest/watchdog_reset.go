package hosttest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const WatchdogResetName = "watchdog_reset"

// Keys used by the watchdog test.
const (
	KeyDeviceReady = "ready"
	KeyDeviceReset = "reset_on_case_teardown"
	KeyStartCase   = "start_case"
)

// Case payloads sent with start_case.
const (
	CaseDataInvalid   uint32 = 0xffffffff
	CaseDataPhase2Set uint32 = 0xfffffffe
)

const defaultWatchdogCyclePeriod = 4 * time.Second

// TestCaseData is the case the device should run next and the data it needs.
type TestCaseData struct {
	Index   int
	Payload uint32
}

// WatchdogReset drives a device whose test cases end in a watchdog reset.
// When the device announces a reset the host remembers which case to resume
// and arms a timer that sends __sync if the device does not come back on its
// own.
type WatchdogReset struct {
	CyclePeriod time.Duration

	host       Host
	dispatcher *Dispatcher

	mu      sync.Mutex
	current TestCaseData
	timer   Timer
	done    bool
}

func NewWatchdogReset(cyclePeriod time.Duration) *WatchdogReset {
	return &WatchdogReset{CyclePeriod: cyclePeriod}
}

func newWatchdogResetFromParams(params map[string]string) (HostTest, error) {
	period, err := durationParam(params, "cycle_period", defaultWatchdogCyclePeriod)
	if err != nil {
		return nil, err
	}
	return NewWatchdogReset(period), nil
}

func (t *WatchdogReset) Setup(h Host) error {
	t.host = h
	t.current = TestCaseData{Index: 0, Payload: CaseDataInvalid}
	t.done = false

	t.dispatcher = NewDispatcher(h.Log())
	t.dispatcher.Register(KeyDeviceReady, t.onDeviceReady)
	t.dispatcher.Register(KeyDeviceReset, t.onDeviceReset)
	t.dispatcher.Register(KeyEnd, t.onEnd)

	return nil
}

func (t *WatchdogReset) Handle(ev Event) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done {
		return ErrExhausted
	}

	return t.dispatcher.Dispatch(ev)
}

func (t *WatchdogReset) Teardown() {
	t.cancelTimer()
}

// Current returns the tracked case.
func (t *WatchdogReset) Current() TestCaseData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *WatchdogReset) onDeviceReady(Event) error {
	t.cancelTimer()

	c := t.Current()
	return t.host.Send(KeyStartCase, fmt.Sprintf("%02x,%08x", c.Index, c.Payload))
}

// onDeviceReset expects "<case>,<delay_ms>".
func (t *WatchdogReset) onDeviceReset(ev Event) error {
	index, delay, err := parseDeviceReset(ev.Value)
	if err != nil {
		t.finish()
		return fmt.Errorf("%w: %v", ErrExhausted, err)
	}

	t.mu.Lock()
	t.current = TestCaseData{Index: index, Payload: CaseDataPhase2Set}
	t.mu.Unlock()

	t.armTimer(t.CyclePeriod + delay)

	return nil
}

func (t *WatchdogReset) onEnd(ev Event) error {
	t.cancelTimer()
	t.finish()
	t.host.NotifyComplete(ev.Value == "success", "device reported "+ev.Value)
	return nil
}

func (t *WatchdogReset) finish() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

// armTimer replaces any pending timer.
func (t *WatchdogReset) armTimer(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}

	t.timer = t.host.AfterFunc(d, func() {
		if err := t.host.Sync(); err != nil {
			log := t.host.Log()
			log.Warn().Err(err).Msg("Failed to send sync after watchdog reset")
		}
	})
}

func (t *WatchdogReset) cancelTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func parseDeviceReset(value string) (int, time.Duration, error) {
	caseStr, delayStr, ok := strings.Cut(value, ",")
	if !ok {
		return 0, 0, fmt.Errorf("malformed reset notification %q", value)
	}

	index, err := strconv.Atoi(strings.TrimSpace(caseStr))
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("malformed case index in %q", value)
	}

	delayMs, err := strconv.Atoi(strings.TrimSpace(delayStr))
	if err != nil || delayMs < 0 {
		return 0, 0, fmt.Errorf("malformed delay in %q", value)
	}

	return index, time.Duration(delayMs) * time.Millisecond, nil
}
