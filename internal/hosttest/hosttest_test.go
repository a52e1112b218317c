package hosttest

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARMmbed/mbedtools/internal/logger"
)

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *manualTimer) fire() {
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	t.f()
}

// fakeHost records what a host test asked for.
type fakeHost struct {
	sent    []Event
	syncs   int
	syncErr error
	resets  int
	sleeps  []time.Duration
	timers  []*manualTimer
	logs    *bytes.Buffer

	completed bool
	passed    bool
	reason    string
}

func (h *fakeHost) Send(key, value string) error {
	h.sent = append(h.sent, Event{Key: key, Value: value})
	return nil
}

func (h *fakeHost) Sync() error {
	h.syncs++
	return h.syncErr
}

func (h *fakeHost) Reset() error {
	h.resets++
	return nil
}

func (h *fakeHost) Sleep(d time.Duration) {
	h.sleeps = append(h.sleeps, d)
}

func (h *fakeHost) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	h.timers = append(h.timers, t)
	return t
}

func (h *fakeHost) NotifyComplete(passed bool, reason string) {
	h.completed = true
	h.passed = passed
	h.reason = reason
}

func (h *fakeHost) Log() zerolog.Logger {
	if h.logs != nil {
		return zerolog.New(h.logs)
	}
	return logger.NewTestLogger()
}

func (h *fakeHost) sentKeys() []string {
	keys := make([]string, 0, len(h.sent))
	for _, ev := range h.sent {
		keys = append(keys, ev.Key)
	}
	return keys
}

func (h *fakeHost) countSent(key string) int {
	n := 0
	for _, ev := range h.sent {
		if ev.Key == key {
			n++
		}
	}
	return n
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{ResetRecoveryName, TimingDriftName, WatchdogResetName}, Names())
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		factory, err := Lookup(name)
		require.NoError(t, err, name)

		test, err := factory(nil)
		require.NoError(t, err, name)
		assert.NotNil(t, test, name)
	}

	_, err := Lookup("no_such_test")
	require.ErrorIs(t, err, ErrUnknownHostTest)
}

func TestFactoryParams(t *testing.T) {
	tests := []struct {
		name    string
		test    string
		params  map[string]string
		wantErr bool
	}{
		{"recovery defaults", ResetRecoveryName, nil, false},
		{"recovery cycles", ResetRecoveryName, map[string]string{"cycles": "5", "delay": "250ms"}, false},
		{"recovery bad cycles", ResetRecoveryName, map[string]string{"cycles": "many"}, true},
		{"recovery negative cycles", ResetRecoveryName, map[string]string{"cycles": "-1"}, true},
		{"recovery bad delay", ResetRecoveryName, map[string]string{"delay": "1"}, true},
		{"watchdog period", WatchdogResetName, map[string]string{"cycle_period": "2s"}, false},
		{"watchdog bad period", WatchdogResetName, map[string]string{"cycle_period": "soon"}, true},
		{"drift tolerance", TimingDriftName, map[string]string{"tolerance": "0.1", "period": "500ms"}, false},
		{"drift zero period", TimingDriftName, map[string]string{"period": "0s"}, true},
		{"drift bad tolerance", TimingDriftName, map[string]string{"tolerance": "lots"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := Lookup(tt.test)
			require.NoError(t, err)

			_, err = factory(tt.params)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParam)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFactoryAppliesParams(t *testing.T) {
	test, err := newResetRecoveryFromParams(map[string]string{"cycles": "7", "delay": "20ms"})
	require.NoError(t, err)

	rr := test.(*ResetRecovery)
	assert.Equal(t, 7, rr.Cycles)
	assert.Equal(t, 20*time.Millisecond, rr.Delay)

	test, err = newTimingDriftFromParams(nil)
	require.NoError(t, err)

	td := test.(*TimingDrift)
	assert.Equal(t, time.Second, td.Period)
	assert.InDelta(t, DefaultDriftTolerance, td.Tolerance, 1e-12)
}
