package hosttest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrExhausted is returned by a host test that has reached a terminal
	// state, either because it finished or because it saw an event it did not
	// expect. A run that ends this way without a passing verdict has failed.
	ErrExhausted = errors.New("host test state machine exhausted")

	ErrUnknownHostTest = errors.New("unknown host test")
	ErrInvalidParam    = errors.New("invalid host test parameter")
)

// Timer is a pending one-shot callback. Stop on a fired or stopped timer is a
// no-op.
type Timer interface {
	Stop() bool
}

// Host is what a host test can do to the device under test.
type Host interface {
	// Send writes one key/value line to the device.
	Send(key, value string) error
	// Sync sends a __sync with a fresh token.
	Sync() error
	// Reset resets the target. A __reset_complete event follows once the
	// target has had time to boot.
	Reset() error
	Sleep(d time.Duration)
	AfterFunc(d time.Duration, f func()) Timer
	// NotifyComplete records the verdict. The runner stops after the current
	// event.
	NotifyComplete(passed bool, reason string)
	Log() zerolog.Logger
}

// HostTest is the host half of one on-device test.
type HostTest interface {
	Setup(h Host) error
	Handle(ev Event) error
	Teardown()
}

// Factory builds a host test from plan parameters.
type Factory func(params map[string]string) (HostTest, error)

var registry = map[string]Factory{
	ResetRecoveryName: newResetRecoveryFromParams,
	WatchdogResetName: newWatchdogResetFromParams,
	TimingDriftName:   newTimingDriftFromParams,
}

func Lookup(name string) (Factory, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHostTest, name)
	}
	return f, nil
}

// Names lists the registered host tests in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func intParam(params map[string]string, key string, def int) (int, error) {
	s, ok := params[key]
	if !ok || s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, s)
	}

	return v, nil
}

func durationParam(params map[string]string, key string, def time.Duration) (time.Duration, error) {
	s, ok := params[key]
	if !ok || s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, s)
	}

	return d, nil
}

func floatParam(params map[string]string, key string, def float64) (float64, error) {
	s, ok := params[key]
	if !ok || s == "" {
		return def, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, s)
	}

	return v, nil
}
