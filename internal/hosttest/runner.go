package hosttest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultResetSettle = 2 * time.Second
	DefaultSyncRetries = 5
	DefaultSyncTimeout = time.Second
	DefaultTestTimeout = 60 * time.Second
)

var (
	ErrSyncFailed  = errors.New("device did not answer the sync handshake")
	ErrTestTimeout = errors.New("host test timed out")
)

// Transport carries protocol lines to and from the target. *serialport.Port
// implements it.
type Transport interface {
	ReadLine(ctx context.Context) (string, error)
	WriteString(s string) error
	Reset() error
}

type RunnerOptions struct {
	ResetSettle time.Duration
	SyncRetries int
	SyncTimeout time.Duration
	Timeout     time.Duration
}

func (o RunnerOptions) withDefaults() RunnerOptions {
	if o.ResetSettle <= 0 {
		o.ResetSettle = DefaultResetSettle
	}
	if o.SyncRetries <= 0 {
		o.SyncRetries = DefaultSyncRetries
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = DefaultSyncTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTestTimeout
	}
	return o
}

// Result is the outcome of one host test. Passed is only true when the test
// itself reported success.
type Result struct {
	Name      string        `json:"name"`
	SessionID string        `json:"session_id"`
	Passed    bool          `json:"passed"`
	Reason    string        `json:"reason"`
	Duration  time.Duration `json:"duration_ns"`
}

// Runner drives host tests against one target.
type Runner struct {
	transport Transport
	opts      RunnerOptions
	log       zerolog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
}

func NewRunner(t Transport, opts RunnerOptions, log zerolog.Logger) *Runner {
	return &Runner{
		transport: t,
		opts:      opts.withDefaults(),
		log:       log,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
	}
}

// Session is the state of one host test execution.
type Session struct {
	ID      uuid.UUID
	Name    string
	Test    HostTest
	started time.Time
	timeout time.Duration

	// deadlineBase is wall-clock time; started comes from the runner clock
	// and only feeds event timestamps.
	deadlineBase time.Time

	runner *Runner
	ctx    context.Context
	log    zerolog.Logger

	mu       sync.Mutex
	complete bool
	passed   bool
	reason   string
	queued   []Event
}

// Run executes one host test. An empty name waits for the device to announce
// its host test with __host_test_name. When reset is set the target is reset
// before the handshake. Failures are reported in the Result, never as an
// error, so a plan can carry on with the next test.
func (r *Runner) Run(ctx context.Context, name string, params map[string]string, reset bool) Result {
	s := &Session{
		ID:      uuid.New(),
		Name:    name,
		started: r.now(),
		timeout: r.opts.Timeout,
		runner:  r,
		ctx:     ctx,

		deadlineBase: time.Now(),
	}
	s.log = r.log.With().Str("session", s.ID.String()).Logger()

	err := s.run(params, reset)

	res := s.result(err)
	s.log.Info().Bool("passed", res.Passed).Str("reason", res.Reason).Dur("duration", res.Duration).Msg("Host test finished")

	return res
}

func (s *Session) result(err error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{
		Name:      s.Name,
		SessionID: s.ID.String(),
		Passed:    err == nil && s.complete && s.passed,
		Reason:    s.reason,
		Duration:  s.runner.now().Sub(s.started),
	}

	if err != nil {
		res.Reason = err.Error()
	}

	return res
}

func (s *Session) run(params map[string]string, reset bool) error {
	if s.Name != "" {
		if err := s.createTest(params); err != nil {
			return err
		}
		defer s.Test.Teardown()
	}

	if reset {
		if err := s.resetTarget(); err != nil {
			return err
		}
	}

	if err := s.handshake(); err != nil {
		return err
	}

	for {
		if s.isComplete() {
			return nil
		}

		ev, err := s.nextEvent()
		if err != nil {
			return err
		}

		switch ev.Key {
		case KeyTimeout:
			s.setTimeout(ev.Value)
			continue
		case KeyHostTestName:
			if s.Test == nil {
				s.Name = ev.Value
				if err := s.createTest(params); err != nil {
					return err
				}
				defer s.Test.Teardown()
			}
			continue
		case KeySync:
			s.log.Trace().Str("token", ev.Value).Msg("Sync echo")
			continue
		case KeyExit:
			s.NotifyComplete(ev.Value == "0", "device exited with code "+ev.Value)
			return nil
		}

		if s.Test == nil {
			s.log.Debug().Str("key", ev.Key).Msg("Event before host test selected, ignoring")
			continue
		}

		if err := s.Test.Handle(ev); err != nil {
			return err
		}
	}
}

func (s *Session) createTest(params map[string]string) error {
	factory, err := Lookup(s.Name)
	if err != nil {
		return err
	}

	test, err := factory(params)
	if err != nil {
		return err
	}

	s.log = s.log.With().Str("host_test", s.Name).Logger()

	if err := test.Setup(s); err != nil {
		return fmt.Errorf("host test %s setup failed: %w", s.Name, err)
	}

	s.Test = test

	return nil
}

// handshake sends __sync with the session id until the device echoes it.
func (s *Session) handshake() error {
	token := s.ID.String()

	for attempt := 1; attempt <= s.runner.opts.SyncRetries; attempt++ {
		if err := s.Send(KeySync, token); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.runner.opts.SyncTimeout)
		ok, err := s.awaitSync(ctx, token)
		cancel()

		if ok {
			s.log.Debug().Int("attempt", attempt).Msg("Device synchronised")
			return nil
		}
		if err != nil && s.ctx.Err() != nil {
			return s.ctx.Err()
		}

		s.log.Debug().Int("attempt", attempt).Msg("No sync reply, retrying")
	}

	return ErrSyncFailed
}

func (s *Session) awaitSync(ctx context.Context, token string) (bool, error) {
	for {
		line, err := s.runner.transport.ReadLine(ctx)
		if err != nil {
			return false, err
		}

		ev, ok := Decode(line)
		if !ok {
			s.log.Trace().Str("line", line).Msg("Device output")
			continue
		}

		if ev.Key == KeySync && ev.Value == token {
			return true, nil
		}

		s.log.Debug().Str("key", ev.Key).Msg("Discarding event before sync")
	}
}

// nextEvent returns queued host events first, then reads the device.
func (s *Session) nextEvent() (Event, error) {
	s.mu.Lock()
	if len(s.queued) > 0 {
		ev := s.queued[0]
		s.queued = s.queued[1:]
		s.mu.Unlock()
		return ev, nil
	}
	deadline := s.deadlineBase.Add(s.timeout)
	s.mu.Unlock()

	ctx, cancel := context.WithDeadline(s.ctx, deadline)
	defer cancel()

	for {
		line, err := s.runner.transport.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && s.ctx.Err() == nil {
				return Event{}, fmt.Errorf("%w after %s", ErrTestTimeout, s.timeout)
			}
			return Event{}, err
		}

		ev, ok := Decode(line)
		if !ok {
			s.log.Trace().Str("line", line).Msg("Device output")
			continue
		}

		ev.Timestamp = s.elapsed()
		s.log.Debug().Str("key", ev.Key).Str("value", ev.Value).Float64("ts", ev.Timestamp).Msg("Event")

		return ev, nil
	}
}

func (s *Session) setTimeout(value string) {
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		s.log.Warn().Str("value", value).Msg("Ignoring invalid timeout from device")
		return
	}

	s.mu.Lock()
	s.timeout = time.Duration(secs) * time.Second
	s.mu.Unlock()
}

func (s *Session) elapsed() float64 {
	return s.runner.now().Sub(s.started).Seconds()
}

func (s *Session) isComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

func (s *Session) resetTarget() error {
	if err := s.runner.transport.Reset(); err != nil {
		return fmt.Errorf("failed to reset target: %w", err)
	}
	s.Sleep(s.runner.opts.ResetSettle)
	return nil
}

// Send implements Host.
func (s *Session) Send(key, value string) error {
	s.log.Debug().Str("key", key).Str("value", value).Msg("Send")
	return s.runner.transport.WriteString(Encode(key, value))
}

// Sync implements Host.
func (s *Session) Sync() error {
	return s.Send(KeySync, uuid.NewString())
}

// Reset implements Host. The target gets ResetSettle to boot before the
// __reset_complete event is delivered.
func (s *Session) Reset() error {
	if err := s.resetTarget(); err != nil {
		return err
	}

	s.mu.Lock()
	s.queued = append(s.queued, Event{Key: KeyResetComplete, Timestamp: s.runner.now().Sub(s.started).Seconds()})
	s.mu.Unlock()

	return nil
}

// Sleep implements Host. It returns early when the run is cancelled.
func (s *Session) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}

// AfterFunc implements Host.
func (s *Session) AfterFunc(d time.Duration, f func()) Timer {
	return s.runner.afterFunc(d, f)
}

// NotifyComplete implements Host. The first verdict wins.
func (s *Session) NotifyComplete(passed bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete {
		return
	}

	s.complete = true
	s.passed = passed
	s.reason = reason
}

// Log implements Host.
func (s *Session) Log() zerolog.Logger {
	return s.log
}
