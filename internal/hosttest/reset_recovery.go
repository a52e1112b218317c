package hosttest

import (
	"fmt"
	"time"
)

const ResetRecoveryName = "reset_recovery"

// Keys used by the reset recovery test.
const (
	KeyStart      = "start"
	KeyFormatDone = "format_done"
	KeyRun        = "run"
	KeyTestExit   = "exit"
)

const (
	defaultRecoveryCycles = 3
	defaultRecoveryDelay  = time.Second
)

type RecoveryState int

const (
	RecoveryWaitStart RecoveryState = iota
	RecoveryWaitFormatDone
	RecoveryWaitResetComplete
	RecoveryWaitRestart
	RecoveryDone
	RecoveryFailed
)

var recoveryStateNames = map[RecoveryState]string{
	RecoveryWaitStart:         "WaitStart",
	RecoveryWaitFormatDone:    "WaitFormatDone",
	RecoveryWaitResetComplete: "WaitResetComplete",
	RecoveryWaitRestart:       "WaitRestart",
	RecoveryDone:              "Done",
	RecoveryFailed:            "Failed",
}

func (s RecoveryState) String() string {
	if name, ok := recoveryStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RecoveryState(%d)", int(s))
}

func (s RecoveryState) terminal() bool {
	return s == RecoveryDone || s == RecoveryFailed
}

type ActionKind int

const (
	ActionSend ActionKind = iota
	ActionSleep
	ActionReset
	ActionSync
	ActionPass
)

// Action is a side effect requested by a state transition.
type Action struct {
	Kind  ActionKind
	Key   string
	Value string
	Delay time.Duration
}

type recoveryMachine struct {
	state RecoveryState
	cycle int
}

// ResetRecovery checks that the target comes back after a reset while a test
// case is running, for a number of cycles:
//
//	WaitStart -> WaitFormatDone -> [run, sleep, reset -> WaitResetComplete ->
//	sync -> WaitRestart] x Cycles -> exit
//
// Any other event in any state fails the test.
type ResetRecovery struct {
	Cycles int
	Delay  time.Duration

	host Host
	m    recoveryMachine
}

func NewResetRecovery(cycles int, delay time.Duration) *ResetRecovery {
	return &ResetRecovery{Cycles: cycles, Delay: delay}
}

func newResetRecoveryFromParams(params map[string]string) (HostTest, error) {
	cycles, err := intParam(params, "cycles", defaultRecoveryCycles)
	if err != nil {
		return nil, err
	}

	delay, err := durationParam(params, "delay", defaultRecoveryDelay)
	if err != nil {
		return nil, err
	}

	return NewResetRecovery(cycles, delay), nil
}

func (t *ResetRecovery) Setup(h Host) error {
	t.host = h
	t.m = recoveryMachine{state: RecoveryWaitStart}
	return nil
}

func (t *ResetRecovery) State() RecoveryState { return t.m.state }

// CompletedCycles is the number of resets the target has recovered from.
func (t *ResetRecovery) CompletedCycles() int { return t.m.cycle }

func (t *ResetRecovery) Handle(ev Event) error {
	if t.m.state.terminal() {
		return ErrExhausted
	}

	from := t.m.state
	next, actions := t.transition(t.m, ev)
	t.m = next

	if next.state == RecoveryFailed {
		return fmt.Errorf("%w: unexpected %q in state %s after %d of %d cycles", ErrExhausted, ev.Key, from, next.cycle, t.Cycles)
	}

	for _, a := range actions {
		if err := t.perform(a); err != nil {
			t.m.state = RecoveryFailed
			return err
		}
	}

	return nil
}

func (t *ResetRecovery) Teardown() {}

// transition is the pure state function of the test.
func (t *ResetRecovery) transition(m recoveryMachine, ev Event) (recoveryMachine, []Action) {
	failed := recoveryMachine{state: RecoveryFailed, cycle: m.cycle}

	switch m.state {
	case RecoveryWaitStart:
		if ev.Key != KeyStart {
			return failed, nil
		}
		return recoveryMachine{state: RecoveryWaitFormatDone, cycle: m.cycle}, nil

	case RecoveryWaitFormatDone:
		if ev.Key != KeyFormatDone {
			return failed, nil
		}
		return t.nextCycle(m)

	case RecoveryWaitResetComplete:
		if ev.Key != KeyResetComplete {
			return failed, nil
		}
		return recoveryMachine{state: RecoveryWaitRestart, cycle: m.cycle + 1}, []Action{{Kind: ActionSync}}

	case RecoveryWaitRestart:
		if ev.Key != KeyStart {
			return failed, nil
		}
		return t.nextCycle(m)
	}

	return failed, nil
}

func (t *ResetRecovery) nextCycle(m recoveryMachine) (recoveryMachine, []Action) {
	if m.cycle >= t.Cycles {
		return recoveryMachine{state: RecoveryDone, cycle: m.cycle}, []Action{
			{Kind: ActionSend, Key: KeyTestExit, Value: "0"},
			{Kind: ActionPass},
		}
	}

	return recoveryMachine{state: RecoveryWaitResetComplete, cycle: m.cycle}, []Action{
		{Kind: ActionSend, Key: KeyRun, Value: fmt.Sprint(m.cycle)},
		{Kind: ActionSleep, Delay: t.Delay},
		{Kind: ActionReset},
	}
}

func (t *ResetRecovery) perform(a Action) error {
	switch a.Kind {
	case ActionSend:
		return t.host.Send(a.Key, a.Value)
	case ActionSleep:
		t.host.Sleep(a.Delay)
	case ActionReset:
		return t.host.Reset()
	case ActionSync:
		return t.host.Sync()
	case ActionPass:
		t.host.NotifyComplete(true, fmt.Sprintf("target recovered from %d resets", t.m.cycle))
	}
	return nil
}
