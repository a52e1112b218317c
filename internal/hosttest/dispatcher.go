package hosttest

import (
	"github.com/rs/zerolog"
)

type Callback func(Event) error

// Dispatcher routes events to callbacks by key.
type Dispatcher struct {
	callbacks map[string]Callback
	catchAll  Callback
	log       zerolog.Logger
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{callbacks: map[string]Callback{}, log: log}
}

// Register sets the callback for key, replacing any earlier one.
func (d *Dispatcher) Register(key string, cb Callback) {
	d.callbacks[key] = cb
}

// RegisterCatchAll receives every event with no key-specific callback.
func (d *Dispatcher) RegisterCatchAll(cb Callback) {
	d.catchAll = cb
}

// Dispatch calls the callback registered for ev.Key. An event nobody
// registered for is dropped.
func (d *Dispatcher) Dispatch(ev Event) error {
	if cb, ok := d.callbacks[ev.Key]; ok {
		return cb(ev)
	}

	if d.catchAll != nil {
		return d.catchAll(ev)
	}

	d.log.Debug().Str("key", ev.Key).Str("value", ev.Value).Msg("Ignoring event with no registered callback")

	return nil
}
