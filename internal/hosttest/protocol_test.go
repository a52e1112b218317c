package hosttest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARMmbed/mbedtools/internal/logger"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "{{__sync;abc}}\n", Encode(KeySync, "abc"))
	assert.Equal(t, "{{start_case;01,fffffffe}}\n", Encode(KeyStartCase, "01,fffffffe"))
	assert.Equal(t, "{{end;}}\n", Encode(KeyEnd, ""))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Event
		wantOK bool
	}{
		{"plain", "{{start;0}}", Event{Key: "start", Value: "0"}, true},
		{"trailing brace", "{{__sync;9f3b}}}", Event{Key: "__sync", Value: "9f3b"}, true},
		{"surrounding output", "boot done {{ready;1}} ok", Event{Key: "ready", Value: "1"}, true},
		{"empty value", "{{end;}}", Event{Key: "end"}, true},
		{"dashed key", "{{reset-done;x}}", Event{Key: "reset-done", Value: "x"}, true},
		{"first token wins", "{{a;1}}{{b;2}}", Event{Key: "a", Value: "1"}, true},
		{"device printf", ">>> Running case #1", Event{}, false},
		{"missing separator", "{{start}}", Event{}, false},
		{"unterminated", "{{start;0", Event{}, false},
		{"empty key", "{{;0}}", Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	ev, ok := Decode(Encode(KeyDeviceReset, "3,500"))
	require.True(t, ok)
	assert.Equal(t, Event{Key: KeyDeviceReset, Value: "3,500"}, ev)
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(logger.NewTestLogger())

	var got []string
	d.Register("a", func(ev Event) error {
		got = append(got, "a:"+ev.Value)
		return nil
	})

	require.NoError(t, d.Dispatch(Event{Key: "a", Value: "1"}))
	require.NoError(t, d.Dispatch(Event{Key: "unregistered", Value: "2"}))
	assert.Equal(t, []string{"a:1"}, got)

	d.RegisterCatchAll(func(ev Event) error {
		got = append(got, "*:"+ev.Key)
		return nil
	})

	require.NoError(t, d.Dispatch(Event{Key: "b"}))
	require.NoError(t, d.Dispatch(Event{Key: "a", Value: "3"}))
	assert.Equal(t, []string{"a:1", "*:b", "a:3"}, got)
}

func TestDispatcher_ReplaceAndError(t *testing.T) {
	d := NewDispatcher(logger.NewTestLogger())
	boom := errors.New("boom")

	d.Register("a", func(Event) error { return nil })
	d.Register("a", func(Event) error { return boom })

	require.ErrorIs(t, d.Dispatch(Event{Key: "a"}), boom)
}
