package hosttest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARMmbed/mbedtools/internal/logger"
)

const planYAML = `
tests:
  - name: reset_recovery
    reset: true
    params:
      cycles: "5"
      delay: 500ms
  - name: watchdog_reset
  - name: timing_drift
    params:
      tolerance: "0.1"
`

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o600))

	plan, err := LoadPlan(path)
	require.NoError(t, err)

	want := []PlanEntry{
		{Name: ResetRecoveryName, Reset: true, Params: map[string]string{"cycles": "5", "delay": "500ms"}},
		{Name: WatchdogResetName},
		{Name: TimingDriftName, Params: map[string]string{"tolerance": "0.1"}},
	}
	assert.Equal(t, want, plan.Tests)
}

func TestLoadPlan_MissingFile(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParsePlan_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty", "tests: []", ErrEmptyPlan},
		{"unknown test", "tests:\n  - name: flash_erase\n", ErrUnknownHostTest},
		{"bad param", "tests:\n  - name: reset_recovery\n    params:\n      cycles: lots\n", ErrInvalidParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.data))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := ParsePlan([]byte("tests:\n  - params: {}\n"))
	require.ErrorContains(t, err, "must have a name")

	_, err = ParsePlan([]byte("tests: [unterminated"))
	require.ErrorContains(t, err, "failed to parse plan YAML")
}

func TestRunPlan_ContinuesAfterFailure(t *testing.T) {
	dev := newFakeDevice(echoSync(func(d *fakeDevice, _ int) {
		d.emit("{{tick;0}}", "{{tick;1}}", "{{end;0}}")
	}))

	r := NewRunner(dev, testOptions(), logger.NewTestLogger())
	r.now = steppingClock()

	plan := Plan{Tests: []PlanEntry{
		{Name: "no_such_test"},
		{Name: TimingDriftName},
	}}

	results := r.RunPlan(context.Background(), plan)
	require.Len(t, results, 2)

	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Passed, results[1].Reason)

	rep := NewReport(results)
	assert.Equal(t, 1, rep.Passed)
	assert.Equal(t, 1, rep.Failed)
	assert.False(t, rep.OK())
}

func TestRunPlan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(newFakeDevice(nil), testOptions(), logger.NewTestLogger())
	results := r.RunPlan(ctx, Plan{Tests: []PlanEntry{{Name: TimingDriftName}}})

	assert.Empty(t, results)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	rep := NewReport([]Result{{Name: TimingDriftName, SessionID: "abc", Passed: true, Reason: "ok"}})

	require.NoError(t, WriteReport(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rep, got)
	assert.True(t, got.OK())
}
