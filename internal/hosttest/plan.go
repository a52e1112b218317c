package hosttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrEmptyPlan = errors.New("plan has no tests")

// PlanEntry is one host test in a plan file.
type PlanEntry struct {
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params"`
	Reset  bool              `yaml:"reset"`
}

// Plan is an ordered list of host tests:
//
//	tests:
//	  - name: reset_recovery
//	    reset: true
//	    params:
//	      cycles: "5"
type Plan struct {
	Tests []PlanEntry `yaml:"tests"`
}

// LoadPlan reads and validates a YAML plan file.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read plan file: %w", err)
	}

	return ParsePlan(data)
}

func ParsePlan(data []byte) (Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan YAML: %w", err)
	}

	if len(plan.Tests) == 0 {
		return Plan{}, ErrEmptyPlan
	}

	for i, entry := range plan.Tests {
		if entry.Name == "" {
			return Plan{}, fmt.Errorf("plan entry %d must have a name", i)
		}

		factory, err := Lookup(entry.Name)
		if err != nil {
			return Plan{}, fmt.Errorf("plan entry %d: %w", i, err)
		}

		// Catch bad parameters before any device time is spent.
		if _, err := factory(entry.Params); err != nil {
			return Plan{}, fmt.Errorf("plan entry %d (%s): %w", i, entry.Name, err)
		}
	}

	return plan, nil
}

// RunPlan runs every entry in order. A failing test does not stop the plan;
// only cancellation of ctx does.
func (r *Runner) RunPlan(ctx context.Context, plan Plan) []Result {
	results := make([]Result, 0, len(plan.Tests))

	for _, entry := range plan.Tests {
		if ctx.Err() != nil {
			r.log.Warn().Str("host_test", entry.Name).Msg("Plan cancelled, skipping remaining tests")
			break
		}

		results = append(results, r.Run(ctx, entry.Name, entry.Params, entry.Reset))
	}

	return results
}

// Report is the JSON document written by WriteReport.
type Report struct {
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

func NewReport(results []Result) Report {
	rep := Report{Results: results}
	for _, res := range results {
		if res.Passed {
			rep.Passed++
		} else {
			rep.Failed++
		}
	}
	return rep
}

// OK reports whether every test passed.
func (r Report) OK() bool {
	return r.Failed == 0
}

func WriteReport(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
