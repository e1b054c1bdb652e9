package replay

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: seeded
// outcome history, candidate observations, and the expected gate decisions.
type Fixture struct {
	Description  string               `json:"description"`
	Config       *Config              `json:"config,omitempty"`
	History      []types.Outcome      `json:"history"`
	Observations []types.Observation  `json:"observations"`
	Expected     []FixtureExpectation `json:"expected_results"`
}

// FixtureExpectation is the asserted result for one observation.
type FixtureExpectation struct {
	ObservationID string `json:"observation_id"`
	ActionSafe    bool   `json:"action_safe"`
	GatePass      bool   `json:"gate_pass"`
}

// #endregion

// #region load

// LoadFixture reads and parses a fixture JSON file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}

	if len(f.Observations) == 0 {
		return Fixture{}, fmt.Errorf("fixture has no observations")
	}
	return f, nil
}

// #endregion

// #region check

// FixtureCheck is the verdict for one expectation after a fixture run.
type FixtureCheck struct {
	ObservationID string
	Pass          bool
	Detail        string
}

// CheckFixture replays the fixture's observations against its seeded history
// and compares gate decisions to the expectations.
func (s *Simulator) CheckFixture(f Fixture) []FixtureCheck {
	for _, outcome := range f.History {
		s.AddOutcome(outcome.ObservationID, outcome)
	}

	byID := make(map[string]Result, len(f.Observations))
	for _, result := range s.BatchReplay(context.Background(), f.Observations) {
		byID[result.ObservationID] = result
	}

	checks := make([]FixtureCheck, 0, len(f.Expected))
	for _, exp := range f.Expected {
		result, ok := byID[exp.ObservationID]
		if !ok {
			checks = append(checks, FixtureCheck{
				ObservationID: exp.ObservationID,
				Pass:          false,
				Detail:        "no result for observation id",
			})
			continue
		}

		gatePass := s.Gate(result)
		pass := result.ActionSafe == exp.ActionSafe && gatePass == exp.GatePass
		detail := fmt.Sprintf("safe=%v gate=%v quality=%.2f", result.ActionSafe, gatePass, result.QualityScore)
		checks = append(checks, FixtureCheck{
			ObservationID: exp.ObservationID,
			Pass:          pass,
			Detail:        detail,
		})
	}
	return checks
}

// #endregion
