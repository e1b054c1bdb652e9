package replay

// #region imports
import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cogniflow-ai/go-engine/internal/sandbox"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region result

// Result combines the sandbox outcome with the historical quality signal
// into a pass/fail safety-and-quality view of one observation. Derived, not
// persisted.
type Result struct {
	ObservationID string   `json:"observation_id"`
	ActionSafe    bool     `json:"action_safe"`
	QualityScore  float64  `json:"quality_score"` // 0.0 to 1.0
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
}

// #endregion

// #region config

// Config holds the replay quality parameters.
type Config struct {
	BaseQuality    float64 `yaml:"base_quality" json:"base_quality"`       // starting quality prior
	AcceptedBonus  float64 `yaml:"accepted_bonus" json:"accepted_bonus"`   // added per historically accepted outcome
	IgnoredPenalty float64 `yaml:"ignored_penalty" json:"ignored_penalty"` // subtracted per historically ignored outcome
	GateThreshold  float64 `yaml:"gate_threshold" json:"gate_threshold"`   // quality must strictly exceed this to pass the gate
}

// DefaultConfig returns the standard quality parameters.
func DefaultConfig() Config {
	return Config{
		BaseQuality:    0.5,
		AcceptedBonus:  0.1,
		IgnoredPenalty: 0.05,
		GateThreshold:  0.6,
	}
}

// #endregion

// #region simulator

// Simulator dry-runs candidate actions through the sandbox and scores them
// against accumulated historical outcomes. The quality prior is global: it
// sums over all history regardless of relevance to the current observation.
type Simulator struct {
	config Config
	runner *sandbox.Runner

	mu       sync.RWMutex
	outcomes map[string]types.Outcome
}

// NewSimulator creates a Simulator backed by the given sandbox runner.
func NewSimulator(config Config, runner *sandbox.Runner) *Simulator {
	return &Simulator{
		config:   config,
		runner:   runner,
		outcomes: make(map[string]types.Outcome),
	}
}

// AddOutcome injects a historical outcome keyed by observation id. Outcomes
// arrive from the suggestion-response collaborator; re-adding an id
// overwrites the previous entry.
func (s *Simulator) AddOutcome(observationID string, outcome types.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[observationID] = outcome
}

// OutcomeCount reports how many historical outcomes are held.
func (s *Simulator) OutcomeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// #endregion

// #region replay

// Replay runs the sandbox test and computes the combined safety/quality
// result for one observation.
func (s *Simulator) Replay(ctx context.Context, obs types.Observation) Result {
	sandboxResult := s.runner.Test(ctx, obs.Action)

	quality := s.config.BaseQuality
	s.mu.RLock()
	for _, outcome := range s.outcomes {
		if outcome.Accepted {
			quality += s.config.AcceptedBonus
		} else if outcome.Ignored {
			quality -= s.config.IgnoredPenalty
		}
	}
	s.mu.RUnlock()
	quality = types.Clamp01(quality)

	var errs, warnings []string
	if !sandboxResult.Success {
		errs = append(errs, "sandbox test failed")
	}
	if obs.Action.Risk > types.RiskLow {
		warnings = append(warnings, "high risk action detected")
	}
	if obs.Action.Confidence < types.ConfidenceMedium {
		warnings = append(warnings, "low confidence action")
	}

	result := Result{
		ObservationID: obs.ID,
		ActionSafe:    sandboxResult.Success && obs.Action.Risk <= types.RiskLow,
		QualityScore:  quality,
		Errors:        errs,
		Warnings:      warnings,
	}

	log.Printf("[REPLAY] %s: safe=%v quality=%.2f errors=%d warnings=%d",
		obs.ID, result.ActionSafe, result.QualityScore, len(result.Errors), len(result.Warnings))
	return result
}

// #endregion

// #region gate

// Gate reports whether a replayed action may proceed: safe, strictly above
// the quality threshold, and error-free. A quality score equal to the
// threshold does not pass.
func (s *Simulator) Gate(result Result) bool {
	return result.ActionSafe &&
		result.QualityScore > s.config.GateThreshold &&
		len(result.Errors) == 0
}

// #endregion

// #region batch

// BatchReplay replays each observation on its own worker and returns results
// in input order. Context cancellation flows into the individual sandbox
// tests, which resolve to failed results rather than aborting the batch.
func (s *Simulator) BatchReplay(ctx context.Context, observations []types.Observation) []Result {
	results := make([]Result, len(observations))

	g, gctx := errgroup.WithContext(ctx)
	for i, obs := range observations {
		i, obs := i, obs
		g.Go(func() error {
			results[i] = s.Replay(gctx, obs)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures land in results

	return results
}

// #endregion
