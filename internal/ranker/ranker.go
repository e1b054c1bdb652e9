package ranker

// #region imports
import (
	"log"
	"sort"

	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region config

// Config holds the composite weighting and the initial feature weights.
type Config struct {
	ScoreWeight     float64            `yaml:"score_weight"`      // weight of the feature score in the composite
	TimeSavedWeight float64            `yaml:"time_saved_weight"` // weight of expected time saved in the composite
	FeatureWeights  map[string]float64 `yaml:"feature_weights"`   // initial metric weights
}

// DefaultConfig returns the standard feature weights and composite split.
func DefaultConfig() Config {
	return Config{
		ScoreWeight:     0.4,
		TimeSavedWeight: 0.6,
		FeatureWeights: map[string]float64{
			"repeat_count":           0.3,
			"time_to_first_code_min": 0.2,
			"context_switch_count":   0.25,
			"focus_fragmentation_pct": 0.25,
		},
	}
}

// #endregion

// #region ranker-struct

// Ranker scores and orders candidate observations by expected value.
// Stateless apart from the trainable weight vector.
type Ranker struct {
	config  Config
	weights map[string]float64
}

// New creates a Ranker seeded with the config's feature weights.
func New(config Config) *Ranker {
	weights := make(map[string]float64, len(config.FeatureWeights))
	for k, v := range config.FeatureWeights {
		weights[k] = v
	}
	return &Ranker{config: config, weights: weights}
}

// #endregion

// #region score

// Score computes clamp01(Σ weight[k]·metric[k] / 100). Metrics without a
// weight, and weights without a metric, contribute nothing.
func (r *Ranker) Score(obs types.Observation) float64 {
	var sum float64
	for key, weight := range r.weights {
		sum += obs.Metric(key) * weight
	}
	return types.Clamp01(sum / 100.0)
}

// #endregion

// #region rank

// Ranked pairs an observation with its composite expected value.
type Ranked struct {
	Observation types.Observation
	Composite   float64
}

// Rank orders observations descending by composite expected value:
// (ScoreWeight·score + TimeSavedWeight·time_saved/100) scaled by confidence
// and risk multipliers. Ties keep stable input order.
func (r *Ranker) Rank(observations []types.Observation) []Ranked {
	ranked := make([]Ranked, 0, len(observations))
	for _, obs := range observations {
		score := r.Score(obs)
		timeSaved := obs.Expected("time_saved_min")

		composite := (r.config.ScoreWeight*score + r.config.TimeSavedWeight*timeSaved/100.0) *
			confidenceMultiplier(obs.Action.Confidence) *
			riskMultiplier(obs.Action.Risk)

		ranked = append(ranked, Ranked{Observation: obs, Composite: composite})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Composite > ranked[j].Composite
	})

	log.Printf("[RANK] ranked %d observations", len(ranked))
	return ranked
}

// #endregion

// #region multipliers

func confidenceMultiplier(c types.Confidence) float64 {
	switch c {
	case types.ConfidenceHigh:
		return 1.0
	case types.ConfidenceMedium:
		return 0.7
	default:
		return 0.4
	}
}

func riskMultiplier(r types.RiskCategory) float64 {
	switch r {
	case types.RiskNone:
		return 1.0
	case types.RiskLow:
		return 0.8
	default:
		return 0.3
	}
}

// #endregion

// #region train

// Train applies the positive-reinforcement rule: any observation with
// repeat_count > 5 multiplies the repeat_count weight by 1.1. Weights are
// never normalized, so repeated training inflates them monotonically; this
// drift is a known property of the rule, not corrected here.
func (r *Ranker) Train(observations []types.Observation) {
	for _, obs := range observations {
		if obs.Metric("repeat_count") > 5 {
			r.weights["repeat_count"] *= 1.1
		}
	}
	log.Printf("[RANK] trained on %d observations (repeat_count weight now %.4f)",
		len(observations), r.weights["repeat_count"])
}

// Weight exposes a feature weight, mainly for inspection and tests.
func (r *Ranker) Weight(key string) float64 {
	return r.weights[key]
}

// #endregion

// #region detect

// DetectPattern classifies an observation into a coarse pattern archetype
// using heuristic metric thresholds.
func (r *Ranker) DetectPattern(obs types.Observation) types.PatternType {
	repeatCount := obs.Metric("repeat_count")
	contextSwitches := obs.Metric("context_switch_count")
	fragmentation := obs.Metric("focus_fragmentation_pct")

	switch {
	case repeatCount > 5 && len(obs.Observation) >= 3:
		return types.PatternWorkflowSequence
	case containsToken(obs.Observation, "copy_error"):
		return types.PatternDebuggingLoop
	case contextSwitches > 5 || fragmentation > 50:
		return types.PatternContextSwitching
	default:
		return types.PatternTimingVariance
	}
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// #endregion
