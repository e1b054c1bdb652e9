package policy

// #region imports
import (
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region entry

// Entry is one row of the policy table: the best-known action for a state
// fingerprint with its scalar value estimate and visit count.
type Entry struct {
	Action     types.Action `json:"action"`
	Value      float64      `json:"value"`
	VisitCount int          `json:"visit_count"`
}

// #endregion

// #region config

// Config holds the policy's learning parameters.
type Config struct {
	LearningRate   float64 `yaml:"learning_rate"`
	DiscountFactor float64 `yaml:"discount_factor"` // reserved; the single-step update has no future-state term
	Epsilon        float64 `yaml:"epsilon"`         // probability of keeping the proposed action
}

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:   0.1,
		DiscountFactor: 0.9,
		Epsilon:        0.1,
	}
}

// #endregion

// #region policy

// Policy is a per-state-key scalar estimator adjusted from outcome feedback.
// The value update is a single-step exponential moving average toward the
// immediate reward; there is no discounted next-state term. The state key is
// coarse on purpose: distinct observations sharing intent and profile share
// one entry, keeping the table small.
type Policy struct {
	config Config
	rng    func() float64

	mu    sync.Mutex
	table map[string]Entry
}

// New creates a Policy with the given config and the default RNG.
func New(config Config) *Policy {
	return NewWithRand(config, rand.Float64)
}

// NewWithRand creates a Policy with an injected RNG so selection is
// deterministic under test.
func NewWithRand(config Config, rng func() float64) *Policy {
	return &Policy{
		config: config,
		rng:    rng,
		table:  make(map[string]Entry),
	}
}

// StateKey derives the coarse policy fingerprint from an observation.
func StateKey(obs types.Observation) string {
	return fmt.Sprintf("%s_%s", obs.Intent, obs.Profile)
}

// #endregion

// #region update

// Update folds an observed outcome into the state entry's value estimate and
// records the observation's action as the entry's best-known action.
func (p *Policy) Update(obs types.Observation, outcome types.Outcome) {
	key := StateKey(obs)
	reward := computeReward(outcome)

	p.mu.Lock()
	entry := p.table[key]
	entry.Action = obs.Action
	entry.Value += p.config.LearningRate * (reward - entry.Value)
	entry.VisitCount++
	p.table[key] = entry
	p.mu.Unlock()

	log.Printf("[POLICY] %s: reward=%.2f value=%.4f visits=%d", key, reward, entry.Value, entry.VisitCount)
}

// computeReward scores an outcome: acceptance dominates, time saved and
// error-rate reduction add bonuses.
func computeReward(outcome types.Outcome) float64 {
	var reward float64
	if outcome.Accepted {
		reward += 10.0
	} else if outcome.Ignored {
		reward -= 2.0
	}
	if outcome.TimeSavedMinutes != nil {
		reward += *outcome.TimeSavedMinutes * 0.5
	}
	if outcome.ErrorRateChange != nil && *outcome.ErrorRateChange < 0 {
		reward += 5.0
	}
	return reward
}

// #endregion

// #region select

// Select returns the action to run for an observation. With probability
// epsilon the observation's own proposed action is kept ("exploration" here
// means not overriding, not sampling a different action); otherwise the
// best-known action for the state key, falling back to the proposed action
// when the key is unseen.
func (p *Policy) Select(obs types.Observation) types.Action {
	if p.rng() < p.config.Epsilon {
		return obs.Action
	}

	p.mu.Lock()
	entry, ok := p.table[StateKey(obs)]
	p.mu.Unlock()

	if !ok {
		return obs.Action
	}
	return entry.Action
}

// #endregion

// #region statistics

// Statistics is an observability snapshot of the policy table.
type Statistics struct {
	TotalStates  int     `json:"total_states"`
	AvgValue     float64 `json:"avg_value"`
	LearningRate float64 `json:"learning_rate"`
	Epsilon      float64 `json:"epsilon"`
}

// Stats summarizes the table for observability collaborators.
func (p *Policy) Stats() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sum float64
	for _, entry := range p.table {
		sum += entry.Value
	}
	avg := 0.0
	if len(p.table) > 0 {
		avg = sum / float64(len(p.table))
	}

	return Statistics{
		TotalStates:  len(p.table),
		AvgValue:     avg,
		LearningRate: p.config.LearningRate,
		Epsilon:      p.config.Epsilon,
	}
}

// Entry returns the table entry for a state key.
func (p *Policy) Entry(key string) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.table[key]
	return entry, ok
}

// #endregion
