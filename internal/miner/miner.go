package miner

// #region imports
import (
	"log"
	"sort"
	"sync"

	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region causal-relationship

// CausalRelationship is a directed, frequency-derived association between
// two sequential app tokens.
type CausalRelationship struct {
	Cause      string  `json:"cause"`
	Effect     string  `json:"effect"`
	Strength   float64 `json:"strength"` // 0.0 to 1.0
	Confidence float64 `json:"confidence"`
}

// #endregion

// #region config

// Config holds the miner's detection thresholds.
type Config struct {
	MinSequenceLen    int     `yaml:"min_sequence_len"`    // sequences shorter than this are discarded
	StrengthThreshold float64 `yaml:"strength_threshold"`  // relationships at or below this are not stored
	FixedConfidence   float64 `yaml:"fixed_confidence"`    // heuristic confidence, no statistical model yet
	WorkflowMinCount  int     `yaml:"workflow_min_count"`  // sequence count above which a workflow is flagged
	SwitchingMeanLen  float64 `yaml:"switching_mean_len"`  // mean sequence length above which switching is flagged
}

// DefaultConfig returns the standard mining thresholds.
func DefaultConfig() Config {
	return Config{
		MinSequenceLen:    3,
		StrengthThreshold: 0.3,
		FixedConfidence:   0.7,
		WorkflowMinCount:  5,
		SwitchingMeanLen:  5.0,
	}
}

// #endregion

// #region miner-struct

// Miner extracts ordered app-focus sequences from raw events and maintains a
// cause → relationships adjacency map. The causal graph is read-mostly:
// mining writes per cause token, ranking and inspection read concurrently.
type Miner struct {
	config Config

	mu        sync.RWMutex
	sequences [][]string
	causal    map[string][]CausalRelationship
}

// New creates a Miner with the given config.
func New(config Config) *Miner {
	return &Miner{
		config: config,
		causal: make(map[string][]CausalRelationship),
	}
}

// #endregion

// #region mine

// Mine projects events to an ordered app-focus sequence, updates history and
// the causal graph, and returns the coarse pattern tags detected so far.
// Sequences shorter than MinSequenceLen are discarded without touching
// history; the returned tags still reflect whatever history already exists,
// so a discarded batch is a no-op rather than a blank slate.
func (m *Miner) Mine(events []types.Event) []types.PatternType {
	sequence := make([]string, 0, len(events))
	for _, e := range events {
		if e.FocusEvent() {
			sequence = append(sequence, e.AppName)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(sequence) >= m.config.MinSequenceLen {
		m.sequences = append(m.sequences, sequence)

		for i := 0; i < len(sequence)-1; i++ {
			cause, effect := sequence[i], sequence[i+1]
			strength := m.causalStrength(cause, effect)
			if strength > m.config.StrengthThreshold {
				m.storeRelationship(CausalRelationship{
					Cause:      cause,
					Effect:     effect,
					Strength:   strength,
					Confidence: m.config.FixedConfidence,
				})
			}
		}
	}

	tags := m.detectPatterns()
	log.Printf("[MINER] mined %d focus events → %d tags (%d sequences in history)",
		len(sequence), len(tags), len(m.sequences))
	return tags
}

// #endregion

// #region strength

// causalStrength is the frequentist estimate
// co_occurrences(cause→effect) / occurrences(cause) over all history.
// No smoothing: a single observation yields exactly 0 or 1. Empty history
// yields 0. Caller holds m.mu.
func (m *Miner) causalStrength(cause, effect string) float64 {
	var coOccurrences, causeCount int
	for _, seq := range m.sequences {
		for i := 0; i < len(seq)-1; i++ {
			if seq[i] == cause {
				causeCount++
				if seq[i+1] == effect {
					coOccurrences++
				}
			}
		}
	}
	if causeCount == 0 {
		return 0
	}
	return types.Clamp01(float64(coOccurrences) / float64(causeCount))
}

// storeRelationship inserts or overwrites the (cause, effect) entry in the
// adjacency list so each pass re-stores the recomputed strength. Caller
// holds m.mu.
func (m *Miner) storeRelationship(rel CausalRelationship) {
	rels := m.causal[rel.Cause]
	for i, existing := range rels {
		if existing.Effect == rel.Effect {
			rels[i] = rel
			return
		}
	}
	m.causal[rel.Cause] = append(rels, rel)
}

// #endregion

// #region detect

// detectPatterns derives coarse pattern tags from accumulated history.
// Caller holds m.mu (read suffices).
func (m *Miner) detectPatterns() []types.PatternType {
	var tags []types.PatternType
	if len(m.sequences) == 0 {
		return tags
	}

	if len(m.sequences) > m.config.WorkflowMinCount {
		tags = append(tags, types.PatternWorkflowSequence)
	}

	var total int
	for _, seq := range m.sequences {
		total += len(seq)
	}
	meanLen := float64(total) / float64(len(m.sequences))
	if meanLen > m.config.SwitchingMeanLen {
		tags = append(tags, types.PatternContextSwitching)
	}

	return tags
}

// #endregion

// #region accessors

// CausalRelationships returns the known relationships for a cause token,
// sorted strongest first. Unknown causes return an empty slice.
func (m *Miner) CausalRelationships(cause string) []CausalRelationship {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rels := m.causal[cause]
	out := make([]CausalRelationship, len(rels))
	copy(out, rels)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].Effect < out[j].Effect
	})
	return out
}

// SequenceCount reports how many sequences are in history.
func (m *Miner) SequenceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sequences)
}

// #endregion
