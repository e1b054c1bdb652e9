package engine

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cogniflow-ai/go-engine/internal/actionlog"
	"github.com/cogniflow-ai/go-engine/internal/clock"
	"github.com/cogniflow-ai/go-engine/internal/config"
	"github.com/cogniflow-ai/go-engine/internal/miner"
	"github.com/cogniflow-ai/go-engine/internal/policy"
	"github.com/cogniflow-ai/go-engine/internal/ranker"
	"github.com/cogniflow-ai/go-engine/internal/replay"
	"github.com/cogniflow-ai/go-engine/internal/sandbox"
	"github.com/cogniflow-ai/go-engine/internal/synth"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region errors

// ErrGateRejected is returned by Execute when the replay gate blocks the
// candidate before the synthesizer is consulted.
var ErrGateRejected = errors.New("replay gate rejected action")

// #endregion

// #region engine-struct

// Engine is the top-level coordinator for the action-safety pipeline:
// mining → ranking → replay gating → synthesis/rollback → policy feedback.
// It is the in-process boundary external collaborators talk to.
type Engine struct {
	miner     *miner.Miner
	ranker    *ranker.Ranker
	simulator *replay.Simulator
	synth     *synth.Synthesizer
	policy    *policy.Policy
	store     *actionlog.Store // nil when running without a durable journal
}

// #endregion

// #region constructor

// New creates a fully wired engine. When cfg.DBPath is set the executed
// actions and outcomes are journaled to SQLite; otherwise everything is
// in-memory.
func New(cfg config.Config, clk clock.Clock) (*Engine, error) {
	runner := sandbox.New(cfg.Sandbox.WorkDir, cfg.Sandbox.Timeout)

	var store *actionlog.Store
	var journal synth.Journal
	if cfg.DBPath != "" {
		var err error
		store, err = actionlog.NewStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open action log: %w", err)
		}
		journal = store
	}

	return &Engine{
		miner:     miner.New(cfg.Miner),
		ranker:    ranker.New(cfg.Ranker),
		simulator: replay.NewSimulator(cfg.Replay, runner),
		synth:     synth.New(runner, clk, journal),
		policy:    policy.New(cfg.Policy),
		store:     store,
	}, nil
}

// Close releases the durable journal if one is open.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// #endregion

// #region mining

// MineEvents feeds raw OS events to the pattern miner.
func (e *Engine) MineEvents(events []types.Event) []types.PatternType {
	return e.miner.Mine(events)
}

// CausalRelationships exposes the causal adjacency list for an app token.
func (e *Engine) CausalRelationships(app string) []miner.CausalRelationship {
	return e.miner.CausalRelationships(app)
}

// #endregion

// #region ranking

// Rank orders candidate observations by expected value.
func (e *Engine) Rank(observations []types.Observation) []ranker.Ranked {
	return e.ranker.Rank(observations)
}

// TrainRanker applies the reinforcement rule to the ranker weights.
func (e *Engine) TrainRanker(observations []types.Observation) {
	e.ranker.Train(observations)
}

// DetectPattern classifies an observation into a coarse pattern archetype.
func (e *Engine) DetectPattern(obs types.Observation) types.PatternType {
	return e.ranker.DetectPattern(obs)
}

// #endregion

// #region replay

// Replay dry-runs one observation through the sandbox and quality scoring.
func (e *Engine) Replay(ctx context.Context, obs types.Observation) replay.Result {
	return e.simulator.Replay(ctx, obs)
}

// BatchReplay dry-runs a set of observations concurrently.
func (e *Engine) BatchReplay(ctx context.Context, observations []types.Observation) []replay.Result {
	return e.simulator.BatchReplay(ctx, observations)
}

// Gate applies the safety-and-quality gate to a replay result.
func (e *Engine) Gate(result replay.Result) bool {
	return e.simulator.Gate(result)
}

// #endregion

// #region execute

// Execute runs the full gate → synthesize path for one observation. The
// replay gate is checked first; the synthesizer then re-applies its stricter
// unattended-execution predicate and sandbox test before recording anything.
func (e *Engine) Execute(ctx context.Context, obs types.Observation) (synth.ExecutedAction, error) {
	result := e.simulator.Replay(ctx, obs)
	if !e.simulator.Gate(result) {
		log.Printf("[ENGINE] gate rejected %s: safe=%v quality=%.2f errors=%d",
			obs.ID, result.ActionSafe, result.QualityScore, len(result.Errors))
		return synth.ExecutedAction{}, fmt.Errorf("observation %s: %w", obs.ID, ErrGateRejected)
	}
	return e.synth.SynthesizeAndExecute(ctx, obs)
}

// RollbackLast reverts the most recent completed action.
func (e *Engine) RollbackLast() (synth.ExecutedAction, error) {
	return e.synth.RollbackLast()
}

// RollbackAction reverts a specific completed action by id.
func (e *Engine) RollbackAction(id string) (synth.ExecutedAction, error) {
	return e.synth.RollbackAction(id)
}

// History returns the not-yet-reverted executed actions in execution order.
func (e *Engine) History() []synth.ExecutedAction {
	return e.synth.History()
}

// #endregion

// #region feedback

// RecordOutcome closes the loop on a shown suggestion: the outcome feeds the
// replay quality prior, the policy's value estimate, and the durable journal
// when one is open.
func (e *Engine) RecordOutcome(obs types.Observation, outcome types.Outcome) {
	e.simulator.AddOutcome(outcome.ObservationID, outcome)
	e.policy.Update(obs, outcome)

	if e.store != nil {
		if err := e.store.RecordOutcome(outcome); err != nil {
			log.Printf("[ENGINE] journal outcome failed for %s: %v", outcome.ObservationID, err)
		}
	}
}

// SelectAction asks the policy which action to run for an observation.
func (e *Engine) SelectAction(obs types.Observation) types.Action {
	return e.policy.Select(obs)
}

// PolicyStats exposes the policy table snapshot for observability.
func (e *Engine) PolicyStats() policy.Statistics {
	return e.policy.Stats()
}

// #endregion
