package synth

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cogniflow-ai/go-engine/internal/clock"
	"github.com/cogniflow-ai/go-engine/internal/sandbox"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region errors

var (
	// ErrNotSafe is the safety rejection for actions failing the
	// auto-execute predicate. Not retried; the caller may revise the
	// action's confidence or risk and call again.
	ErrNotSafe = errors.New("action not safe for auto-execution")

	// ErrSandboxFailed is the safety rejection for actions failing the
	// sandbox test.
	ErrSandboxFailed = errors.New("sandbox test failed")

	// ErrStateViolation is returned when a rollback targets an action that
	// is not in the Completed state.
	ErrStateViolation = errors.New("action not in completed state")

	// ErrEmptyStack is returned when a rollback is requested with nothing
	// left to roll back.
	ErrEmptyStack = errors.New("no actions to rollback")

	// ErrNotFound is returned for an unknown action id.
	ErrNotFound = errors.New("action not found")
)

// #endregion

// #region action-state

// ActionState is the lifecycle state of an executed action. Pending and
// Executing are transient within SynthesizeAndExecute and are never observed
// at rest; Completed → RolledBack is the only stored transition.
type ActionState string

const (
	StatePending    ActionState = "pending"
	StateExecuting  ActionState = "executing"
	StateCompleted  ActionState = "completed"
	StateRolledBack ActionState = "rolled_back"
	StateFailed     ActionState = "failed"
)

// #endregion

// #region executed-action

// ExecutedAction is one entry of the append-only execution log. Created only
// after a successful sandbox test; mutated only by rollback transitions;
// never deleted.
type ExecutedAction struct {
	ID              string          `json:"id"`
	ObservationID   string          `json:"observation_id"`
	Action          types.Action    `json:"action"`
	State           ActionState     `json:"state"`
	ExecutionResult *sandbox.Result `json:"execution_result,omitempty"`
	RollbackDiff    string          `json:"rollback_diff,omitempty"`
	ExecutedAt      time.Time       `json:"executed_at"`
	RolledBackAt    time.Time       `json:"rolled_back_at,omitzero"`
}

// #endregion

// #region journal

// Journal receives execution and rollback records for durable storage.
// Journal failures are logged, never propagated: the in-memory state machine
// is authoritative.
type Journal interface {
	RecordExecution(ExecutedAction) error
	RecordRollback(ExecutedAction) error
}

// #endregion

// #region synthesizer

// Synthesizer owns the execution state machine and the LIFO rollback stack.
// A single mutex guards both so a stack pop and the matching state
// transition happen as one atomic step.
type Synthesizer struct {
	runner  *sandbox.Runner
	clock   clock.Clock
	journal Journal // nil = in-memory only

	mu       sync.Mutex
	executed map[string]*ExecutedAction
	stack    []string // Completed action ids in execution order
}

// New creates a Synthesizer. journal may be nil.
func New(runner *sandbox.Runner, clk clock.Clock, journal Journal) *Synthesizer {
	return &Synthesizer{
		runner:   runner,
		clock:    clk,
		journal:  journal,
		executed: make(map[string]*ExecutedAction),
	}
}

// #endregion

// #region execute

// SynthesizeAndExecute gates, tests, executes and records the observation's
// proposed action. Rejections leave no record: a failed gate or sandbox test
// never produces a stored ExecutedAction. Each successful call appends
// exactly one record and one stack entry.
func (s *Synthesizer) SynthesizeAndExecute(ctx context.Context, obs types.Observation) (ExecutedAction, error) {
	if !sandbox.IsSafeToAutoExecute(obs.Action) {
		log.Printf("[SYNTH] rejected %s: confidence=%s risk=%s", obs.ID, obs.Action.Confidence, obs.Action.Risk)
		return ExecutedAction{}, fmt.Errorf("observation %s: %w", obs.ID, ErrNotSafe)
	}

	result := s.runner.Test(ctx, obs.Action)
	if !result.Success {
		log.Printf("[SYNTH] sandbox rejected %s: %s", obs.ID, result.ErrorMessage)
		return ExecutedAction{}, fmt.Errorf("observation %s: %w: %s", obs.ID, ErrSandboxFailed, result.ErrorMessage)
	}

	rollbackDiff := s.runner.Undo(obs.Action)

	rec := &ExecutedAction{
		ID:              uuid.New().String(),
		ObservationID:   obs.ID,
		Action:          obs.Action,
		State:           StateCompleted,
		ExecutionResult: &result,
		RollbackDiff:    rollbackDiff,
		ExecutedAt:      s.clock.Now(),
	}

	s.mu.Lock()
	s.executed[rec.ID] = rec
	s.stack = append(s.stack, rec.ID)
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.RecordExecution(*rec); err != nil {
			log.Printf("[SYNTH] journal execution failed for %s: %v", rec.ID, err)
		}
	}

	log.Printf("[SYNTH] executed %s for observation %s", rec.ID, obs.ID)
	return *rec, nil
}

// #endregion

// #region rollback

// RollbackLast pops the most recent completed action and transitions it to
// RolledBack. The pop and transition are one atomic step; two concurrent
// calls cannot both claim the same id.
func (s *Synthesizer) RollbackLast() (ExecutedAction, error) {
	s.mu.Lock()
	if len(s.stack) == 0 {
		s.mu.Unlock()
		return ExecutedAction{}, ErrEmptyStack
	}
	id := s.stack[len(s.stack)-1]
	rec, err := s.transitionLocked(id)
	if err != nil {
		s.mu.Unlock()
		return ExecutedAction{}, err
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.mu.Unlock()

	s.journalRollback(rec)
	return rec, nil
}

// RollbackAction rolls back a specific action by id. The id is also removed
// from the rollback stack so the stack never references a RolledBack action.
func (s *Synthesizer) RollbackAction(id string) (ExecutedAction, error) {
	s.mu.Lock()
	rec, err := s.transitionLocked(id)
	if err != nil {
		s.mu.Unlock()
		return ExecutedAction{}, err
	}
	for i, stacked := range s.stack {
		if stacked == id {
			s.stack = append(s.stack[:i], s.stack[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.journalRollback(rec)
	return rec, nil
}

// transitionLocked performs the Completed → RolledBack transition. Caller
// holds s.mu.
func (s *Synthesizer) transitionLocked(id string) (ExecutedAction, error) {
	rec, ok := s.executed[id]
	if !ok {
		return ExecutedAction{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	if rec.State != StateCompleted {
		return ExecutedAction{}, fmt.Errorf("action %s in state %s: %w", id, rec.State, ErrStateViolation)
	}
	rec.State = StateRolledBack
	rec.RolledBackAt = s.clock.Now()
	return *rec, nil
}

func (s *Synthesizer) journalRollback(rec ExecutedAction) {
	if s.journal != nil {
		if err := s.journal.RecordRollback(rec); err != nil {
			log.Printf("[SYNTH] journal rollback failed for %s: %v", rec.ID, err)
		}
	}
	log.Printf("[SYNTH] rolled back %s", rec.ID)
}

// #endregion

// #region accessors

// Get returns the executed action with the given id.
func (s *Synthesizer) Get(id string) (ExecutedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.executed[id]
	if !ok {
		return ExecutedAction{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	return *rec, nil
}

// History returns the not-yet-reverted records in execution order (the
// rollback-stack order), not a separately tracked audit log.
func (s *Synthesizer) History() []ExecutedAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]ExecutedAction, 0, len(s.stack))
	for _, id := range s.stack {
		if rec, ok := s.executed[id]; ok {
			history = append(history, *rec)
		}
	}
	return history
}

// StackDepth reports how many completed actions remain on the rollback stack.
func (s *Synthesizer) StackDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// #endregion
