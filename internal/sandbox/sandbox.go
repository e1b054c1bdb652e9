package sandbox

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region result

// Result is the outcome of one sandboxed test attempt. It is never persisted
// beyond the call unless embedded in an executed-action record.
type Result struct {
	Success         bool    `json:"success"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	DiffLog         string  `json:"diff_log,omitempty"`
}

// #endregion

// #region runner

// Runner dry-runs a candidate action in isolation. The current simulation is
// the seam where a real isolation backend (container, VM, restricted user)
// plugs in; only the success/failure/diff contract is load-bearing.
type Runner struct {
	workDir string
	timeout time.Duration
}

// New creates a Runner rooted at workDir. A zero timeout disables the
// deadline.
func New(workDir string, timeout time.Duration) *Runner {
	return &Runner{workDir: workDir, timeout: timeout}
}

// WorkDir returns the sandbox working directory.
func (r *Runner) WorkDir() string {
	return r.workDir
}

// #endregion

// #region test

// Test simulates isolated execution of the action. AutomationMacro succeeds
// iff risk is at most Low; every other kind succeeds unconditionally in this
// model. A cancelled or expired context resolves to a failed Result so the
// caller's "test fails → nothing recorded" path also covers timeouts.
func (r *Runner) Test(ctx context.Context, action types.Action) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan Result, 1)
	go func() {
		done <- r.simulate(action)
	}()

	select {
	case <-ctx.Done():
	case res := <-done:
		// Both cases can be ready at once; cancellation must win so an
		// expired context never surfaces a successful result.
		if ctx.Err() == nil {
			return res
		}
	}

	log.Printf("[SANDBOX] test cancelled for %s: %v", action.Type, ctx.Err())
	return Result{
		Success:      false,
		ErrorMessage: fmt.Sprintf("sandbox test cancelled: %v", ctx.Err()),
	}
}

// simulate performs the dry run itself.
func (r *Runner) simulate(action types.Action) Result {
	switch action.Type {
	case types.ActionAutomationMacro:
		if action.Risk > types.RiskLow {
			return Result{
				Success:         false,
				ErrorMessage:    "high risk action requires manual approval",
				ExecutionTimeMs: 100,
				DiffLog:         fmt.Sprintf("Would execute: %s", action.Description),
			}
		}
		return Result{
			Success:         true,
			ExecutionTimeMs: 100,
			DiffLog:         fmt.Sprintf("Would execute: %s", action.Description),
		}
	default:
		return Result{
			Success:         true,
			ExecutionTimeMs: 50,
			DiffLog:         fmt.Sprintf("Tested: %s", action.Description),
		}
	}
}

// #endregion

// #region undo

// Undo returns a textual descriptor of the inverse operation. A structured,
// replayable reverse-operation object should replace this text once a real
// isolation backend exists.
func (r *Runner) Undo(action types.Action) string {
	return fmt.Sprintf("Undo action: %s", action.Description)
}

// #endregion

// #region safety

// IsSafeToAutoExecute reports whether the action may run unattended:
// confidence exactly High and risk exactly None. This is deliberately
// stricter than the sandbox pass threshold (risk ≤ Low): testing tolerates
// Low risk, unattended execution does not.
func IsSafeToAutoExecute(action types.Action) bool {
	return action.Confidence == types.ConfidenceHigh && action.Risk == types.RiskNone
}

// #endregion
