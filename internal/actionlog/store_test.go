package actionlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogniflow-ai/go-engine/internal/clock"
	"github.com/cogniflow-ai/go-engine/internal/sandbox"
	"github.com/cogniflow-ai/go-engine/internal/synth"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "actions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func executedAction(id string, at time.Time) synth.ExecutedAction {
	return synth.ExecutedAction{
		ID:            id,
		ObservationID: "obs-" + id,
		Action: types.Action{
			Type:        types.ActionAutomationMacro,
			Description: "open workspace",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
		State:           synth.StateCompleted,
		ExecutionResult: &sandbox.Result{Success: true, ExecutionTimeMs: 100, DiffLog: "Would execute: open workspace"},
		RollbackDiff:    "Undo action: open workspace",
		ExecutedAt:      at,
	}
}

func TestRecordAndGet(t *testing.T) {
	store := newStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := store.RecordExecution(executedAction("a1", at)); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := store.GetAction("a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != synth.StateCompleted {
		t.Fatalf("state = %s, want completed", got.State)
	}
	if got.Action.Confidence != types.ConfidenceHigh || got.Action.Risk != types.RiskNone {
		t.Fatalf("action levels did not round-trip: %+v", got.Action)
	}
	if got.ExecutionResult == nil || !got.ExecutionResult.Success {
		t.Fatal("sandbox result should round-trip")
	}
	if !got.ExecutedAt.Equal(at) {
		t.Fatalf("executed_at = %v, want %v", got.ExecutedAt, at)
	}
	if !got.RolledBackAt.IsZero() {
		t.Fatal("rolled_back_at should be unset")
	}
}

func TestGetUnknownAction(t *testing.T) {
	store := newStore(t)

	_, err := store.GetAction("missing")
	if !errors.Is(err, synth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRollback(t *testing.T) {
	store := newStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	rec := executedAction("a1", at)
	if err := store.RecordExecution(rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	rec.State = synth.StateRolledBack
	rec.RolledBackAt = at.Add(time.Minute)
	if err := store.RecordRollback(rec); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, err := store.GetAction("a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != synth.StateRolledBack {
		t.Fatalf("state = %s, want rolled_back", got.State)
	}
	if !got.RolledBackAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("rolled_back_at = %v", got.RolledBackAt)
	}
}

func TestRecordRollbackUnknownAction(t *testing.T) {
	store := newStore(t)

	rec := executedAction("ghost", time.Now().UTC())
	rec.State = synth.StateRolledBack
	rec.RolledBackAt = time.Now().UTC()
	if err := store.RecordRollback(rec); err == nil {
		t.Fatal("expected error for unjournaled action")
	}
}

func TestListActionsOrderedNewestFirst(t *testing.T) {
	store := newStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3"} {
		if err := store.RecordExecution(executedAction(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	actions, err := store.ListActions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	for i, want := range []string{"a3", "a2", "a1"} {
		if actions[i].ID != want {
			t.Fatalf("actions[%d] = %s, want %s", i, actions[i].ID, want)
		}
	}

	limited, err := store.ListActions(1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "a3" {
		t.Fatalf("limit should keep the newest, got %+v", limited)
	}
}

func TestOutcomeRoundTrip(t *testing.T) {
	store := newStore(t)
	saved := 11.0
	delta := -0.2

	outcome := types.Outcome{
		ObservationID:    "obs-1",
		Accepted:         true,
		TimeSavedMinutes: &saved,
		ErrorRateChange:  &delta,
		Timestamp:        time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.RecordOutcome(outcome); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if err := store.RecordOutcome(types.Outcome{ObservationID: "obs-2", Ignored: true, Timestamp: outcome.Timestamp.Add(time.Hour)}); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	outcomes, err := store.ListOutcomes()
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	first := outcomes[0]
	if !first.Accepted || first.TimeSavedMinutes == nil || *first.TimeSavedMinutes != 11 {
		t.Fatalf("outcome did not round-trip: %+v", first)
	}
	if first.ErrorRateChange == nil || *first.ErrorRateChange != -0.2 {
		t.Fatalf("error rate change did not round-trip: %+v", first)
	}
}

func TestStoreActsAsSynthJournal(t *testing.T) {
	store := newStore(t)
	fake := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	s := synth.New(sandbox.New(t.TempDir(), 0), fake, store)

	obs := types.Observation{
		ID:      "obs-1",
		Profile: types.ProfileDeveloper,
		Intent:  types.IntentAutomateAction,
		Action: types.Action{
			Type:        types.ActionAutomationMacro,
			Description: "open workspace",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
	}

	rec, err := s.SynthesizeAndExecute(context.Background(), obs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	journaled, err := store.GetAction(rec.ID)
	if err != nil {
		t.Fatalf("journaled action missing: %v", err)
	}
	if journaled.State != synth.StateCompleted {
		t.Fatalf("journaled state = %s", journaled.State)
	}

	fake.Advance(time.Minute)
	if _, err := s.RollbackLast(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	journaled, err = store.GetAction(rec.ID)
	if err != nil {
		t.Fatalf("get after rollback: %v", err)
	}
	if journaled.State != synth.StateRolledBack || journaled.RolledBackAt.IsZero() {
		t.Fatalf("rollback not journaled: %+v", journaled)
	}
}
