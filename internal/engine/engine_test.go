package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cogniflow-ai/go-engine/internal/clock"
	"github.com/cogniflow-ai/go-engine/internal/config"
	"github.com/cogniflow-ai/go-engine/internal/synth"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = "" // in-memory pipeline; journal-backed path covered separately
	eng, err := New(cfg, clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func focusEvents(apps ...string) []types.Event {
	events := make([]types.Event, len(apps))
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, app := range apps {
		events[i] = types.Event{
			Kind:      types.EventAppSwitch,
			AppName:   app,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return events
}

// warmQualityPrior seeds enough accepted outcomes that the replay quality
// score clears the gate threshold (0.5 base + n*0.1).
func warmQualityPrior(eng *Engine, obs types.Observation, n int) {
	for i := 0; i < n; i++ {
		eng.RecordOutcome(obs, types.Outcome{
			ObservationID: obs.ID + "-hist-" + string(rune('a'+i)),
			Accepted:      true,
		})
	}
}

func TestPipelineHighConfidenceNoRisk(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	patterns := eng.MineEvents(focusEvents("Teams", "Gmail", "IDE"))
	if len(patterns) != 0 {
		t.Fatalf("single short history should yield no patterns, got %v", patterns)
	}
	rels := eng.CausalRelationships("Teams")
	if len(rels) != 1 || rels[0].Effect != "Gmail" || rels[0].Strength != 1.0 {
		t.Fatalf("unexpected causal relationships for Teams: %+v", rels)
	}

	obs := types.Observation{
		ID:      "obs-morning-triage",
		Profile: types.ProfileDeveloper,
		Intent:  types.IntentAutomateAction,
		Metrics: map[string]float64{"repeat_count": 8},
		ExpectedOutcome: map[string]float64{
			"time_saved_min": 11,
		},
		Action: types.Action{
			Type:        types.ActionAutomationMacro,
			Description: "open morning triage apps",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
	}

	ranked := eng.Rank([]types.Observation{obs})
	if len(ranked) != 1 || ranked[0].Composite <= 0 {
		t.Fatalf("ranking produced %+v", ranked)
	}

	warmQualityPrior(eng, obs, 2) // quality 0.7 clears the 0.6 gate

	executed, err := eng.Execute(ctx, obs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed.ObservationID != obs.ID {
		t.Fatalf("executed action bound to %q, want %q", executed.ObservationID, obs.ID)
	}
	if executed.ExecutionResult == nil || !executed.ExecutionResult.Success {
		t.Fatalf("expected successful sandbox result, got %+v", executed.ExecutionResult)
	}
	if got := eng.History(); len(got) != 1 {
		t.Fatalf("history length = %d, want 1", len(got))
	}

	rolledBack, err := eng.RollbackLast()
	if err != nil {
		t.Fatalf("RollbackLast: %v", err)
	}
	if rolledBack.ID != executed.ID {
		t.Fatalf("rolled back %q, want %q", rolledBack.ID, executed.ID)
	}
	if rolledBack.RollbackDiff == "" {
		t.Fatal("rollback diff should be populated")
	}
	if got := eng.History(); len(got) != 0 {
		t.Fatalf("history should be empty after rollback, got %d entries", len(got))
	}
}

func TestPipelineLowConfidenceHighRiskRejected(t *testing.T) {
	eng := newTestEngine(t)

	obs := types.Observation{
		ID:      "obs-risky-macro",
		Profile: types.ProfileManager,
		Intent:  types.IntentAutomateAction,
		Action: types.Action{
			Type:        types.ActionAutomationMacro,
			Description: "bulk-delete stale branches",
			Confidence:  types.ConfidenceLow,
			Risk:        types.RiskHigh,
		},
	}
	warmQualityPrior(eng, obs, 3)

	_, err := eng.Execute(context.Background(), obs)
	if !errors.Is(err, ErrGateRejected) {
		t.Fatalf("Execute error = %v, want ErrGateRejected", err)
	}
	if got := eng.History(); len(got) != 0 {
		t.Fatalf("rejected action must leave no record, history has %d entries", len(got))
	}
}

func TestExecuteColdStartFailsGate(t *testing.T) {
	eng := newTestEngine(t)

	// With no outcome history the quality prior sits at 0.5, below the
	// strict 0.6 threshold, so even a fully safe action is held back.
	obs := types.Observation{
		ID:     "obs-cold",
		Intent: types.IntentSuggestShortcut,
		Action: types.Action{
			Type:        types.ActionMicroNudge,
			Description: "suggest keyboard shortcut",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
	}
	if _, err := eng.Execute(context.Background(), obs); !errors.Is(err, ErrGateRejected) {
		t.Fatalf("cold-start quality prior should fail gate, got %v", err)
	}
}

func TestExecuteGatePassButSynthRejectsUnsafe(t *testing.T) {
	eng := newTestEngine(t)

	// Low risk passes the sandbox and the replay gate, but the synthesizer
	// only auto-executes high confidence with zero risk.
	obs := types.Observation{
		ID:     "obs-low-risk-nudge",
		Intent: types.IntentSuggestShortcut,
		Action: types.Action{
			Type:        types.ActionMicroNudge,
			Description: "suggest focus mode",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskLow,
		},
	}
	warmQualityPrior(eng, obs, 3)

	_, err := eng.Execute(context.Background(), obs)
	if !errors.Is(err, synth.ErrNotSafe) {
		t.Fatalf("Execute error = %v, want ErrNotSafe", err)
	}
	if got := eng.History(); len(got) != 0 {
		t.Fatalf("unsafe action must leave no record, history has %d entries", len(got))
	}
}

func TestDetectPatternThroughEngine(t *testing.T) {
	eng := newTestEngine(t)

	obs := types.Observation{
		ID:          "obs-repeated-flow",
		Observation: []string{"Teams", "Gmail", "IDE"},
		Metrics:     map[string]float64{"repeat_count": 8},
	}
	if got := eng.DetectPattern(obs); got != types.PatternWorkflowSequence {
		t.Fatalf("pattern = %s, want %s", got, types.PatternWorkflowSequence)
	}
}

func TestRecordOutcomeFeedsPolicyAndReplay(t *testing.T) {
	eng := newTestEngine(t)

	obs := types.Observation{
		ID:      "obs-feedback",
		Profile: types.ProfileDeveloper,
		Intent:  types.IntentSuggestShortcut,
		Action: types.Action{
			Type:        types.ActionMicroNudge,
			Description: "open log viewer",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
	}
	saved := 11.0
	eng.RecordOutcome(obs, types.Outcome{
		ObservationID:    obs.ID,
		Accepted:         true,
		TimeSavedMinutes: &saved,
	})

	stats := eng.PolicyStats()
	if stats.TotalStates != 1 {
		t.Fatalf("policy table size = %d, want 1", stats.TotalStates)
	}
	// reward = 10 + 0.5*11 = 15.5; the first update moves 0 toward it by alpha.
	want := 0.1 * 15.5
	if diff := stats.AvgValue - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("avg value = %v, want %v", stats.AvgValue, want)
	}

	// Proposed and learned action coincide here, so either policy branch
	// returns the same description.
	if got := eng.SelectAction(obs); got.Description != obs.Action.Description {
		t.Fatalf("SelectAction returned %+v, want learned action", got)
	}
}

func TestEngineWithJournal(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = t.TempDir() + "/engine.db"
	eng, err := New(cfg, clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	obs := types.Observation{
		ID:     "obs-journaled",
		Intent: types.IntentAutomateAction,
		Action: types.Action{
			Type:        types.ActionAutomationMacro,
			Description: "arrange workspace",
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
	}
	warmQualityPrior(eng, obs, 2)

	executed, err := eng.Execute(context.Background(), obs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := eng.RollbackAction(executed.ID); err != nil {
		t.Fatalf("RollbackAction: %v", err)
	}
}
