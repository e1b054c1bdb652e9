package policy

import (
	"math"
	"testing"
	"time"

	"github.com/cogniflow-ai/go-engine/internal/types"
)

func observation(intent types.Intent, profile types.UserProfile, desc string) types.Observation {
	return types.Observation{
		ID:      "obs-1",
		Profile: profile,
		Intent:  intent,
		Action: types.Action{
			Type:        types.ActionAutomationMacro,
			Description: desc,
			Confidence:  types.ConfidenceHigh,
			Risk:        types.RiskNone,
		},
		Timestamp: time.Now(),
	}
}

func acceptedOutcome(timeSaved *float64) types.Outcome {
	return types.Outcome{
		ObservationID: "obs-1",
		Accepted:      true,
		TimeSavedMinutes: timeSaved,
		Timestamp:     time.Now(),
	}
}

func TestUpdateMovingAverage(t *testing.T) {
	p := New(DefaultConfig())
	obs := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "macro")

	// α=0.1, reward 10 (accepted, no time saved): 0 + 0.1·(10−0) = 1.0.
	p.Update(obs, acceptedOutcome(nil))
	entry, ok := p.Entry(StateKey(obs))
	if !ok {
		t.Fatal("entry should exist after update")
	}
	if math.Abs(entry.Value-1.0) > 1e-9 {
		t.Fatalf("value after first update = %v, want 1.0", entry.Value)
	}
	if entry.VisitCount != 1 {
		t.Fatalf("visit count = %d, want 1", entry.VisitCount)
	}

	// Second identical update: 1.0 + 0.1·(10−1.0) = 1.9.
	p.Update(obs, acceptedOutcome(nil))
	entry, _ = p.Entry(StateKey(obs))
	if math.Abs(entry.Value-1.9) > 1e-9 {
		t.Fatalf("value after second update = %v, want 1.9", entry.Value)
	}
	if entry.VisitCount != 2 {
		t.Fatalf("visit count = %d, want 2", entry.VisitCount)
	}
}

func TestRewardComponents(t *testing.T) {
	negative := -0.2
	eleven := 11.0

	cases := []struct {
		name    string
		outcome types.Outcome
		want    float64
	}{
		{"accepted", types.Outcome{Accepted: true}, 10},
		{"ignored", types.Outcome{Ignored: true}, -2},
		{"accepted with time saved", types.Outcome{Accepted: true, TimeSavedMinutes: &eleven}, 15.5},
		{"accepted with error drop", types.Outcome{Accepted: true, ErrorRateChange: &negative}, 15},
		{"neither accepted nor ignored", types.Outcome{Modified: true}, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := computeReward(c.outcome); math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("reward = %v, want %v", got, c.want)
			}
		})
	}
}

func TestStateKeyCollision(t *testing.T) {
	p := New(DefaultConfig())

	// Two distinct observations sharing intent and profile collide into one
	// entry by design.
	a := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "macro a")
	b := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "macro b")
	b.ID = "obs-2"

	p.Update(a, acceptedOutcome(nil))
	p.Update(b, acceptedOutcome(nil))

	if got := p.Stats().TotalStates; got != 1 {
		t.Fatalf("total states = %d, want 1 (coarse key collides)", got)
	}

	c := observation(types.IntentMoodIntervention, types.ProfileDeveloper, "nudge")
	p.Update(c, acceptedOutcome(nil))
	if got := p.Stats().TotalStates; got != 2 {
		t.Fatalf("total states = %d, want 2 after distinct intent", got)
	}
}

func TestSelectExplorationKeepsProposedAction(t *testing.T) {
	// rng below epsilon: exploration means not overriding the proposal.
	p := NewWithRand(DefaultConfig(), func() float64 { return 0.0 })

	learned := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "learned macro")
	p.Update(learned, acceptedOutcome(nil))

	proposed := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "fresh proposal")
	selected := p.Select(proposed)
	if selected.Description != "fresh proposal" {
		t.Fatalf("exploration should keep the proposed action, got %q", selected.Description)
	}
}

func TestSelectExploitationReturnsBestKnown(t *testing.T) {
	p := NewWithRand(DefaultConfig(), func() float64 { return 0.99 })

	learned := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "learned macro")
	p.Update(learned, acceptedOutcome(nil))

	proposed := observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "fresh proposal")
	selected := p.Select(proposed)
	if selected.Description != "learned macro" {
		t.Fatalf("exploitation should return the best-known action, got %q", selected.Description)
	}
}

func TestSelectUnseenKeyFallsBackToProposal(t *testing.T) {
	p := NewWithRand(DefaultConfig(), func() float64 { return 0.99 })

	proposed := observation(types.IntentDetectPattern, types.ProfileStudent, "proposal")
	selected := p.Select(proposed)
	if selected.Description != "proposal" {
		t.Fatalf("unseen key should fall back to the proposal, got %q", selected.Description)
	}
}

func TestStats(t *testing.T) {
	p := New(DefaultConfig())

	stats := p.Stats()
	if stats.TotalStates != 0 || stats.AvgValue != 0 {
		t.Fatalf("empty table stats = %+v", stats)
	}
	if stats.LearningRate != 0.1 || stats.Epsilon != 0.1 {
		t.Fatalf("config not reflected in stats: %+v", stats)
	}

	p.Update(observation(types.IntentSuggestShortcut, types.ProfileDeveloper, "a"), acceptedOutcome(nil))
	p.Update(observation(types.IntentAutomateAction, types.ProfileManager, "b"), types.Outcome{Ignored: true})

	stats = p.Stats()
	if stats.TotalStates != 2 {
		t.Fatalf("total states = %d, want 2", stats.TotalStates)
	}
	// Entries hold 1.0 and −0.2; average 0.4.
	if math.Abs(stats.AvgValue-0.4) > 1e-9 {
		t.Fatalf("avg value = %v, want 0.4", stats.AvgValue)
	}
}
