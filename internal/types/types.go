package types

// #region imports
import (
	"fmt"
	"time"
)

// #endregion

// #region intent

// Intent classifies the purpose of a proposed intervention.
type Intent string

const (
	IntentDetectPattern    Intent = "detect_pattern"
	IntentSuggestShortcut  Intent = "suggest_shortcut"
	IntentAutomateAction   Intent = "automate_action"
	IntentMoodIntervention Intent = "mood_intervention"
)

// #endregion

// #region pattern-type

// PatternType is an archetype observed in user behavior.
type PatternType string

const (
	PatternWorkflowSequence       PatternType = "workflow_sequence"
	PatternDebuggingLoop          PatternType = "debugging_loop"
	PatternContextSwitching       PatternType = "context_switching"
	PatternTimingVariance         PatternType = "timing_variance"
	PatternRepetitiveGesture      PatternType = "repetitive_gesture"
	PatternAttentionFragmentation PatternType = "attention_fragmentation"
)

// #endregion

// #region action-type

// ActionType identifies the kind of intervention an Action performs.
type ActionType string

const (
	ActionAutomationMacro         ActionType = "automation_macro"
	ActionMicroNudge              ActionType = "micro_nudge"
	ActionScheduleChange          ActionType = "schedule_change"
	ActionSandboxPatch            ActionType = "sandbox_patch"
	ActionPreemptiveDebugAssist   ActionType = "preemptive_debug_assistant"
	ActionFocusMode               ActionType = "focus_mode"
	ActionZenMode                 ActionType = "zen_mode"
	ActionSystemHygiene           ActionType = "system_hygiene"
)

// #endregion

// #region confidence

// Confidence is an ordered execution-confidence level: Low < Medium < High.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

var confidenceNames = map[Confidence]string{
	ConfidenceLow:    "low",
	ConfidenceMedium: "medium",
	ConfidenceHigh:   "high",
}

func (c Confidence) String() string {
	if s, ok := confidenceNames[c]; ok {
		return s
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler so JSON/YAML carry the name.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the lowercase level name.
func (c *Confidence) UnmarshalText(b []byte) error {
	for lvl, name := range confidenceNames {
		if name == string(b) {
			*c = lvl
			return nil
		}
	}
	return fmt.Errorf("unknown confidence %q", string(b))
}

// #endregion

// #region risk

// RiskCategory is an ordered risk level: None < Low < High.
type RiskCategory int

const (
	RiskNone RiskCategory = iota
	RiskLow
	RiskHigh
)

var riskNames = map[RiskCategory]string{
	RiskNone: "none",
	RiskLow:  "low",
	RiskHigh: "high",
}

func (r RiskCategory) String() string {
	if s, ok := riskNames[r]; ok {
		return s
	}
	return fmt.Sprintf("risk(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler so JSON/YAML carry the name.
func (r RiskCategory) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses the lowercase category name.
func (r *RiskCategory) UnmarshalText(b []byte) error {
	for cat, name := range riskNames {
		if name == string(b) {
			*r = cat
			return nil
		}
	}
	return fmt.Errorf("unknown risk category %q", string(b))
}

// #endregion

// #region profile

// UserProfile tags the broad occupation cohort an observation came from.
type UserProfile string

const (
	ProfileDeveloper  UserProfile = "developer"
	ProfileAccountant UserProfile = "accountant"
	ProfileDesigner   UserProfile = "designer"
	ProfileManager    UserProfile = "manager"
	ProfileStudent    UserProfile = "student"
	ProfileOther      UserProfile = "other"
)

// #endregion

// #region action

// Action is an immutable intervention proposal.
type Action struct {
	Type        ActionType   `json:"action_type"`
	Description string       `json:"description"`
	Confidence  Confidence   `json:"confidence"`
	Risk        RiskCategory `json:"risk"`
}

// #endregion

// #region observation

// Observation is a captured behavioral unit proposing an action with
// expected benefit. Immutable once created; produced by the event-capture
// collaborator.
type Observation struct {
	ID              string             `json:"id"`
	Profile         UserProfile        `json:"profile"`
	Observation     []string           `json:"observation"` // ordered app/step tokens
	Metrics         map[string]float64 `json:"metrics"`
	Intent          Intent             `json:"intent"`
	Action          Action             `json:"action"`
	ExpectedOutcome map[string]float64 `json:"expected_outcome"`
	Source          string             `json:"source"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Metric returns a named metric, defaulting to 0 when absent.
func (o Observation) Metric(key string) float64 {
	return o.Metrics[key]
}

// Expected returns a named expected-outcome value, defaulting to 0 when absent.
func (o Observation) Expected(key string) float64 {
	return o.ExpectedOutcome[key]
}

// #endregion

// #region outcome

// Outcome records how a user responded to a shown suggestion. Produced by
// the suggestion-response collaborator after the fact.
type Outcome struct {
	ObservationID    string    `json:"observation_id"`
	Accepted         bool      `json:"accepted"`
	Ignored          bool      `json:"ignored"`
	Modified         bool      `json:"modified"`
	TimeSavedMinutes *float64  `json:"time_saved_minutes,omitempty"`
	ErrorRateChange  *float64  `json:"error_rate_change,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// #endregion

// #region event

// EventKind classifies a raw OS event.
type EventKind string

const (
	EventAppLaunch   EventKind = "app_launch"
	EventAppSwitch   EventKind = "app_switch"
	EventWindowFocus EventKind = "window_focus"
	EventKeystroke   EventKind = "keystroke"
	EventIdle        EventKind = "idle"
)

// Event is a single raw OS event as delivered by the capture collaborator.
type Event struct {
	Kind        EventKind         `json:"kind"`
	AppName     string            `json:"app_name"`
	WindowTitle string            `json:"window_title,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FocusEvent reports whether the event contributes to an app-focus sequence.
func (e Event) FocusEvent() bool {
	switch e.Kind {
	case EventAppLaunch, EventAppSwitch, EventWindowFocus:
		return true
	}
	return false
}

// #endregion

// #region helpers

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion
