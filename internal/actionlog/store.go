package actionlog

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cogniflow-ai/go-engine/internal/sandbox"
	"github.com/cogniflow-ai/go-engine/internal/synth"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS executed_actions (
	action_id       TEXT PRIMARY KEY,
	observation_id  TEXT NOT NULL,
	action_type     TEXT NOT NULL,
	description     TEXT NOT NULL,
	confidence      TEXT NOT NULL,
	risk            TEXT NOT NULL,
	state           TEXT NOT NULL,
	sandbox_json    TEXT,
	rollback_diff   TEXT,
	executed_at     TEXT NOT NULL,
	rolled_back_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_executed_actions_time
ON executed_actions(executed_at);

CREATE TABLE IF NOT EXISTS outcomes (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	observation_id   TEXT NOT NULL,
	accepted         INTEGER NOT NULL DEFAULT 0,
	ignored          INTEGER NOT NULL DEFAULT 0,
	modified         INTEGER NOT NULL DEFAULT 0,
	time_saved_min   REAL,
	error_rate_delta REAL,
	recorded_at      TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct

// Store is the durable journal of executed actions and recorded outcomes. It
// implements synth.Journal; the synthesizer's in-memory state machine stays
// authoritative, the journal is the audit surface read by tooling.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region record-execution

// RecordExecution appends one executed-action row.
func (s *Store) RecordExecution(rec synth.ExecutedAction) error {
	var sandboxJSON interface{}
	if rec.ExecutionResult != nil {
		b, err := json.Marshal(rec.ExecutionResult)
		if err != nil {
			return fmt.Errorf("marshal sandbox result: %w", err)
		}
		sandboxJSON = string(b)
	}

	_, err := s.db.Exec(
		`INSERT INTO executed_actions
		 (action_id, observation_id, action_type, description, confidence, risk,
		  state, sandbox_json, rollback_diff, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ObservationID,
		string(rec.Action.Type),
		rec.Action.Description,
		rec.Action.Confidence.String(),
		rec.Action.Risk.String(),
		string(rec.State),
		sandboxJSON,
		nullIfEmpty(rec.RollbackDiff),
		rec.ExecutedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// #endregion record-execution

// #region record-rollback

// RecordRollback marks an existing row rolled back.
func (s *Store) RecordRollback(rec synth.ExecutedAction) error {
	res, err := s.db.Exec(
		`UPDATE executed_actions SET state = ?, rolled_back_at = ? WHERE action_id = ?`,
		string(rec.State),
		rec.RolledBackAt.Format(time.RFC3339Nano),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update rollback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("action %s not journaled", rec.ID)
	}
	return nil
}

// #endregion record-rollback

// #region record-outcome

// RecordOutcome appends one outcome row.
func (s *Store) RecordOutcome(outcome types.Outcome) error {
	_, err := s.db.Exec(
		`INSERT INTO outcomes
		 (observation_id, accepted, ignored, modified, time_saved_min, error_rate_delta, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		outcome.ObservationID,
		boolToInt(outcome.Accepted),
		boolToInt(outcome.Ignored),
		boolToInt(outcome.Modified),
		floatPtr(outcome.TimeSavedMinutes),
		floatPtr(outcome.ErrorRateChange),
		outcome.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// #endregion record-outcome

// #region list-actions

// ListActions returns the most recent executed actions, newest first,
// ordered by execution timestamp then id so listings never depend on
// incidental row order. A non-positive limit returns everything.
func (s *Store) ListActions(limit int) ([]synth.ExecutedAction, error) {
	if limit <= 0 {
		limit = -1 // no LIMIT
	}
	rows, err := s.db.Query(
		`SELECT action_id, observation_id, action_type, description, confidence, risk,
		        state, sandbox_json, rollback_diff, executed_at, rolled_back_at
		 FROM executed_actions
		 ORDER BY executed_at DESC, action_id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var actions []synth.ExecutedAction
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, rec)
	}
	return actions, rows.Err()
}

// GetAction returns a single journaled action by id.
func (s *Store) GetAction(id string) (synth.ExecutedAction, error) {
	rows, err := s.db.Query(
		`SELECT action_id, observation_id, action_type, description, confidence, risk,
		        state, sandbox_json, rollback_diff, executed_at, rolled_back_at
		 FROM executed_actions WHERE action_id = ?`, id,
	)
	if err != nil {
		return synth.ExecutedAction{}, fmt.Errorf("query action: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return synth.ExecutedAction{}, err
		}
		return synth.ExecutedAction{}, fmt.Errorf("action %s: %w", id, synth.ErrNotFound)
	}
	return scanAction(rows)
}

func scanAction(rows *sql.Rows) (synth.ExecutedAction, error) {
	var rec synth.ExecutedAction
	var confidence, risk, state, executedAt string
	var sandboxJSON, rollbackDiff, rolledBackAt sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.ObservationID, (*string)(&rec.Action.Type), &rec.Action.Description,
		&confidence, &risk, &state, &sandboxJSON, &rollbackDiff, &executedAt, &rolledBackAt,
	)
	if err != nil {
		return synth.ExecutedAction{}, fmt.Errorf("scan action: %w", err)
	}

	if err := rec.Action.Confidence.UnmarshalText([]byte(confidence)); err != nil {
		return synth.ExecutedAction{}, err
	}
	if err := rec.Action.Risk.UnmarshalText([]byte(risk)); err != nil {
		return synth.ExecutedAction{}, err
	}
	rec.State = synth.ActionState(state)

	if sandboxJSON.Valid {
		var result sandbox.Result
		if err := json.Unmarshal([]byte(sandboxJSON.String), &result); err != nil {
			return synth.ExecutedAction{}, fmt.Errorf("unmarshal sandbox result: %w", err)
		}
		rec.ExecutionResult = &result
	}
	if rollbackDiff.Valid {
		rec.RollbackDiff = rollbackDiff.String
	}

	rec.ExecutedAt, err = time.Parse(time.RFC3339Nano, executedAt)
	if err != nil {
		return synth.ExecutedAction{}, fmt.Errorf("parse executed_at: %w", err)
	}
	if rolledBackAt.Valid {
		rec.RolledBackAt, err = time.Parse(time.RFC3339Nano, rolledBackAt.String)
		if err != nil {
			return synth.ExecutedAction{}, fmt.Errorf("parse rolled_back_at: %w", err)
		}
	}
	return rec, nil
}

// #endregion list-actions

// #region list-outcomes

// ListOutcomes returns all recorded outcomes, oldest first.
func (s *Store) ListOutcomes() ([]types.Outcome, error) {
	rows, err := s.db.Query(
		`SELECT observation_id, accepted, ignored, modified, time_saved_min, error_rate_delta, recorded_at
		 FROM outcomes ORDER BY recorded_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []types.Outcome
	for rows.Next() {
		var o types.Outcome
		var accepted, ignoredFlag, modified int
		var timeSaved, errDelta sql.NullFloat64
		var recordedAt string

		err := rows.Scan(&o.ObservationID, &accepted, &ignoredFlag, &modified, &timeSaved, &errDelta, &recordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Accepted = accepted != 0
		o.Ignored = ignoredFlag != 0
		o.Modified = modified != 0
		if timeSaved.Valid {
			v := timeSaved.Float64
			o.TimeSavedMinutes = &v
		}
		if errDelta.Valid {
			v := errDelta.Float64
			o.ErrorRateChange = &v
		}
		o.Timestamp, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// #endregion list-outcomes

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func floatPtr(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// #endregion helpers
