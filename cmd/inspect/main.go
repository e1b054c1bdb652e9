package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cogniflow-ai/go-engine/internal/actionlog"
	"github.com/cogniflow-ai/go-engine/internal/types"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the action journal database")
	last := flag.Int("last", 20, "show N most recent executed actions")
	actionID := flag.String("action", "", "show single action detail")
	outcomes := flag.Bool("outcomes", false, "list recorded outcomes instead of actions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/engine.db [--last N] [--action id] [--outcomes] [--json]")
		os.Exit(2)
	}

	store, err := actionlog.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *actionID != "":
		err = runDetailMode(store, *actionID, *jsonOut)
	case *outcomes:
		err = runOutcomeMode(store, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *actionlog.Store, last int, jsonOut bool) error {
	actions, err := store.ListActions(last)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Fprintln(os.Stderr, "no executed actions found")
		return nil
	}

	if jsonOut {
		return printJSON(actions)
	}

	fmt.Printf("%-10s  %-14s  %-22s  %-11s  %-6s  %s\n",
		"Action", "Observation", "Type", "State", "Risk", "Executed")
	fmt.Printf("%-10s+-%-14s+-%-22s+-%-11s+-%-6s+-%s\n",
		"----------", "--------------", "----------------------", "-----------", "------", "--------------------")
	for _, rec := range actions {
		fmt.Printf("%-10s  %-14s  %-22s  %-11s  %-6s  %s\n",
			shortID(rec.ID),
			shortID(rec.ObservationID),
			rec.Action.Type,
			rec.State,
			rec.Action.Risk,
			rec.ExecutedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *actionlog.Store, id string, jsonOut bool) error {
	rec, err := store.GetAction(id)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(rec)
	}

	fmt.Printf("Action:       %s\n", rec.ID)
	fmt.Printf("Observation:  %s\n", rec.ObservationID)
	fmt.Printf("Type:         %s\n", rec.Action.Type)
	fmt.Printf("Description:  %s\n", rec.Action.Description)
	fmt.Printf("Confidence:   %s\n", rec.Action.Confidence)
	fmt.Printf("Risk:         %s\n", rec.Action.Risk)
	fmt.Printf("State:        %s\n", rec.State)
	fmt.Printf("Executed:     %s\n", rec.ExecutedAt.Format("2006-01-02T15:04:05Z"))
	if !rec.RolledBackAt.IsZero() {
		fmt.Printf("Rolled back:  %s\n", rec.RolledBackAt.Format("2006-01-02T15:04:05Z"))
	}
	if rec.RollbackDiff != "" {
		fmt.Printf("Rollback:     %s\n", rec.RollbackDiff)
	}
	if rec.ExecutionResult != nil {
		fmt.Printf("\nSandbox result:\n")
		fmt.Printf("  Success:   %v\n", rec.ExecutionResult.Success)
		fmt.Printf("  Time (ms): %d\n", rec.ExecutionResult.ExecutionTimeMs)
		if rec.ExecutionResult.ErrorMessage != "" {
			fmt.Printf("  Error:     %s\n", rec.ExecutionResult.ErrorMessage)
		}
		if rec.ExecutionResult.DiffLog != "" {
			fmt.Printf("  Diff:      %s\n", rec.ExecutionResult.DiffLog)
		}
	}
	return nil
}

// #endregion detail-mode

// #region outcome-mode

func runOutcomeMode(store *actionlog.Store, jsonOut bool) error {
	rows, err := store.ListOutcomes()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no outcomes found")
		return nil
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-14s  %-10s  %10s  %s\n", "Observation", "Result", "Saved(min)", "Recorded")
	for _, o := range rows {
		saved := "—"
		if o.TimeSavedMinutes != nil {
			saved = fmt.Sprintf("%.1f", *o.TimeSavedMinutes)
		}
		fmt.Printf("%-14s  %-10s  %10s  %s\n",
			shortID(o.ObservationID), disposition(o), saved,
			o.Timestamp.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func disposition(o types.Outcome) string {
	switch {
	case o.Accepted:
		return "accepted"
	case o.Ignored:
		return "ignored"
	case o.Modified:
		return "modified"
	}
	return "none"
}

// #endregion outcome-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
