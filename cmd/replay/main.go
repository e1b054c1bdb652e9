package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cogniflow-ai/go-engine/internal/actionlog"
	"github.com/cogniflow-ai/go-engine/internal/replay"
	"github.com/cogniflow-ai/go-engine/internal/sandbox"
	"github.com/cogniflow-ai/go-engine/internal/types"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the action journal (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	workDir := flag.String("workdir", "./sandbox", "sandbox working directory")
	timeout := flag.Duration("timeout", 30*time.Second, "sandbox test timeout")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/engine.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	runner := sandbox.New(*workDir, *timeout)

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath, runner)
	} else {
		exitCode = runDBMode(*dbPath, runner)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string, runner *sandbox.Runner) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	cfg := replay.DefaultConfig()
	if f.Config != nil {
		cfg = *f.Config
	}
	sim := replay.NewSimulator(cfg, runner)

	if f.Description != "" {
		fmt.Printf("Fixture: %s\n\n", f.Description)
	}
	return printChecks(sim.CheckFixture(f))
}

func printChecks(checks []replay.FixtureCheck) int {
	fmt.Printf("%-20s| %-35s| %s\n", "Observation", "Result", "Match")
	fmt.Printf("%-20s+%-36s+%s\n",
		"--------------------", "------------------------------------", "------")

	failures := 0
	for _, c := range checks {
		match := "OK"
		if !c.Pass {
			match = "DIFF"
			failures++
		}
		fmt.Printf("%-20s| %-35s| %s\n", c.ObservationID, c.Detail, match)
	}

	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n",
		len(checks), len(checks)-failures, failures)
	if failures > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region db-mode

// runDBMode reconstructs observations from the journaled actions, seeds the
// simulator with the journaled outcomes, and re-runs the gate to show
// whether each historical action would still pass today.
func runDBMode(dbPath string, runner *sandbox.Runner) int {
	store, err := actionlog.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	actions, err := store.ListActions(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list actions: %v\n", err)
		return 2
	}
	if len(actions) == 0 {
		fmt.Fprintln(os.Stderr, "no executed actions found")
		return 2
	}

	outcomes, err := store.ListOutcomes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list outcomes: %v\n", err)
		return 2
	}

	sim := replay.NewSimulator(replay.DefaultConfig(), runner)
	for _, o := range outcomes {
		sim.AddOutcome(o.ObservationID, o)
	}

	observations := make([]types.Observation, len(actions))
	for i, rec := range actions {
		observations[i] = types.Observation{
			ID:     rec.ObservationID,
			Action: rec.Action,
		}
	}
	results := sim.BatchReplay(context.Background(), observations)

	fmt.Printf("%-20s| %-9s| %-7s| %-7s| %s\n", "Observation", "Recorded", "Safe", "Quality", "Gate")
	fmt.Printf("%-20s+%-10s+%-8s+%-8s+%s\n",
		"--------------------", "----------", "--------", "--------", "------")

	divergences := 0
	for i, result := range results {
		gatePass := sim.Gate(result)
		// A journaled completed or rolled_back action was gated at execution
		// time; a closed gate now means the decision would diverge.
		if !gatePass {
			divergences++
		}
		fmt.Printf("%-20s| %-9s| %-7v| %-7.2f| %v\n",
			shortID(result.ObservationID), actions[i].State, result.ActionSafe,
			result.QualityScore, gatePass)
	}

	fmt.Printf("\nSummary: %d total, %d would diverge\n", len(results), divergences)
	if divergences > 0 {
		return 1
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 20 {
		return id[:20]
	}
	return id
}

// #endregion db-mode
