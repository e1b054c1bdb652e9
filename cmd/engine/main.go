package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cogniflow-ai/go-engine/internal/clock"
	"github.com/cogniflow-ai/go-engine/internal/config"
	"github.com/cogniflow-ai/go-engine/internal/engine"
	"github.com/cogniflow-ai/go-engine/internal/synth"
	"github.com/cogniflow-ai/go-engine/internal/types"
)

// #region main
func main() {
	cfgPath := envOr("ENGINE_CONFIG", "")
	dbPath := envOr("ENGINE_DB", "")

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	eng, err := engine.New(cfg, clock.System{})
	if err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	defer eng.Close()

	fmt.Println("Action engine ready.")
	if cfg.DBPath != "" {
		fmt.Printf("  journal: %s\n", cfg.DBPath)
	}
	fmt.Println("Commands: mine <a,b,c> | replay <json> | exec <json> | outcome <obs-id> <accepted|ignored|modified> [minutes] | rollback [id] | history | stats | quit")

	// Observations seen this session, so outcome commands can reference them.
	seen := map[string]types.Observation{}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "quit", "exit":
			return

		case "mine":
			runMine(eng, rest)

		case "replay":
			obs, err := parseObservation(rest)
			if err != nil {
				log.Printf("parse observation: %v", err)
				continue
			}
			seen[obs.ID] = obs
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			result := eng.Replay(ctx, obs)
			cancel()
			fmt.Printf("[%s] pattern=%s safe=%v quality=%.2f gate=%v errors=%v warnings=%v\n",
				obs.ID, eng.DetectPattern(obs), result.ActionSafe, result.QualityScore,
				eng.Gate(result), result.Errors, result.Warnings)

		case "exec":
			obs, err := parseObservation(rest)
			if err != nil {
				log.Printf("parse observation: %v", err)
				continue
			}
			seen[obs.ID] = obs
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			executed, err := eng.Execute(ctx, obs)
			cancel()
			if err != nil {
				log.Printf("execute %s: %v", obs.ID, err)
				continue
			}
			fmt.Printf("[%s] executed action=%s state=%s at=%s\n",
				obs.ID, executed.ID, executed.State, executed.ExecutedAt.Format(time.RFC3339))

		case "outcome":
			runOutcome(eng, seen, rest)

		case "rollback":
			rolled, err := rollback(eng, rest)
			if err != nil {
				log.Printf("rollback: %v", err)
				continue
			}
			fmt.Printf("rolled back action=%s obs=%s\n", rolled.ID, rolled.ObservationID)

		case "history":
			for _, rec := range eng.History() {
				fmt.Printf("  %s  %-22s  %-9s  %s\n",
					rec.ID, rec.Action.Type, rec.State, rec.Action.Description)
			}

		case "stats":
			stats := eng.PolicyStats()
			fmt.Printf("policy: states=%d avg_value=%.4f alpha=%.2f epsilon=%.2f\n",
				stats.TotalStates, stats.AvgValue, stats.LearningRate, stats.Epsilon)

		default:
			log.Printf("unknown command %q", cmd)
		}
	}
}

// #endregion main

// #region commands

func runMine(eng *engine.Engine, rest string) {
	apps := strings.Split(rest, ",")
	now := time.Now().UTC()
	events := make([]types.Event, 0, len(apps))
	for i, app := range apps {
		app = strings.TrimSpace(app)
		if app == "" {
			continue
		}
		events = append(events, types.Event{
			Kind:      types.EventAppSwitch,
			AppName:   app,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}
	patterns := eng.MineEvents(events)
	fmt.Printf("patterns: %v\n", patterns)
	for _, e := range events {
		for _, rel := range eng.CausalRelationships(e.AppName) {
			fmt.Printf("  %s -> %s (%.2f)\n", rel.Cause, rel.Effect, rel.Strength)
		}
		break // adjacency from the first app is enough for a quick look
	}
}

func runOutcome(eng *engine.Engine, seen map[string]types.Observation, rest string) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		log.Printf("usage: outcome <obs-id> <accepted|ignored|modified> [minutes]")
		return
	}
	obs, ok := seen[fields[0]]
	if !ok {
		log.Printf("unknown observation %q (replay or exec it first)", fields[0])
		return
	}
	outcome := types.Outcome{
		ObservationID: fields[0],
		Timestamp:     time.Now().UTC(),
	}
	switch fields[1] {
	case "accepted":
		outcome.Accepted = true
	case "ignored":
		outcome.Ignored = true
	case "modified":
		outcome.Modified = true
	default:
		log.Printf("unknown disposition %q", fields[1])
		return
	}
	if len(fields) > 2 {
		minutes, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			log.Printf("parse minutes: %v", err)
			return
		}
		outcome.TimeSavedMinutes = &minutes
	}
	eng.RecordOutcome(obs, outcome)
	fmt.Printf("recorded outcome for %s\n", fields[0])
}

func rollback(eng *engine.Engine, rest string) (synth.ExecutedAction, error) {
	if rest == "" {
		return eng.RollbackLast()
	}
	return eng.RollbackAction(rest)
}

// #endregion commands

// #region helpers
func parseObservation(raw string) (types.Observation, error) {
	var obs types.Observation
	if err := json.Unmarshal([]byte(raw), &obs); err != nil {
		return types.Observation{}, err
	}
	if obs.ID == "" {
		return types.Observation{}, fmt.Errorf("observation id is required")
	}
	return obs, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
