package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
	"github.com/parley-sim/parley/internal/eventlog"
	"github.com/parley-sim/parley/internal/ui"
)

func newReplayCmd() *cobra.Command {
	var (
		delayMS     int
		realTime    bool
		summaryOnly bool
	)

	cmd := &cobra.Command{
		Use:   "replay <session.jsonl>",
		Short: "Replay a logged negotiation session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], delayMS, realTime, summaryOnly)
		},
	}

	cmd.Flags().IntVar(&delayMS, "delay-ms", 0, "fixed delay between events")
	cmd.Flags().BoolVar(&realTime, "realtime", false, "replay with the original time gaps")
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "print the session summary only")
	return cmd
}

func runReplay(cmd *cobra.Command, path string, delayMS int, realTime, summaryOnly bool) error {
	r, err := eventlog.Load(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if summaryOnly {
		printReplaySummary(cmd, r)
		return nil
	}

	game := replayGame(r)
	fmt.Fprintf(out, "session %s — %d events\n", r.SessionID(), r.EventCount())
	r.Run(func(ev event.Event, _ int) bool {
		if line := ui.FormatEvent(game, ev); line != "" {
			fmt.Fprintln(out, line)
		}
		return true
	}, eventlog.Pacing{DelayMS: delayMS, RealTime: realTime})

	printReplaySummary(cmd, r)
	return nil
}

func printReplaySummary(cmd *cobra.Command, r *eventlog.Replay) {
	s := r.Summarize()
	cmd.Printf("\nsession %s: %d events, offers you/agent %d/%d, messages you/agent %d/%d\n",
		s.SessionID, s.TotalEvents, s.HumanOffers, s.AgentOffers, s.HumanMessages, s.AgentMessages)
	if s.Result != nil {
		cmd.Printf("outcome: %s (utility you %.1f, agent %.1f)\n",
			s.Result.Outcome, s.Result.HumanUtility, s.Result.AgentUtility)
	}
}

// replayGame reconstructs enough of a GameSpec from the logged config to
// render offers. Logs without a game_config record fall back to issue
// names and quantities inferred from the offers themselves.
func replayGame(r *eventlog.Replay) *domain.GameSpec {
	name := "replay"
	var issues []domain.Issue

	if cfg := r.GameConfig(); cfg != nil {
		if n, ok := cfg["name"].(string); ok && n != "" {
			name = n
		}
		if raw, ok := cfg["issues"].([]any); ok {
			for _, item := range raw {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				in, _ := m["name"].(string)
				qty := 0
				if q, ok := m["quantity"].(float64); ok {
					qty = int(q)
				}
				if in != "" && qty > 0 {
					issues = append(issues, domain.Issue{Name: in, Quantity: qty})
				}
			}
		}
	}
	if len(issues) == 0 {
		issues = inferIssues(r)
	}

	zero := make(map[string]float64, len(issues))
	for _, is := range issues {
		zero[is.Name] = 0
	}
	game, err := domain.NewGameSpec(name, "", issues, zero, zero, domain.DefaultRules())
	if err != nil {
		// Degenerate log with no offers at all; messages still render.
		fallback := []domain.Issue{{Name: "items", Quantity: 1}}
		game, _ = domain.NewGameSpec(name, "", fallback,
			map[string]float64{"items": 0}, map[string]float64{"items": 0}, domain.DefaultRules())
	}
	return game
}

// inferIssues derives issue names and quantities from the first offer
// mentioning each issue; a tuple's sum is the issue quantity.
func inferIssues(r *eventlog.Replay) []domain.Issue {
	seen := make(map[string]bool)
	var issues []domain.Issue
	for _, entry := range r.Offers() {
		for name, tuple := range entry.Offer {
			if seen[name] || tuple == nil {
				continue
			}
			qty := 0
			for _, n := range tuple {
				qty += n
			}
			if qty > 0 {
				seen[name] = true
				issues = append(issues, domain.Issue{Name: name, Quantity: qty})
			}
		}
	}
	return issues
}
