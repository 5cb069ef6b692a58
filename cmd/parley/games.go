package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parley-sim/parley/internal/domain"
)

func newGamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games [name]",
		Short: "List builtin games, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listGames(cmd)
				return nil
			}
			return showGame(cmd, args[0])
		},
	}
	return cmd
}

func listGames(cmd *cobra.Command) {
	cmd.Println("builtin games:")
	for _, g := range domain.BuiltinGames() {
		var issues []string
		for _, is := range g.Issues {
			issues = append(issues, fmt.Sprintf("%s x%d", is.Name, is.Quantity))
		}
		cmd.Printf("  %-16s %s (%s)\n", g.Name, g.Description, strings.Join(issues, ", "))
	}
}

func showGame(cmd *cobra.Command, name string) error {
	g, ok := domain.BuiltinGame(name)
	if !ok {
		var err error
		g, err = domain.LoadGame(name)
		if err != nil {
			return fmt.Errorf("no builtin game %q and no readable config at that path", name)
		}
	}

	cmd.Printf("%s — %s\n\n", g.Name, g.Description)
	cmd.Printf("%-12s %8s %12s %12s\n", "issue", "quantity", "agent value", "human value")
	for _, is := range g.Issues {
		cmd.Printf("%-12s %8d %12.1f %12.1f\n",
			is.Name, is.Quantity, g.AgentUtility.Values[is.Name], g.HumanUtility.Values[is.Name])
	}
	cmd.Println()
	if g.Rules.HasDeadline() {
		cmd.Printf("deadline: %ds, ", g.Rules.DeadlineSeconds)
	} else {
		cmd.Printf("deadline: none, ")
	}
	cmd.Printf("partial offers: %v, formal accept required: %v\n",
		g.Rules.AllowPartial, g.Rules.RequireFormalAccept)
	return nil
}
