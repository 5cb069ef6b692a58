package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/parley-sim/parley/internal/agent"
	"github.com/parley-sim/parley/internal/bus"
	"github.com/parley-sim/parley/internal/domain"
	"github.com/parley-sim/parley/internal/event"
	"github.com/parley-sim/parley/internal/eventlog"
	"github.com/parley-sim/parley/internal/negochat"
	"github.com/parley-sim/parley/internal/scheduler"
	"github.com/parley-sim/parley/internal/session"
	"github.com/parley-sim/parley/internal/ui"
)

func newRunCmd() *cobra.Command {
	var (
		gameRef   string
		agentName string
		agentPath string
		strategy  string
		logDir    string
		noLog     bool
		sessionID string
		script    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interactive negotiation against the agent",
		Long: `Starts a negotiation session. You chat and make offers from a prompt;
the agent answers with messages, offers, and expressions. Type 'help'
at the prompt for the command list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNegotiation(cmd, runOptions{
				gameRef:   gameRef,
				agentName: agentName,
				agentPath: agentPath,
				strategy:  strategy,
				logDir:    logDir,
				noLog:     noLog,
				sessionID: sessionID,
				script:    script,
			})
		},
	}

	cmd.Flags().StringVarP(&gameRef, "game", "g", envDefault("PARLEY_GAME", "classic_resource"), "builtin game name or path to a game config file (.yaml/.json)")
	cmd.Flags().StringVar(&agentName, "agent", "negochat", "agent to play against: negochat or simple")
	cmd.Flags().StringVar(&agentPath, "agent-config", "", "path to an agent config file (.yaml)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "agent strategy: aggressive, balanced, or cooperative")
	cmd.Flags().StringVar(&logDir, "log-dir", envDefault("PARLEY_LOG_DIR", "logs"), "directory for session logs")
	cmd.Flags().BoolVar(&noLog, "no-log", false, "disable session logging")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session ID (default: generated)")
	cmd.Flags().StringVar(&script, "script", "", "run prompt commands from a file instead of interactively")
	return cmd
}

// envDefault returns the environment value for key, or fallback when
// unset (the .env file has been loaded by then).
func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type runOptions struct {
	gameRef   string
	agentName string
	agentPath string
	strategy  string
	logDir    string
	noLog     bool
	sessionID string
	script    string
}

func loadGameRef(ref string) (*domain.GameSpec, error) {
	if g, ok := domain.BuiltinGame(ref); ok {
		return g, nil
	}
	if _, err := os.Stat(ref); err == nil {
		return domain.LoadGame(ref)
	}
	var names []string
	for _, g := range domain.BuiltinGames() {
		names = append(names, g.Name)
	}
	return nil, fmt.Errorf("unknown game %q (builtins: %s)", ref, strings.Join(names, ", "))
}

func loadAgentConfig(path, strategy string) (negochat.AgentConfig, error) {
	cfg := negochat.DefaultAgentConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read agent config: %w", err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse agent config %s: %w", path, err)
		}
		cfg = cfg.Normalize()
	}
	if strategy != "" {
		if !negochat.ValidStrategy(strategy) {
			return cfg, fmt.Errorf("unknown strategy %q", strategy)
		}
		cfg.Core.Strategy = negochat.Strategy(strategy)
	}
	return cfg, nil
}

func buildAgent(opts runOptions) (agent.NegotiationAgent, error) {
	switch opts.agentName {
	case "", "negochat":
		cfg, err := loadAgentConfig(opts.agentPath, opts.strategy)
		if err != nil {
			return nil, err
		}
		return negochat.NewAgent(cfg), nil
	case "simple":
		return agent.NewSimpleAgent(agent.DefaultSimpleConfig()), nil
	}
	return nil, fmt.Errorf("unknown agent %q (available: negochat, simple)", opts.agentName)
}

func runNegotiation(cmd *cobra.Command, opts runOptions) error {
	game, err := loadGameRef(opts.gameRef)
	if err != nil {
		return err
	}
	ag, err := buildAgent(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	b := bus.New()
	sess := session.New(game, opts.sessionID)
	rt := agent.NewRuntime(b, sess, ag)

	var logger *eventlog.Logger
	if !opts.noLog {
		logger, err = eventlog.New(opts.logDir, opts.sessionID)
		if err != nil {
			return err
		}
		logger.Attach(b)
		logger.LogGameConfig(gameConfigRecord(game))
		logger.LogMetadata("agent", ag.Description())
		fmt.Fprintf(out, "logging to %s\n", logger.Path())
	}

	// Transcript printer: one line per visible event. Registered after
	// the runtime so the session has applied the event by the time the
	// line prints.
	var done atomic.Bool
	rt.Attach()
	b.Subscribe("transcript", func(ev event.Event) error {
		if line := ui.FormatEvent(game, ev); line != "" {
			fmt.Fprintln(out, line)
		}
		if ev.Type == event.TypeGameEnd {
			done.Store(true)
		}
		return nil
	})

	sched := scheduler.New(b, game.Rules.TimeTickIntervalMS, game.Rules.DeadlineSeconds)
	b.Start(nil)
	sched.Start()
	defer func() {
		sched.Stop()
		b.Stop()
		rt.Detach()
		logResult(logger, sess)
		logger.Close()
	}()

	printGameBanner(out, game)
	if err := rt.Start(); err != nil {
		return err
	}

	if opts.script != "" {
		// Scripted runs have no readline loop to catch ^C; a signal
		// context aborts between commands.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runScript(ctx, out, opts.script, b, sess, game, &done)
	}
	return runPrompt(out, b, sess, game, &done)
}

func printGameBanner(out io.Writer, game *domain.GameSpec) {
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Game: %s\n", game.Name)
	if game.Description != "" {
		fmt.Fprintf(out, "%s\n", game.Description)
	}
	var issues []string
	for _, is := range game.Issues {
		issues = append(issues, fmt.Sprintf("%s x%d", game.DisplayName(is.Name, true), is.Quantity))
	}
	fmt.Fprintf(out, "Issues: %s\n", strings.Join(issues, ", "))
	if game.Rules.HasDeadline() {
		fmt.Fprintf(out, "Deadline: %ds\n", game.Rules.DeadlineSeconds)
	} else {
		fmt.Fprintln(out, "Deadline: none")
	}
	fmt.Fprintln(out, strings.Repeat("=", 50))
}

func gameConfigRecord(game *domain.GameSpec) map[string]any {
	issues := make([]map[string]any, 0, len(game.Issues))
	for _, is := range game.Issues {
		issues = append(issues, map[string]any{"name": is.Name, "quantity": is.Quantity})
	}
	return map[string]any{
		"name":        game.Name,
		"description": game.Description,
		"issues":      issues,
		"deadline_s":  game.Rules.DeadlineSeconds,
	}
}

func logResult(logger *eventlog.Logger, sess *session.Session) {
	if logger == nil {
		return
	}
	outcome := string(sess.State())
	logger.LogResult(outcome, sess.HumanUtility(nil), sess.AgentUtility(nil), sess.CurrentOffer().ToMap())
}

func runPrompt(out io.Writer, b *bus.Bus, sess *session.Session, game *domain.GameSpec, done *atomic.Bool) error {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("say"),
		readline.PcItem("offer"),
		readline.PcItem("accept"),
		readline.PcItem("reject"),
		readline.PcItem("face",
			readline.PcItem("neutral"), readline.PcItem("happy"), readline.PcItem("sad"),
			readline.PcItem("angry"), readline.PcItem("surprised"),
		),
		readline.PcItem("ask"),
		readline.PcItem("tell"),
		readline.PcItem("board"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     "",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("init prompt: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := handleCommand(out, strings.TrimSpace(line), b, sess, game)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit || done.Load() {
			// Let trailing delayed replies (farewell etc.) land before
			// the prompt closes.
			time.Sleep(300 * time.Millisecond)
			return nil
		}
	}
}

func runScript(ctx context.Context, out io.Writer, path string, b *bus.Bus, sess *session.Session, game *domain.GameSpec, done *atomic.Bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Fprintf(out, "you> %s\n", line)
		quit, err := handleCommand(out, line, b, sess, game)
		if err != nil {
			return fmt.Errorf("script line %q: %w", line, err)
		}
		if quit || done.Load() {
			break
		}
		// Pause between commands so delayed agent replies interleave the
		// way they would in a live session.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(500 * time.Millisecond):
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// Drain remaining delayed events before exiting.
	deadline := time.Now().Add(5 * time.Second)
	for b.HasPendingDelayed() && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(bus.PollInterval)
	}
	return nil
}

// handleCommand executes one prompt command. Returns quit=true when the
// user asked to leave.
func handleCommand(out io.Writer, line string, b *bus.Bus, sess *session.Session, game *domain.GameSpec) (bool, error) {
	if line == "" {
		return false, nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "say":
		if rest == "" {
			return false, errors.New("usage: say <text>")
		}
		b.Publish(event.NewMessage(event.SenderHuman, rest, event.SubtypeGeneric, 0))

	case "offer":
		offer, err := parseOffer(rest, sess, game)
		if err != nil {
			return false, err
		}
		b.Publish(event.NewOffer(event.SenderHuman, offer.ToMap(), 0))

	case "accept":
		if !sess.CanFormallyAccept() {
			return false, errors.New("cannot accept: the offer on the board still has undecided items")
		}
		b.Publish(event.NewFormalAccept(event.SenderHuman, 0))

	case "reject":
		// Walking away ends the negotiation for both parties.
		b.Publish(event.NewGameEnd("cancelled", sess.CurrentOffer().ToMap()))

	case "face":
		if !validHumanExpression(rest) {
			return false, fmt.Errorf("usage: face <%s>", expressionList())
		}
		b.Publish(event.NewExpression(event.SenderHuman, event.Expression(rest), 1500, 0))

	case "ask":
		b.Publish(event.NewPreferenceMessage(event.SenderHuman,
			"What do you want most?", event.SubtypePrefRequest,
			event.Preference{Relation: event.RelationBest, IsQuery: true}, 0))

	case "tell":
		pref, text, err := parsePreference(rest, game)
		if err != nil {
			return false, err
		}
		b.Publish(event.NewPreferenceMessage(event.SenderHuman, text, event.SubtypePrefInfo, pref, 0))

	case "board":
		fmt.Fprint(out, ui.FormatBoard(game, sess.CurrentOffer()))

	case "status":
		var remaining *float64
		if r, ok := sess.Remaining(); ok {
			remaining = &r
		}
		humanPct, agentPct := sess.UtilityPercentages(nil)
		acc := sess.Acceptance()
		fmt.Fprint(out, ui.FormatStatus(string(sess.State()), sess.Elapsed(), remaining,
			humanPct, agentPct, acc.HumanAccepted, acc.AgentAccepted))

	case "help":
		printHelp(out)

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", verb)
	}
	return false, nil
}

// parseOffer reads "issue=you/undecided/agent" pairs, starting from the
// current board so unstated issues keep their allocation.
func parseOffer(args string, sess *session.Session, game *domain.GameSpec) (*domain.Offer, error) {
	if args == "" {
		return nil, errors.New("usage: offer <issue>=<you>/<undecided>/<agent> ...")
	}
	offer := sess.CurrentOffer().Clone()
	for _, field := range strings.Fields(args) {
		name, spec, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("bad allocation %q, want issue=you/undecided/agent", field)
		}
		is, found := game.Issue(name)
		if !found {
			return nil, fmt.Errorf("unknown issue %q", name)
		}
		parts := strings.Split(spec, "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("bad allocation %q, want three counts you/undecided/agent", field)
		}
		counts := make([]int, 3)
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("bad count %q in %q", p, field)
			}
			counts[i] = n
		}
		// Prompt order is you/undecided/agent; the wire order is
		// agent/middle/human.
		alloc := domain.Allocation{Human: counts[0], Middle: counts[1], Agent: counts[2]}
		if alloc.Total() != is.Quantity {
			return nil, fmt.Errorf("%s: counts sum to %d, the game has %d", name, alloc.Total(), is.Quantity)
		}
		offer.Set(name, alloc)
	}
	return offer, nil
}

// parsePreference reads "issue1 > issue2" (also < and =).
func parsePreference(args string, game *domain.GameSpec) (event.Preference, string, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return event.Preference{}, "", errors.New("usage: tell <issue1> <|>|= <issue2>")
	}
	i1, op, i2 := fields[0], fields[1], fields[2]
	for _, name := range []string{i1, i2} {
		if _, ok := game.Issue(name); !ok {
			return event.Preference{}, "", fmt.Errorf("unknown issue %q", name)
		}
	}
	var relation, word string
	switch op {
	case ">":
		relation, word = event.RelationGreater, "more than"
	case "<":
		relation, word = event.RelationLess, "less than"
	case "=":
		relation, word = event.RelationEqual, "the same as"
	default:
		return event.Preference{}, "", fmt.Errorf("unknown relation %q, want >, < or =", op)
	}
	text := fmt.Sprintf("I value %s %s %s.", i1, word, i2)
	return event.Preference{Issue1: i1, Issue2: i2, Relation: relation}, text, nil
}

func validHumanExpression(s string) bool {
	for _, e := range event.HumanExpressions() {
		if string(e) == s {
			return true
		}
	}
	return false
}

func expressionList() string {
	var names []string
	for _, e := range event.HumanExpressions() {
		names = append(names, string(e))
	}
	return strings.Join(names, "|")
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  say <text>                         send a chat message
  offer <issue>=<you>/<mid>/<agent>  propose a division (unstated issues keep
                                     their current allocation)
  accept                             formally accept the offer on the board
  reject                             walk away and end the negotiation
  face <expression>                  show an emotion (neutral|happy|sad|angry|surprised)
  ask                                ask the agent what it wants most
  tell <issue1> >|<|= <issue2>       share your own preference
  board                              show the current division
  status                             show clock, utilities, acceptance
  quit                               leave the negotiation
`)
}
