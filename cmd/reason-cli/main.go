// Command reason-cli loads a rule set and runs inference, either
// one-shot or as an interactive session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/reason/pkg/reason"
	"github.com/cognicore/reason/pkg/reason/config"
	"github.com/cognicore/reason/pkg/reason/fact"
	"github.com/cognicore/reason/pkg/reason/infer"
	"github.com/cognicore/reason/pkg/reason/store/sqlite"
)

func main() {
	var (
		configPath = flag.String("config", "", "Engine config file (optional)")
		rulesPath  = flag.String("rules", "", "Rules file (required unless -db is set)")
		factsPath  = flag.String("facts", "", "Seed facts file (optional)")
		dbPath     = flag.String("db", "", "SQLite database path (optional)")
		goalFlag   = flag.String("goal", "", "Goal as name or name=value (backward/hybrid modes)")
		oneShot    = flag.Bool("run", false, "Execute once and exit (non-interactive mode)")
		verbose    = flag.Bool("verbose", false, "Log at debug level")
	)
	flag.Parse()

	if *rulesPath == "" && *dbPath == "" {
		log.Fatal("--rules or --db required")
	}

	ctx := context.Background()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	engine, cleanup, err := buildEngine(ctx, logger, *configPath, *rulesPath, *factsPath, *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	goal := parseGoal(*goalFlag)

	if *oneShot {
		if err := execute(ctx, engine, goal); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Println("===========================================")
	fmt.Println("  reason CLI")
	fmt.Println("  rule-based inference session")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Commands: fact <name> = <value> [conf] | run | prove <name>[=value] | facts | rules | stats | reset")
	fmt.Println("Ctrl+D to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(ctx, engine, line); err != nil {
			fmt.Println("Error:", err)
		}
	}
	fmt.Println("\nGoodbye!")
}

func dispatch(ctx context.Context, engine *reason.Engine, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "fact":
		return addFact(engine, rest)
	case "run":
		return execute(ctx, engine, nil)
	case "prove":
		goal := parseGoal(strings.TrimSpace(rest))
		if goal == nil {
			return fmt.Errorf("usage: prove <name>[=value]")
		}
		return execute(ctx, engine, goal)
	case "facts":
		for _, f := range engine.Facts() {
			fmt.Printf("  %s = %s (%.2f, %s)\n", f.Name, f.Value, f.Confidence, f.Source)
		}
		return nil
	case "rules":
		for _, r := range engine.Rules() {
			state := ""
			if !r.Enabled {
				state = " [disabled]"
			}
			fmt.Printf("  %s (priority %d)%s: %s\n", r.Name, r.Priority, state, r.NaturalLanguage)
		}
		return nil
	case "stats":
		s := engine.Stats()
		fmt.Printf("  facts: %d (%d stale), rules: %d (%d enabled)\n", s.Facts, s.StaleFacts, s.Rules, s.EnabledRules)
		for src, n := range s.FactsBySource {
			fmt.Printf("    %s: %d\n", src, n)
		}
		return nil
	case "reset":
		engine.Reset()
		fmt.Println("  facts cleared")
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func addFact(engine *reason.Engine, rest string) error {
	name, valueAndConf, ok := strings.Cut(rest, "=")
	if !ok {
		return fmt.Errorf("usage: fact <name> = <value> [conf]")
	}
	name = strings.TrimSpace(name)
	parts := strings.Fields(strings.TrimSpace(valueAndConf))
	if name == "" || len(parts) == 0 {
		return fmt.Errorf("usage: fact <name> = <value> [conf]")
	}
	conf := 1.0
	valueText := strings.Join(parts, " ")
	if len(parts) > 1 {
		if c, err := strconv.ParseFloat(parts[len(parts)-1], 64); err == nil && c >= 0 && c <= 1 {
			conf = c
			valueText = strings.Join(parts[:len(parts)-1], " ")
		}
	}
	engine.AddFact(fact.New(name, parseValue(valueText), fact.SourceUser, conf, nil))
	fmt.Printf("  %s = %s (%.2f)\n", name, valueText, conf)
	return nil
}

func execute(ctx context.Context, engine *reason.Engine, goal *infer.Goal) error {
	var (
		res *reason.Result
		err error
	)
	if goal != nil {
		res, err = engine.Execute(ctx, *goal)
	} else {
		res, err = engine.Execute(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nMode: %s  Confidence: %.2f\n", res.Mode, res.Confidence)
	if len(res.Applied) == 0 {
		fmt.Println("No rules applied.")
	}
	for _, f := range res.Derived {
		fmt.Printf("  derived %s = %s (%.2f)\n", f.Name, f.Value, f.Confidence)
	}
	if res.LastExecutedAction != "" {
		fmt.Printf("  last action: %s\n", res.LastExecutedAction)
	}
	fmt.Println("\nTrace:")
	for _, step := range res.Trace {
		fmt.Println("  -", step)
	}
	for _, e := range res.Errors {
		fmt.Println("  ! ", e)
	}
	fmt.Println()
	return nil
}

func parseGoal(s string) *infer.Goal {
	if s == "" {
		return nil
	}
	name, valueText, hasValue := strings.Cut(s, "=")
	goal := &infer.Goal{Name: strings.TrimSpace(name)}
	if hasValue {
		v := parseValue(strings.TrimSpace(valueText))
		goal.Value = &v
	}
	return goal
}

// parseValue reads a CLI literal: number, bool, null, else string.
func parseValue(s string) fact.Value {
	switch strings.ToLower(s) {
	case "true":
		return fact.Bool(true)
	case "false":
		return fact.Bool(false)
	case "null":
		return fact.Null()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fact.Number(f)
	}
	return fact.String(strings.Trim(s, `"'`))
}

func buildEngine(ctx context.Context, logger *logrus.Logger, configPath, rulesPath, factsPath, dbPath string) (*reason.Engine, func(), error) {
	loader := config.Loader{
		ConfigPath: configPath,
		RulesPath:  rulesPath,
		FactsPath:  factsPath,
	}
	components, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	opts := reason.Options{Config: components.Config, Logger: logger}

	cleanup := func() {}
	if dbPath != "" {
		repo, err := sqlite.Open(ctx, dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		opts.Store = repo
		cleanup = func() { repo.Close() }
	}

	engine := reason.New(opts)
	if err := engine.Initialize(ctx, components.Facts...); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize: %w", err)
	}
	// file rules are added after Initialize so they survive a store load
	for _, r := range components.Rules {
		if err := engine.AddRule(r); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("add rule: %w", err)
		}
	}
	return engine, cleanup, nil
}
