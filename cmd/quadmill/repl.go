package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/engine"
	"github.com/quadmill/quadmill/quads/events"
	"github.com/quadmill/quadmill/quads/parser"
	"github.com/quadmill/quadmill/quads/pattern"
	"github.com/quadmill/quadmill/quads/persist"
	"github.com/quadmill/quadmill/quads/reify"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session against a local engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runRepl(cfg.Journal, cfg.MaxSteps, cfg.Verbose)
	},
}

func runRepl(journalPath string, maxSteps int, verbose bool) error {
	var handler events.Handler
	if verbose {
		formatter := events.NewOutputFormatter(os.Stderr)
		handler = events.Handler(formatter.Handle)
	}

	var opts []engine.Option
	if handler != nil {
		opts = append(opts, engine.WithHandler(handler))
	}
	if maxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(maxSteps))
	}
	eng := engine.New(opts...)

	var loaderOpts []reify.Option
	if handler != nil {
		loaderOpts = append(loaderOpts, reify.WithHandler(handler))
	}
	loader, err := reify.Install(eng, logger, loaderOpts...)
	if err != nil {
		return fmt.Errorf("install rule loader: %w", err)
	}
	defer loader.Close()

	if journalPath != "" {
		j, err := persist.Open(journalPath, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		n, err := j.Replay(eng)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Printf("Replayed %d facts from %s\n", n, journalPath)
		}
		if err := j.Attach(eng); err != nil {
			return err
		}
	}

	fmt.Println("=== Quadmill Interactive Mode ===")
	printReplHelp()

	watches := map[int]engine.Unwatch{}
	nextWatch := 1
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || strings.HasPrefix(line, "#"):

		case line == ".exit":
			return nil

		case line == ".help":
			printReplHelp()

		case line == ".rules":
			for _, r := range eng.Rules() {
				fmt.Printf("  %s  %s\n", r.Name(), r.Pattern())
			}
			if active := loader.Active(); len(active) > 0 {
				fmt.Printf("  reified: %s\n", strings.Join(active, ", "))
			}

		case strings.HasPrefix(line, ".load "):
			path := strings.TrimSpace(strings.TrimPrefix(line, ".load "))
			if err := loadFacts(eng, path); err != nil {
				fmt.Printf("Load error: %v\n", err)
			}

		case strings.HasPrefix(line, ".watch "):
			text := strings.TrimSpace(strings.TrimPrefix(line, ".watch "))
			p, err := parser.ParsePattern(text)
			if err != nil {
				fmt.Printf("Parse error: %v\n", err)
				continue
			}
			id := nextWatch
			unwatch, err := eng.WatchNamed(
				fmt.Sprintf("repl-watch-%d", id), p, replProduction(id))
			if err != nil {
				fmt.Printf("Watch error: %v\n", err)
			}
			if unwatch != nil {
				watches[id] = unwatch
				nextWatch++
				fmt.Printf("Watch #%d registered\n", id)
			}

		case strings.HasPrefix(line, ".unwatch "):
			arg := strings.TrimSpace(strings.TrimPrefix(line, ".unwatch "))
			id, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Printf("Bad watch id %q\n", arg)
				continue
			}
			if unwatch, ok := watches[id]; ok {
				unwatch()
				delete(watches, id)
				fmt.Printf("Watch #%d removed\n", id)
			} else {
				fmt.Printf("No watch #%d\n", id)
			}

		case strings.HasPrefix(line, ".remove "):
			text := strings.TrimSpace(strings.TrimPrefix(line, ".remove "))
			t, err := parser.ParseTuple(text)
			if err != nil {
				fmt.Printf("Parse error: %v\n", err)
				continue
			}
			if eng.Remove(t) {
				fmt.Println("Removed")
			} else {
				fmt.Println("Not present")
			}

		case strings.HasPrefix(line, "add "):
			text := strings.TrimSpace(strings.TrimPrefix(line, "add "))
			t, err := parser.ParseTuple(text)
			if err != nil {
				fmt.Printf("Parse error: %v\n", err)
				continue
			}
			before := eng.Len()
			if err := eng.Add(t); err != nil {
				fmt.Printf("Cascade error: %v\n", err)
				continue
			}
			fmt.Printf("Store now holds %d facts (+%d)\n", eng.Len(), eng.Len()-before)

		default:
			// Anything else is a query pattern
			p, err := parser.ParsePattern(line)
			if err != nil {
				fmt.Printf("Parse error: %v\n", err)
				continue
			}
			ms, err := eng.Query(p)
			if err != nil {
				fmt.Printf("Query error: %v\n", err)
				continue
			}
			fmt.Println(matchTable(p, ms))
		}
	}
}

func printReplHelp() {
	fmt.Println("Commands:")
	fmt.Println("  .help              - Show help")
	fmt.Println("  .exit              - Exit")
	fmt.Println("  .load <file>       - Load facts from a file, one per line")
	fmt.Println("  .rules             - List active rules")
	fmt.Println("  .watch <pattern>   - Print bindings whenever the pattern fires")
	fmt.Println("  .unwatch <n>       - Remove watch #n")
	fmt.Println("  .remove <fact>     - Remove a fact (no cascade)")
	fmt.Println("  add <fact>         - Add a fact and cascade")
	fmt.Println("  <pattern>          - Query, e.g.: ?p likes ?q")
	fmt.Println()
}

// loadFacts feeds every non-blank, non-comment line of the file through Add.
func loadFacts(eng *engine.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parser.ParseTuple(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if err := eng.Add(t); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Printf("Loaded %d facts from %s\n", count, path)
	return nil
}

func replProduction(id int) engine.Production {
	label := color.New(color.FgCyan).Sprintf("watch #%d:", id)
	return func(m *pattern.Match) ([]quads.Tuple, error) {
		fmt.Printf("%s {%s}\n", label, m.Bindings())
		return nil, nil
	}
}

// matchTable renders query results as a markdown table, one column per
// pattern variable.
func matchTable(p *pattern.Pattern, ms []*pattern.Match) string {
	vars := p.Variables()
	if len(ms) == 0 {
		return "_No matches_"
	}
	if len(vars) == 0 {
		return fmt.Sprintf("_%d matches_", len(ms))
	}

	alignment := make([]tw.Align, len(vars))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	sb := &strings.Builder{}
	table := tablewriter.NewTable(sb,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	headers := make([]string, len(vars))
	for i, v := range vars {
		headers[i] = "?" + v
	}
	table.Header(headers)

	for _, m := range ms {
		row := make([]string, len(vars))
		for i, v := range vars {
			if val, ok := m.Binding(v); ok {
				row[i] = val.String()
			}
		}
		table.Append(row)
	}
	table.Render()

	sb.WriteString(fmt.Sprintf("\n_%d rows_\n", len(ms)))
	return sb.String()
}
