// Command memoryctl is a thin smoke harness over this module's library
// packages — index/remember/recall/context/reflect/stats subcommands — in the
// shape of the teacher's cmd/palace/main.go → internal/cli.Run dispatch.
// The CLI front-end is explicitly out of scope per spec.md §1; this exists
// only so the library can be exercised manually, not as a designed surface.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/cil"
	"github.com/mehmetkoksal-w/memoryindex/internal/config"
	"github.com/mehmetkoksal-w/memoryindex/internal/indexer"
	"github.com/mehmetkoksal-w/memoryindex/internal/recall"
	"github.com/mehmetkoksal-w/memoryindex/internal/reflect"
	"github.com/mehmetkoksal-w/memoryindex/internal/remember"
	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	workspace, err := os.Getwd()
	if err != nil {
		fatal(err)
	}

	switch cmd {
	case "index":
		err = runIndex(workspace, args)
	case "remember":
		err = runRemember(workspace, args)
	case "recall":
		err = runRecall(workspace, args)
	case "context":
		err = runContext(workspace, args)
	case "reflect":
		err = runReflect(workspace, args)
	case "stats":
		err = runStats(workspace, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: memoryctl <index|remember|recall|context|reflect|stats> [flags]")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "memoryctl:", err)
	os.Exit(1)
}

func openStore(workspace string) (*store.Store, config.Config, error) {
	cfg, warning := config.Load(workspace)
	if warning != "" {
		fmt.Fprintln(os.Stderr, "memoryctl: warning:", warning)
	}
	s, err := store.Open(workspace)
	if err != nil {
		return nil, cfg, fmt.Errorf("open store: %w", err)
	}
	return s, cfg, nil
}

func runIndex(workspace string, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	force := fs.Bool("force", false, "re-index every discovered file, ignoring mtime cache")
	fs.Parse(args)

	s, cfg, err := openStore(workspace)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := indexer.IndexWorkspace(s, workspace, *force, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("indexed=%d skipped=%d cleaned=%d errors=%d\n", res.Indexed, res.Skipped, res.Cleaned, len(res.Errors))
	for path, msg := range res.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", path, msg)
	}
	return nil
}

func runRemember(workspace string, args []string) error {
	fs := flag.NewFlagSet("remember", flag.ExitOnError)
	tag := fs.String("tag", "", "fact|decision|pref|opinion|confirmed|inferred|action_item")
	date := fs.String("date", "", "YYYY-MM-DD, defaults to today")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("remember requires a content argument")
	}
	content := fs.Arg(0)

	s, cfg, err := openStore(workspace)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := remember.Remember(s, cfg, workspace, content, *tag, *date)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Println("skipped (duplicate for the day)")
		return nil
	}
	fmt.Printf("wrote %s: %s\n", res.Path, res.Line)
	return nil
}

func runRecall(workspace string, args []string) error {
	fs := flag.NewFlagSet("recall", flag.ExitOnError)
	since := fs.String("since", "", "absolute YYYY-MM-DD or relative Nd|Nw|Nm|Ny")
	limit := fs.Int("limit", 10, "max results")
	context := fs.Int("context", 0, "±N adjacent chunks per result")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("recall requires a query argument")
	}
	query := fs.Arg(0)

	s, cfg, err := openStore(workspace)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := recall.Recall(s, cfg, query, recall.Options{Since: *since, Limit: *limit, Context: *context}, time.Now())
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("[%.3f] %s %s:%d-%d\n    %s\n", r.Score, r.ChunkType, r.FilePath, r.LineStart, r.LineEnd, preview(r.Content))
	}
	return nil
}

func runContext(workspace string, args []string) error {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	maxTokens := fs.Int("max-tokens", 4000, "token budget")
	flagContra := fs.Bool("flag-contradictions", true, "append contradiction annotations")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("context requires a message argument")
	}
	message := fs.Arg(0)

	s, cfg, err := openStore(workspace)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := cil.GetRelevantContext(s, cfg, message, cil.Options{
		FlagContradictions: *flagContra,
		MaxTokens:          *maxTokens,
		Workspace:          workspace,
	}, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(res.Text)
	return nil
}

func runReflect(workspace string, args []string) error {
	fs := flag.NewFlagSet("reflect", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "compute the report without persisting changes")
	fs.Parse(args)

	s, cfg, err := openStore(workspace)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := reflect.Run(s, cfg, *dryRun, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("decayed=%d reinforced=%d marked_stale=%d contradictions=%d pruned=%d entities=%d dry_run=%t\n",
		len(report.Decayed), len(report.Reinforced), len(report.MarkedStale),
		len(report.ContradictionsFound), len(report.Pruned), report.EntityRecords, report.DryRun)
	return nil
}

func runStats(workspace string, args []string) error {
	s, _, err := openStore(workspace)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("chunks=%d files=%d stale=%d archived=%d contradictions_open=%d avg_confidence=%.3f\n",
		st.TotalChunks, st.TotalFiles, st.StaleChunks, st.ArchivedChunks, st.ContradictionsOpen, st.AvgConfidence)
	for t, n := range st.ByType {
		fmt.Printf("  %-12s %d\n", t, n)
	}

	embStatus, err := s.EmbeddingStatus()
	if err != nil {
		return err
	}
	fmt.Printf("embedded=%d unembedded=%d\n", embStatus.Embedded, embStatus.Unembedded)
	return nil
}

func preview(content string) string {
	const n = 100
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n]) + "…"
}
