package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"borrowck/internal/cfg"
	"borrowck/internal/dcache"
	"borrowck/internal/diag"
	"borrowck/internal/diagfmt"
	"borrowck/internal/driver"
	"borrowck/internal/observ"
	"borrowck/internal/prof"
	"borrowck/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <fixture.toml>...",
	Short: "Check ownership and borrows of every function in the fixtures",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "", "diagnostic format (pretty|short|json); overrides [output].format")
	checkCmd.Flags().String("ui", "off", "interactive progress UI (auto|on|off)")
	checkCmd.Flags().Int("jobs", 0, "functions analyzed in parallel (0 = GOMAXPROCS)")
	checkCmd.Flags().Bool("cache", false, "reuse outcomes from the disk cache")
	checkCmd.Flags().String("cache-dir", "", "cache directory (default: user cache dir)")
	checkCmd.Flags().Bool("emit-annotated", false, "print the drop-annotated CFG of functions without diagnostics")
	checkCmd.Flags().Bool("no-two-phase", false, "treat &2ph borrows as plain mutable borrows")
	checkCmd.Flags().Bool("mutability", false, "reject writes and mutable borrows of locals not declared mut; overrides [analysis].mutability")
	checkCmd.Flags().Int("max-diagnostics", 0, "maximum diagnostics per function; overrides [analysis].max_diagnostics")
	checkCmd.Flags().Bool("no-notes", false, "omit secondary notes")
}

type checkSettings struct {
	format        diagfmt.Format
	ui            uiMode
	color         bool
	notes         bool
	emitAnnotated bool
	timings       bool
	driver        driver.Options
}

func readCheckSettings(cmd *cobra.Command) (checkSettings, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return checkSettings{}, err
	}
	flags := cmd.Flags()
	var s checkSettings

	formatStr := conf.Output.Format
	if flags.Changed("format") {
		formatStr, _ = flags.GetString("format")
	}
	if s.format, err = diagfmt.ParseFormat(formatStr); err != nil {
		return checkSettings{}, err
	}
	uiStr, _ := flags.GetString("ui")
	if s.ui, err = readUIMode(uiStr); err != nil {
		return checkSettings{}, err
	}
	if s.color, err = resolveColor(conf.Output.Color, os.Stdout); err != nil {
		return checkSettings{}, err
	}
	s.notes = conf.Output.Notes
	if noNotes, _ := flags.GetBool("no-notes"); noNotes {
		s.notes = false
	}
	s.emitAnnotated, _ = flags.GetBool("emit-annotated")
	s.timings, _ = cmd.Root().PersistentFlags().GetBool("timings")

	opts := conf.Options()
	if noTwoPhase, _ := flags.GetBool("no-two-phase"); noTwoPhase {
		opts.TwoPhase = false
	}
	if flags.Changed("mutability") {
		opts.Mutability, _ = flags.GetBool("mutability")
	}
	if flags.Changed("max-diagnostics") {
		opts.MaxDiagnostics, _ = flags.GetInt("max-diagnostics")
	}
	s.driver.Analysis = opts
	s.driver.Jobs = conf.Driver.Jobs
	if flags.Changed("jobs") {
		s.driver.Jobs, _ = flags.GetInt("jobs")
	}
	if s.driver.Jobs < 0 {
		return checkSettings{}, fmt.Errorf("--jobs must be >= 0, got %d", s.driver.Jobs)
	}
	useCache := conf.Driver.Cache
	if flags.Changed("cache") {
		useCache, _ = flags.GetBool("cache")
	}
	if useCache {
		dir, _ := flags.GetString("cache-dir")
		if s.driver.Cache, err = dcache.Open(dir); err != nil {
			return checkSettings{}, fmt.Errorf("failed to open cache: %w", err)
		}
	}
	if s.timings {
		s.driver.Timer = observ.NewTimer()
	}
	return s, nil
}

func runCheck(cmd *cobra.Command, args []string) (err error) {
	s, err := readCheckSettings(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer func() { cleanup(err != nil) }()

	session, err := prof.Start(readProfFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	defer func() {
		if stopErr := session.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("failed to write profiles: %w", stopErr)
		}
	}()

	ctx := cmd.Context()
	fs := source.NewFileSet()
	tui := s.format != diagfmt.FormatJSON && shouldUseTUI(s.ui)

	results := make([]*driver.FileResult, 0, len(args))
	for _, path := range args {
		var res *driver.FileResult
		var checkErr error
		if tui {
			res, checkErr = checkFileWithUI(ctx, fs, path, s.driver)
		} else {
			res, checkErr = driver.CheckFile(ctx, fs, path, s.driver)
		}
		if res != nil {
			results = append(results, res)
		}
		if checkErr != nil {
			// диагностики уже собранных файлов всё равно печатаем
			if printErr := printResults(cmd.OutOrStdout(), fs, results, s); printErr != nil {
				return printErr
			}
			return checkErr
		}
	}

	if err := printResults(cmd.OutOrStdout(), fs, results, s); err != nil {
		return err
	}
	if s.format == diagfmt.FormatPretty {
		fmt.Fprint(cmd.ErrOrStderr(), summaryLine(results))
	}
	if s.timings {
		fmt.Fprint(cmd.ErrOrStderr(), s.driver.Timer.Summary())
	}
	for _, res := range results {
		if len(res.Module.Diagnostics()) > 0 {
			return errDiagnostics
		}
	}
	return nil
}

func printResults(out io.Writer, fs *source.FileSet, results []*driver.FileResult, s checkSettings) error {
	var diags []diag.Diagnostic
	for _, res := range results {
		diags = append(diags, res.Module.Diagnostics()...)
	}

	var err error
	switch s.format {
	case diagfmt.FormatJSON:
		return diagfmt.JSON(out, diags, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     s.notes,
			IncludeFixes:     true,
		})
	case diagfmt.FormatShort:
		err = diagfmt.Short(out, diags, fs, s.notes)
	default:
		err = diagfmt.Pretty(out, diags, fs, diagfmt.PrettyOpts{
			Color:     s.color,
			ShowNotes: s.notes,
			ShowFixes: true,
		})
	}
	if err != nil || !s.emitAnnotated {
		return err
	}
	for _, res := range results {
		for _, fr := range res.Module.Funcs {
			if fr.Outcome == nil || fr.Outcome.Annotated == nil {
				continue
			}
			if err := cfg.DumpFunc(out, fr.Outcome.Annotated, res.Program.Types, cfg.DumpOptions{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func summaryLine(results []*driver.FileResult) string {
	funcs, cached, diags := 0, 0, 0
	for _, res := range results {
		for _, fr := range res.Module.Funcs {
			funcs++
			if fr.Cached {
				cached++
			}
		}
		diags += len(res.Module.Diagnostics())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "checked %d function(s) in %d file(s)", funcs, len(results))
	if cached > 0 {
		fmt.Fprintf(&sb, ", %d cached", cached)
	}
	fmt.Fprintf(&sb, ": %d diagnostic(s)\n", diags)
	return sb.String()
}

func readProfFlags(cmd *cobra.Command) prof.Options {
	flags := cmd.Root().PersistentFlags()
	var o prof.Options
	o.CPU, _ = flags.GetString("cpuprofile")
	o.Mem, _ = flags.GetString("memprofile")
	o.Trace, _ = flags.GetString("runtime-trace")
	return o
}
