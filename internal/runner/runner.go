// Package runner wires the CLI options into a probe run: targets, catalog,
// selection, scanner, output and hooks.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/maxvaer/http11probe/internal/config"
	"github.com/maxvaer/http11probe/internal/filter"
	"github.com/maxvaer/http11probe/internal/hook"
	"github.com/maxvaer/http11probe/internal/netutil"
	"github.com/maxvaer/http11probe/internal/output"
	"github.com/maxvaer/http11probe/internal/reqparse"
	"github.com/maxvaer/http11probe/internal/scanner"
	"github.com/maxvaer/http11probe/internal/suites"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
	"github.com/maxvaer/http11probe/pkg/version"
)

// Run executes the full probe pipeline. It supports multiple targets via
// -l (target list file) and --cidr. A failure on one target is reported and
// the next continues; cancellation stops everything after the current test.
func Run(ctx context.Context, opts *config.Options) error {
	cases, custom, err := buildCatalog(opts)
	if err != nil {
		return err
	}
	selection, err := buildSelection(opts, custom)
	if err != nil {
		return err
	}

	if opts.List {
		return listCases(os.Stdout, cases, selection)
	}

	targets, err := resolveTargets(opts)
	if err != nil {
		return err
	}

	executed := 0
	for _, c := range cases {
		if selection.Includes(c.Metadata()) {
			executed++
		}
	}
	if executed == 0 {
		return fmt.Errorf("selection matches no tests (see --list)")
	}

	chain, err := buildChain(opts)
	if err != nil {
		return err
	}

	out, err := createWriter(opts, len(targets) > 1)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer out.Close()

	if !opts.Quiet {
		printBanner(opts, targets, executed)
	}
	if err := out.WriteHeader(); err != nil {
		return err
	}

	throttler := scanner.NewThrottler(opts.Delay, opts.AdaptiveThrottle, opts.Quiet).WithRate(opts.Rate)

	pauser, restore := startStdinToggle(opts.Quiet)
	defer restore()

	var hookRunner *hook.Runner
	if opts.OnResult != "" {
		hookRunner = hook.NewRunner(opts.OnResult, opts.Quiet)
	}

	connect, read := opts.Timeouts()
	drain, liveness := opts.Delays()
	cfg := scanner.Config{
		Transport: transport.Config{
			ConnectTimeout: connect,
			ReadTimeout:    read,
			DrainDelay:     drain,
		},
		LivenessDelay: liveness,
		Selection:     selection,
		Throttler:     throttler,
		Pauser:        pauser,
	}

	progress := output.NewProgress(executed*len(targets), opts.Quiet)
	progress.Start()
	startTime := time.Now()

	// onResult runs on worker goroutines; mu keeps rows whole.
	var (
		mu       sync.Mutex
		writeErr error
	)
	onResult := func(res testcase.Result) {
		mu.Lock()
		defer mu.Unlock()

		progress.Increment(res.Verdict)
		if filtered, _ := chain.Apply(&res); filtered {
			return
		}
		progress.ClearLine()
		if err := out.WriteResult(&res); err != nil && writeErr == nil {
			writeErr = err
		}
		progress.Redraw()

		if hookRunner != nil {
			hookRunner.Run(&res)
		}
	}

	var reports []*testcase.Report
	for tr := range scanner.RunTargetPool(ctx, targets, cases, cfg, opts.Concurrency, onResult) {
		if tr.Err != nil && ctx.Err() == nil {
			progress.ClearLine()
			fmt.Fprintf(os.Stderr, "[!] Error probing %s: %v\n", tr.Target, tr.Err)
			progress.Redraw()
		}
		if tr.Report != nil {
			reports = append(reports, tr.Report)
		}
	}
	progress.Stop()

	if writeErr != nil {
		return fmt.Errorf("writing results: %w", writeErr)
	}

	sortReports(reports, targets)
	var all []testcase.Result
	for _, r := range reports {
		if err := out.WriteReport(r); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		all = append(all, r.Results...)
	}

	if opts.Tree {
		output.PrintTree(os.Stderr, all, len(targets) > 1)
	}

	stats := output.Stats{Targets: len(reports), Tests: executed, Duration: time.Since(startTime)}
	if err := out.WriteFooter(stats); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if ctx.Err() != nil {
		if !opts.Quiet {
			fmt.Fprintf(os.Stderr, "[!] Interrupted; partial results written\n")
		}
		return fmt.Errorf("probe interrupted: %w", ctx.Err())
	}
	if opts.OutputFile != "" && !opts.Quiet {
		fmt.Fprintf(os.Stderr, "[+] Results written to %s\n", opts.OutputFile)
	}
	return nil
}

// buildCatalog returns the built-in definitions plus one custom definition
// per request file. When request files are given without any selection,
// only the custom definitions run.
func buildCatalog(opts *config.Options) (cases []testcase.Case, custom []*testcase.TestCase, err error) {
	var status []testcase.StatusRange
	if opts.ExpectStatus != "" {
		status, err = testcase.ParseStatusRanges(opts.ExpectStatus)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing --expect-status: %w", err)
		}
	}

	seen := make(map[string]string)
	for _, path := range opts.RequestFiles {
		req, err := reqparse.ParseFile(path, reqparse.Options{Verbatim: opts.RequestVerbatim})
		if err != nil {
			return nil, nil, err
		}
		tc := suites.Custom(path, req, status, len(status) > 0)
		if prev, dup := seen[tc.ID]; dup {
			return nil, nil, fmt.Errorf("request files %s and %s both map to %s", prev, path, tc.ID)
		}
		seen[tc.ID] = path
		custom = append(custom, tc)
	}

	if len(custom) == 0 || hasSelection(opts) {
		cases = suites.All()
	}
	for _, tc := range custom {
		cases = append(cases, tc)
	}
	return cases, custom, nil
}

func hasSelection(opts *config.Options) bool {
	return len(opts.Categories) > 0 || len(opts.Tests) > 0 || opts.TestsFile != ""
}

// buildSelection turns --category, --test and --tests-file into a
// Selection. Custom definitions are always selected.
func buildSelection(opts *config.Options, custom []*testcase.TestCase) (*filter.Selection, error) {
	var categories []testcase.Category
	for _, name := range opts.Categories {
		for _, part := range strings.Split(name, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			cat, err := testcase.ParseCategory(part)
			if err != nil {
				return nil, err
			}
			categories = append(categories, cat)
		}
	}

	ids := append([]string(nil), opts.Tests...)
	if opts.TestsFile != "" {
		fromFile, err := filter.LoadIDs(opts.TestsFile)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}

	if len(custom) > 0 {
		if len(categories) > 0 {
			categories = append(categories, testcase.Custom)
		}
		if len(ids) > 0 {
			for _, tc := range custom {
				ids = append(ids, tc.ID)
			}
		}
	}
	return filter.NewSelection(categories, ids), nil
}

// buildChain installs the display filters. They hide rows and hook calls
// but never change the report.
func buildChain(opts *config.Options) (*filter.Chain, error) {
	chain := filter.NewChain()
	only, err := parseVerdicts(opts.Only)
	if err != nil {
		return nil, fmt.Errorf("parsing --only: %w", err)
	}
	hide, err := parseVerdicts(opts.Hide)
	if err != nil {
		return nil, fmt.Errorf("parsing --hide: %w", err)
	}
	if len(only) > 0 || len(hide) > 0 {
		chain.Add(filter.NewVerdictFilter(only, hide))
	}
	if opts.ScoredOnly {
		chain.Add(filter.UnscoredFilter{})
	}
	return chain, nil
}

func parseVerdicts(names []string) ([]testcase.Verdict, error) {
	var out []testcase.Verdict
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			v, err := testcase.ParseVerdict(part)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// resolveTargets builds the target list from --host/--port, -l and --cidr.
// An empty Host means the first request file's Host header names the
// target.
func resolveTargets(opts *config.Options) ([]testcase.Target, error) {
	var targets []testcase.Target

	if opts.TargetsFile != "" {
		f, err := os.Open(opts.TargetsFile)
		if err != nil {
			return nil, fmt.Errorf("opening targets file: %w", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			t, err := netutil.ParseTarget(line, opts.Port)
			if err != nil {
				return nil, fmt.Errorf("targets file: %w", err)
			}
			targets = append(targets, t)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading targets file: %w", err)
		}
	}

	if opts.CIDR != "" {
		expanded, err := netutil.ExpandTargets(opts.CIDR, opts.Ports)
		if err != nil {
			return nil, fmt.Errorf("expanding CIDR: %w", err)
		}
		targets = append(targets, expanded...)
	}

	if len(targets) == 0 {
		if opts.Host == "" {
			return []testcase.Target{requestTarget(opts)}, nil
		}
		t, err := netutil.ParseTarget(opts.Host, opts.Port)
		if err != nil {
			return nil, fmt.Errorf("invalid --host: %w", err)
		}
		targets = append(targets, t)
	}
	return dedupeTargets(targets), nil
}

// requestTarget falls back to localhost when the file names no usable host.
func requestTarget(opts *config.Options) testcase.Target {
	fallback := testcase.Target{Host: "localhost", Port: opts.Port}
	if len(opts.RequestFiles) == 0 {
		return fallback
	}
	req, err := reqparse.ParseFile(opts.RequestFiles[0], reqparse.Options{Verbatim: opts.RequestVerbatim})
	if err != nil {
		return fallback
	}
	host, port, err := req.HostPort()
	if err != nil {
		if !opts.Quiet {
			fmt.Fprintf(os.Stderr, "[!] %v; probing %s\n", err, fallback)
		}
		return fallback
	}
	return testcase.Target{Host: host, Port: port}
}

func dedupeTargets(targets []testcase.Target) []testcase.Target {
	seen := make(map[testcase.Target]struct{}, len(targets))
	out := targets[:0]
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// sortReports restores target order; pool workers finish out of order.
func sortReports(reports []*testcase.Report, targets []testcase.Target) {
	index := make(map[testcase.Target]int, len(targets))
	for i, t := range targets {
		index[t] = i
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return index[reports[i].Target] < index[reports[j].Target]
	})
}

func createWriter(opts *config.Options, multiTarget bool) (output.Writer, error) {
	var w output.Writer
	var err error
	switch opts.OutputFormat {
	case "json":
		w, err = output.NewJSONWriter(opts.OutputFile)
	case "csv":
		w, err = output.NewCSVWriter(opts.OutputFile)
	default:
		w, err = output.NewTextWriter(opts.OutputFile, output.TextOptions{
			NoColor:    opts.NoColor,
			Quiet:      opts.Quiet,
			Verbose:    opts.Verbose,
			ShowTarget: multiTarget,
		})
	}
	if err != nil {
		return nil, err
	}
	if opts.Sort != "" {
		w = output.NewSortedWriter(w, opts.Sort)
	}
	return w, nil
}

// listCases prints the catalog instead of running it.
func listCases(w io.Writer, cases []testcase.Case, selection *filter.Selection) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLEVEL\tSCORED\tDESCRIPTION")
	n := 0
	for _, c := range cases {
		m := c.Metadata()
		if !selection.Includes(m) {
			continue
		}
		n++
		scored := "yes"
		if !m.Scored() {
			scored = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Category, m.RFCLevel, scored, m.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d tests\n", n)
	return err
}

func printBanner(opts *config.Options, targets []testcase.Target, tests int) {
	c := color.New(color.FgCyan)
	d := color.New(color.Faint)
	y := color.New(color.FgYellow)
	if opts.NoColor {
		c.DisableColor()
		d.DisableColor()
		y.DisableColor()
	}

	fmt.Fprintf(os.Stderr, "\n%s %s\n", c.Sprint("  http11probe"), d.Sprintf("v%s", version.Version))
	fmt.Fprintf(os.Stderr, "%s\n", d.Sprint("  HTTP/1.1 conformance and smuggling probe"))
	fmt.Fprintf(os.Stderr, "%s\n", d.Sprint("  ──────────────────────────────────────"))
	if len(targets) == 1 {
		fmt.Fprintf(os.Stderr, "  %s       %s\n", d.Sprint("Target:"), targets[0])
	} else {
		fmt.Fprintf(os.Stderr, "  %s      %d (concurrency %s)\n", d.Sprint("Targets:"), len(targets), y.Sprint(opts.Concurrency))
	}
	fmt.Fprintf(os.Stderr, "  %s        %d\n", d.Sprint("Tests:"), tests)
	connect, read := opts.Timeouts()
	fmt.Fprintf(os.Stderr, "  %s     connect %s, read %s\n", d.Sprint("Timeout:"), connect, read)
	if opts.Delay > 0 || opts.Rate > 0 || opts.AdaptiveThrottle {
		fmt.Fprintf(os.Stderr, "  %s    delay %s, rate %.1f/s, adaptive %v\n", d.Sprint("Throttle:"), opts.Delay, opts.Rate, opts.AdaptiveThrottle)
	}
	fmt.Fprintf(os.Stderr, "%s\n\n", d.Sprint("  ──────────────────────────────────────"))
}
