package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/http11probe/internal/config"
	"github.com/maxvaer/http11probe/internal/runner"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/pkg/version"
)

var (
	opts           = config.Defaults()
	hostFromConfig bool
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"host", "port", "targets-file", "cidr", "ports"}},
	{"SELECTION", []string{"category", "test", "tests-file", "request-file", "expect-status", "verbatim", "list"}},
	{"TIMING", []string{"timeout", "connect-timeout", "read-timeout", "drain-delay", "liveness-delay", "delay", "adaptive-throttle", "rate", "concurrency"}},
	{"OUTPUT", []string{"output", "format", "verbose", "quiet", "no-color", "sort", "tree", "only", "hide", "scored-only", "on-result"}},
	{"CONFIGURATION", []string{"config"}},
}

var rootCmd = &cobra.Command{
	Use:     "http11probe [flags]",
	Short:   "HTTP/1.1 conformance and request smuggling probe",
	Version: version.Version,
	Long: `http11probe sends hand-crafted HTTP/1.1 requests over raw TCP and judges
how a server handles them: RFC 9110/9112 compliance, request smuggling
vectors, malformed input, header normalization, cookies and conditional
request capabilities.`,
	Example: `  http11probe --host localhost -p 8080
  http11probe --host 10.0.0.5:80 -c Smuggling -c Compliance
  http11probe --host example.com -t COMP-BASELINE -t SMUG-CL-TE -v
  http11probe -l targets.txt --concurrency 4 -o results.json --format json
  http11probe --cidr 192.168.1.0/28 --ports 80,8080 --only fail,warn
  http11probe -r te-space.txt --expect-status 400
  http11probe --host localhost --on-result "notify-send {id} {verdict}"
  http11probe --config lab.yaml --list`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.ConfigFile != "" {
			file, err := config.LoadFile(opts.ConfigFile)
			if err != nil {
				return err
			}
			file.Apply(&opts, cmd.Flags().Changed)
			if file.Host != nil && !cmd.Flags().Changed("host") {
				hostFromConfig = true
			}
		}
		// Without an explicit --host, request files name their own target.
		if len(opts.RequestFiles) > 0 && !cmd.Flags().Changed("host") && !hostFromConfig {
			opts.Host = ""
		}
		if opts.NoColor {
			color.NoColor = true
		}
		return validate(&opts)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVar(&opts.Host, "host", opts.Host, "Target host, optionally host:port")
	f.IntVarP(&opts.Port, "port", "p", opts.Port, "Target port")
	f.StringVarP(&opts.TargetsFile, "targets-file", "l", "", "File with one host[:port] per line")
	f.StringVar(&opts.CIDR, "cidr", "", "CIDR range to probe (e.g. 192.168.1.0/24)")
	f.StringVar(&opts.Ports, "ports", "", "Ports for CIDR targets (e.g. 80,8080-8082)")

	// Selection
	f.StringSliceVarP(&opts.Categories, "category", "c", nil, "Run only these categories (repeatable)")
	f.StringSliceVarP(&opts.Tests, "test", "t", nil, "Run only these test IDs (repeatable, case-insensitive)")
	f.StringVar(&opts.TestsFile, "tests-file", "", "File with one test ID per line")
	f.StringArrayVarP(&opts.RequestFiles, "request-file", "r", nil, "Raw HTTP request file run as a custom test (repeatable)")
	f.StringVar(&opts.ExpectStatus, "expect-status", "", "Acceptable statuses for custom tests (e.g. 400,4xx,500-599)")
	f.BoolVar(&opts.RequestVerbatim, "verbatim", false, "Send request files byte for byte without CRLF normalization")
	f.BoolVar(&opts.List, "list", false, "List the selected tests and exit")

	// Timing
	f.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Connect and read timeout")
	f.DurationVar(&opts.ConnectTimeout, "connect-timeout", 0, "Connect timeout (default --timeout)")
	f.DurationVar(&opts.ReadTimeout, "read-timeout", 0, "Read timeout (default --timeout)")
	f.DurationVar(&opts.DrainDelay, "drain-delay", opts.DrainDelay, "Wait for a second flush after the first response bytes (0 to disable)")
	f.DurationVar(&opts.LivenessDelay, "liveness-delay", opts.LivenessDelay, "Pause before re-checking an open connection (0 to disable)")
	f.DurationVar(&opts.Delay, "delay", 0, "Delay between tests")
	f.BoolVar(&opts.AdaptiveThrottle, "adaptive-throttle", false, "Auto back-off on 429/503 and errors")
	f.Float64Var(&opts.Rate, "rate", 0, "Maximum tests per second (0 for unlimited)")
	f.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "Targets probed in parallel")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&opts.OutputFormat, "format", opts.OutputFormat, "Output format: text, json, csv")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show raw responses and notes")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Minimal output")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.StringVar(&opts.Sort, "sort", "", "Sort results: verdict, id, category (buffers until the run completes)")
	f.BoolVar(&opts.Tree, "tree", false, "Print non-passing tests grouped by category")
	f.Var(&verdictSliceValue{target: &opts.Only}, "only", "Only show these verdicts (e.g. fail,warn)")
	f.Var(&verdictSliceValue{target: &opts.Hide}, "hide", "Hide these verdicts (e.g. pass)")
	f.BoolVar(&opts.ScoredOnly, "scored-only", false, "Hide unscored tests")
	f.StringVar(&opts.OnResult, "on-result", "", "Shell command to run for each result (receives JSON on stdin)")

	// Configuration
	f.StringVar(&opts.ConfigFile, "config", "", "YAML config file (flags override its values)")

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validate(o *config.Options) error {
	switch o.OutputFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("--format must be one of: text, json, csv")
	}
	switch o.Sort {
	case "", "verdict", "id", "category":
	default:
		return fmt.Errorf("--sort must be one of: verdict, id, category")
	}
	if len(o.Only) > 0 && len(o.Hide) > 0 {
		return fmt.Errorf("--only and --hide are mutually exclusive")
	}
	if o.Quiet && o.Verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("--port must be between 1 and 65535")
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}
	if o.Rate < 0 {
		return fmt.Errorf("--rate must not be negative")
	}
	if o.Ports != "" && o.CIDR == "" {
		return fmt.Errorf("--ports requires --cidr")
	}
	if o.ExpectStatus != "" && len(o.RequestFiles) == 0 {
		return fmt.Errorf("--expect-status requires --request-file")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	return nil
}

// verdictSliceValue implements pflag.Value for comma-separated verdict
// names. Names are checked on Set and stored as given.
type verdictSliceValue struct {
	target *[]string
}

func (v *verdictSliceValue) String() string {
	if v.target == nil {
		return ""
	}
	return strings.Join(*v.target, ",")
}

func (v *verdictSliceValue) Set(s string) error {
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := testcase.ParseVerdict(p); err != nil {
			return err
		}
		*v.target = append(*v.target, p)
	}
	return nil
}

func (v *verdictSliceValue) Type() string { return "verdicts" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
  http11probe %s
  raw-socket HTTP/1.1 conformance and smuggling probe

`, ver)
}
