// Package config holds the run options shared by the CLI and the runner.
package config

import "time"

// Options holds all configuration for a probe run.
type Options struct {
	// Target
	Host        string
	Port        int
	TargetsFile string // one host[:port] per line
	CIDR        string
	Ports       string // used with CIDR, e.g. "80,8080-8082"

	// Selection
	Categories      []string
	Tests           []string
	TestsFile       string
	RequestFiles    []string // raw request files run as custom tests
	ExpectStatus    string   // acceptable statuses for custom tests
	RequestVerbatim bool     // send request files without CRLF normalization

	// Timing
	Timeout          time.Duration
	ConnectTimeout   time.Duration // zero = Timeout
	ReadTimeout      time.Duration // zero = Timeout
	DrainDelay       time.Duration
	LivenessDelay    time.Duration
	Delay            time.Duration
	AdaptiveThrottle bool
	Rate             float64 // tests per second, 0 = unlimited
	Concurrency      int     // targets probed in parallel

	// Output
	OutputFile   string
	OutputFormat string // "text", "json", "csv"
	Verbose      bool
	Quiet        bool
	NoColor      bool
	Sort         string // "", "verdict", "id", "category"
	Tree         bool
	Only         []string
	Hide         []string
	ScoredOnly   bool
	OnResult     string

	ConfigFile string
	List       bool
}

// Defaults returns the options a run starts from before flags and the
// config file are applied.
func Defaults() Options {
	return Options{
		Host:          "localhost",
		Port:          8080,
		Timeout:       5 * time.Second,
		DrainDelay:    100 * time.Millisecond,
		LivenessDelay: 50 * time.Millisecond,
		Concurrency:   1,
		OutputFormat:  "text",
	}
}

// Timeouts resolves the connect and read timeouts against Timeout.
func (o *Options) Timeouts() (connect, read time.Duration) {
	connect, read = o.ConnectTimeout, o.ReadTimeout
	if connect <= 0 {
		connect = o.Timeout
	}
	if read <= 0 {
		read = o.Timeout
	}
	return connect, read
}

// Delays resolves DrainDelay and LivenessDelay for the transport and
// scanner layers, where zero means the default. An explicit zero here
// disables the wait, so it is passed on as a negative value.
func (o *Options) Delays() (drain, liveness time.Duration) {
	drain, liveness = o.DrainDelay, o.LivenessDelay
	if drain <= 0 {
		drain = -1
	}
	if liveness <= 0 {
		liveness = -1
	}
	return drain, liveness
}
