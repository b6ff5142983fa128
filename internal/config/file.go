package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File mirrors the long flag names. Unset keys stay nil so they never
// override a default.
type File struct {
	Host        *string `yaml:"host"`
	Port        *int    `yaml:"port"`
	TargetsFile *string `yaml:"targets-file"`
	CIDR        *string `yaml:"cidr"`
	Ports       *string `yaml:"ports"`

	Categories   []string `yaml:"category"`
	Tests        []string `yaml:"test"`
	TestsFile    *string  `yaml:"tests-file"`
	RequestFiles []string `yaml:"request-file"`
	ExpectStatus *string  `yaml:"expect-status"`
	Verbatim     *bool    `yaml:"verbatim"`

	Timeout          *time.Duration `yaml:"timeout"`
	ConnectTimeout   *time.Duration `yaml:"connect-timeout"`
	ReadTimeout      *time.Duration `yaml:"read-timeout"`
	DrainDelay       *time.Duration `yaml:"drain-delay"`
	LivenessDelay    *time.Duration `yaml:"liveness-delay"`
	Delay            *time.Duration `yaml:"delay"`
	AdaptiveThrottle *bool          `yaml:"adaptive-throttle"`
	Rate             *float64       `yaml:"rate"`
	Concurrency      *int           `yaml:"concurrency"`

	Output     *string  `yaml:"output"`
	Format     *string  `yaml:"format"`
	Verbose    *bool    `yaml:"verbose"`
	Quiet      *bool    `yaml:"quiet"`
	NoColor    *bool    `yaml:"no-color"`
	Sort       *string  `yaml:"sort"`
	Tree       *bool    `yaml:"tree"`
	Only       []string `yaml:"only"`
	Hide       []string `yaml:"hide"`
	ScoredOnly *bool    `yaml:"scored-only"`
	OnResult   *string  `yaml:"on-result"`
}

// LoadFile reads a YAML config file. An empty file is valid; unknown keys
// are an error so typos don't pass silently.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Apply copies every key present in the file into opts, except those whose
// flag was set on the command line. changed reports that by long flag name.
func (c *File) Apply(opts *Options, changed func(flag string) bool) {
	set := func(flag string) bool { return !changed(flag) }

	str := func(flag string, src *string, dst *string) {
		if src != nil && set(flag) {
			*dst = *src
		}
	}
	boolean := func(flag string, src *bool, dst *bool) {
		if src != nil && set(flag) {
			*dst = *src
		}
	}
	dur := func(flag string, src *time.Duration, dst *time.Duration) {
		if src != nil && set(flag) {
			*dst = *src
		}
	}
	list := func(flag string, src []string, dst *[]string) {
		if len(src) > 0 && set(flag) {
			*dst = src
		}
	}
	integer := func(flag string, src *int, dst *int) {
		if src != nil && set(flag) {
			*dst = *src
		}
	}

	str("host", c.Host, &opts.Host)
	integer("port", c.Port, &opts.Port)
	str("targets-file", c.TargetsFile, &opts.TargetsFile)
	str("cidr", c.CIDR, &opts.CIDR)
	str("ports", c.Ports, &opts.Ports)

	list("category", c.Categories, &opts.Categories)
	list("test", c.Tests, &opts.Tests)
	str("tests-file", c.TestsFile, &opts.TestsFile)
	list("request-file", c.RequestFiles, &opts.RequestFiles)
	str("expect-status", c.ExpectStatus, &opts.ExpectStatus)
	boolean("verbatim", c.Verbatim, &opts.RequestVerbatim)

	dur("timeout", c.Timeout, &opts.Timeout)
	dur("connect-timeout", c.ConnectTimeout, &opts.ConnectTimeout)
	dur("read-timeout", c.ReadTimeout, &opts.ReadTimeout)
	dur("drain-delay", c.DrainDelay, &opts.DrainDelay)
	dur("liveness-delay", c.LivenessDelay, &opts.LivenessDelay)
	dur("delay", c.Delay, &opts.Delay)
	boolean("adaptive-throttle", c.AdaptiveThrottle, &opts.AdaptiveThrottle)
	if c.Rate != nil && set("rate") {
		opts.Rate = *c.Rate
	}
	integer("concurrency", c.Concurrency, &opts.Concurrency)

	str("output", c.Output, &opts.OutputFile)
	str("format", c.Format, &opts.OutputFormat)
	boolean("verbose", c.Verbose, &opts.Verbose)
	boolean("quiet", c.Quiet, &opts.Quiet)
	boolean("no-color", c.NoColor, &opts.NoColor)
	str("sort", c.Sort, &opts.Sort)
	boolean("tree", c.Tree, &opts.Tree)
	list("only", c.Only, &opts.Only)
	list("hide", c.Hide, &opts.Hide)
	boolean("scored-only", c.ScoredOnly, &opts.ScoredOnly)
	str("on-result", c.OnResult, &opts.OnResult)
}
