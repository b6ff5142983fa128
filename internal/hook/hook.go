// Package hook runs a user command for each executed probe result.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// resultJSON is the JSON payload sent to the hook command via stdin.
type resultJSON struct {
	Target          string  `json:"target"`
	ID              string  `json:"id"`
	Category        string  `json:"category"`
	Scored          bool    `json:"scored"`
	Verdict         string  `json:"verdict"`
	StatusCode      int     `json:"status,omitempty"`
	ConnectionState string  `json:"connectionState"`
	Error           string  `json:"error,omitempty"`
	BehavioralNote  string  `json:"behavioralNote,omitempty"`
	DurationMs      float64 `json:"durationMs"`
	DoubleFlush     bool    `json:"doubleFlush,omitempty"`
}

// Runner executes a shell command for each executed result.
type Runner struct {
	cmd     string
	quiet   bool
	timeout time.Duration
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd string, quiet bool) *Runner {
	return &Runner{cmd: cmd, quiet: quiet, timeout: 30 * time.Second}
}

// Run executes the hook command with the result as JSON on stdin.
// The command runs with a 30-second timeout. Errors are logged but
// do not halt the run.
func (r *Runner) Run(result *testcase.Result) {
	meta := result.Meta()
	payload := resultJSON{
		Target:          result.Target.String(),
		ID:              meta.ID,
		Category:        string(meta.Category),
		Scored:          meta.Scored(),
		Verdict:         result.Verdict.String(),
		StatusCode:      result.Status(),
		ConnectionState: result.ConnectionState.String(),
		Error:           result.ErrorMessage,
		BehavioralNote:  result.BehavioralNote,
		DurationMs:      float64(result.Duration.Microseconds()) / 1000,
		DoubleFlush:     result.DoubleFlush,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[hook] marshal error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, Expand(r.cmd, result))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		if !r.quiet {
			fmt.Fprintf(os.Stderr, "[hook] error: %v\n", err)
		}
		return
	}

	if len(output) > 0 && !r.quiet {
		fmt.Fprintf(os.Stderr, "[hook] %s", output)
	}
}

// Expand replaces the {id}, {verdict}, {status}, {target} and {category}
// placeholders. {status} is 0 when no response was parsed.
func Expand(command string, result *testcase.Result) string {
	meta := result.Meta()
	return strings.NewReplacer(
		"{id}", meta.ID,
		"{verdict}", result.Verdict.String(),
		"{status}", strconv.Itoa(result.Status()),
		"{target}", result.Target.String(),
		"{category}", string(meta.Category),
	).Replace(command)
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
