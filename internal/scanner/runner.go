// Package scanner drives test definitions against a target: one fresh
// connection per single-shot test, one retained connection per sequence,
// strictly one test at a time per target.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maxvaer/http11probe/internal/filter"
	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

// DefaultLivenessDelay is the pause between an Open read and the second
// liveness check.
const DefaultLivenessDelay = 50 * time.Millisecond

// Config holds everything a Runner needs for one target.
type Config struct {
	Target    testcase.Target
	Transport transport.Config
	// LivenessDelay: zero means DefaultLivenessDelay, negative means none.
	LivenessDelay time.Duration
	Selection     *filter.Selection // nil runs everything
	Throttler     *Throttler        // nil = no pacing
	Pauser        *Pauser           // nil = no pause support
}

// Runner executes definitions against a single target. It is not safe for
// concurrent use; fan out with RunTargetPool instead.
type Runner struct {
	cfg Config
}

// NewRunner creates a Runner for cfg.Target.
func NewRunner(cfg Config) *Runner {
	switch {
	case cfg.LivenessDelay == 0:
		cfg.LivenessDelay = DefaultLivenessDelay
	case cfg.LivenessDelay < 0:
		cfg.LivenessDelay = 0
	}
	return &Runner{cfg: cfg}
}

// Run executes cases in order. Excluded cases yield Skip results without
// touching the network. onResult, if non-nil, is called for every executed
// result as soon as it is available. Cancellation is only observed between
// tests; on cancellation the partial report is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, cases []testcase.Case, onResult func(testcase.Result)) (*testcase.Report, error) {
	start := time.Now()
	report := &testcase.Report{Target: r.cfg.Target, Results: make([]testcase.Result, 0, len(cases))}

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		if !r.cfg.Selection.Includes(c.Metadata()) {
			report.Results = append(report.Results, testcase.Result{
				Case:            c,
				Target:          r.cfg.Target,
				Verdict:         testcase.Skip,
				ConnectionState: transport.Open,
			})
			continue
		}

		if err := r.cfg.Pauser.WaitContext(ctx); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		if err := r.cfg.Throttler.Wait(ctx); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		res := r.RunCase(ctx, c)
		r.cfg.Throttler.Record(res)
		report.Results = append(report.Results, res)
		if onResult != nil {
			onResult(res)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// RunCase executes one definition regardless of the selection.
func (r *Runner) RunCase(ctx context.Context, c testcase.Case) testcase.Result {
	switch tc := c.(type) {
	case *testcase.TestCase:
		return r.runSingle(ctx, tc)
	case *testcase.SequenceTestCase:
		return r.runSequence(ctx, tc)
	default:
		return testcase.Result{
			Case:            c,
			Target:          r.cfg.Target,
			Verdict:         testcase.Error,
			ConnectionState: transport.Error,
			ErrorMessage:    fmt.Sprintf("unknown test case type %T", c),
		}
	}
}

func (r *Runner) runSingle(ctx context.Context, tc *testcase.TestCase) (res testcase.Result) {
	start := time.Now()
	res = testcase.Result{Case: tc, Target: r.cfg.Target}
	defer func() {
		if p := recover(); p != nil {
			res = errorResult(tc, r.cfg.Target, p)
		}
		res.Duration = time.Since(start)
	}()

	client := transport.New(r.cfg.Transport)
	defer client.Close()

	if state, err := client.Connect(ctx, r.cfg.Target.Host, r.cfg.Target.Port); state != transport.Open {
		res.Verdict = testcase.Error
		res.ConnectionState = state
		res.ErrorMessage = connectFailure(state, err)
		return res
	}

	payload := tc.Payload(r.cfg.Target)
	res.RawRequest, _ = response.RawText(payload)
	// A failed write is not fatal: servers often answer and close before a
	// large or malformed request has been fully written.
	if err := client.Send(payload); errors.Is(err, transport.ErrNotConnected) {
		res.Verdict = testcase.Error
		res.ConnectionState = transport.Error
		res.ErrorMessage = err.Error()
		return res
	}

	capture := client.ReadResponse()
	resp := response.Parse(capture.Data)
	state := r.settle(client, capture.State)
	res.DoubleFlush = capture.DoubleFlush
	res.RawResponse, _ = response.RawText(capture.Data)

	if tc.RequiresConnectionReuse && tc.FollowUp != nil && state == transport.Open {
		followUp := tc.FollowUp(r.cfg.Target)
		followText, _ := response.RawText(followUp)
		res.RawRequest += "\n\n" + section("Follow-up", followText)

		if err := client.Send(followUp); err != nil {
			state = transport.ClosedByServer
		} else {
			fc := client.ReadResponse()
			res.FollowUpResponse = response.Parse(fc.Data)
			state = r.settle(client, fc.State)
			if fc.DoubleFlush {
				res.DoubleFlush = true
			}
			if len(fc.Data) > 0 {
				text, _ := response.RawText(fc.Data)
				res.RawResponse += "\n\n" + section("Follow-up", text)
			}
		}
	}

	res.Response = resp
	res.ConnectionState = state
	res.Verdict = tc.Expected.Evaluate(resp, state)
	if tc.Analyze != nil {
		res.BehavioralNote = tc.Analyze(resp)
	}
	return res
}

func (r *Runner) runSequence(ctx context.Context, seq *testcase.SequenceTestCase) (res testcase.Result) {
	start := time.Now()
	res = testcase.Result{Case: seq, Target: r.cfg.Target}
	defer func() {
		if p := recover(); p != nil {
			res = errorResult(seq, r.cfg.Target, p)
		}
		res.Duration = time.Since(start)
	}()

	if seq.Validate == nil {
		res.Verdict = testcase.Error
		res.ConnectionState = transport.Error
		res.ErrorMessage = "sequence has no validator"
		return res
	}

	client := transport.New(r.cfg.Transport)
	defer client.Close()

	if state, err := client.Connect(ctx, r.cfg.Target.Host, r.cfg.Target.Port); state != transport.Open {
		res.Verdict = testcase.Error
		res.ConnectionState = state
		res.ErrorMessage = connectFailure(state, err)
		return res
	}

	var (
		steps    = make([]testcase.StepResult, 0, len(seq.Steps))
		rawReqs  []string
		lastResp *response.Response
		state    = transport.Open
	)

	for i, step := range seq.Steps {
		label := step.Label
		if label == "" {
			label = fmt.Sprintf("Step %d", i+1)
		}

		// Once the connection is gone nothing further is generated or
		// sent; dynamic steps never see a missing dependency.
		if state != transport.Open {
			steps = append(steps, testcase.StepResult{Label: label, ConnectionState: state})
			rawReqs = append(rawReqs, section(label, notExecuted))
			continue
		}

		parts := stepParts(step, r.cfg.Target, steps)
		if parts == nil {
			panic(fmt.Sprintf("sequence step %q has no payload", label))
		}
		rawReq := partsText(parts)
		rawReqs = append(rawReqs, section(label, rawReq))

		if r.sendParts(client, parts) == transport.Error {
			state = transport.Error
			steps = append(steps, testcase.StepResult{Label: label, ConnectionState: state, RawRequest: rawReq})
			continue
		}

		// Read even after a failed or interrupted send: a server that gave
		// up on a partial request may still have answered before closing.
		capture := client.ReadResponse()
		resp := response.Parse(capture.Data)
		state = r.settle(client, capture.State)
		if capture.DoubleFlush {
			res.DoubleFlush = true
		}
		if resp == nil && state != transport.Open {
			steps = append(steps, testcase.StepResult{Label: label, ConnectionState: state, RawRequest: rawReq})
			continue
		}
		if resp != nil {
			lastResp = resp
		}
		steps = append(steps, testcase.StepResult{
			Label:           label,
			Executed:        true,
			Response:        resp,
			ConnectionState: state,
			RawRequest:      rawReq,
		})
	}

	res.Steps = steps
	res.Response = lastResp
	res.ConnectionState = state
	res.RawRequest = strings.Join(rawReqs, "\n\n")
	res.RawResponse = stepsText(steps)
	res.Verdict = seq.Validate(steps)
	if seq.Analyze != nil {
		res.BehavioralNote = seq.Analyze(steps)
	}
	return res
}

// settle gives the server a moment to close a connection it has decided
// to drop, then takes a second liveness reading.
func (r *Runner) settle(client *transport.Client, state transport.ConnectionState) transport.ConnectionState {
	if state != transport.Open {
		return state
	}
	if r.cfg.LivenessDelay > 0 {
		time.Sleep(r.cfg.LivenessDelay)
	}
	return client.CheckLiveness()
}

// sendParts writes each part in turn, pausing and re-checking liveness
// after parts that carry a delay.
func (r *Runner) sendParts(client *transport.Client, parts []testcase.SendPart) transport.ConnectionState {
	for _, p := range parts {
		if err := client.Send(p.Data); err != nil {
			if errors.Is(err, transport.ErrNotConnected) {
				return transport.Error
			}
			return transport.ClosedByServer
		}
		if p.DelayAfter > 0 {
			time.Sleep(p.DelayAfter)
			if client.CheckLiveness() != transport.Open {
				return transport.ClosedByServer
			}
		}
	}
	return transport.Open
}

func stepParts(step testcase.Step, target testcase.Target, prior []testcase.StepResult) []testcase.SendPart {
	switch {
	case step.Parts != nil:
		return step.Parts(target)
	case step.Dynamic != nil:
		return []testcase.SendPart{{Data: step.Dynamic(target, prior)}}
	case step.Payload != nil:
		return []testcase.SendPart{{Data: step.Payload(target)}}
	default:
		return nil
	}
}

func errorResult(c testcase.Case, target testcase.Target, recovered any) testcase.Result {
	return testcase.Result{
		Case:            c,
		Target:          target,
		Verdict:         testcase.Error,
		ConnectionState: transport.Error,
		ErrorMessage:    fmt.Sprintf("%v", recovered),
	}
}

func connectFailure(state transport.ConnectionState, err error) string {
	if err != nil {
		return fmt.Sprintf("Failed to connect: %s: %v", state, err)
	}
	return fmt.Sprintf("Failed to connect: %s", state)
}
