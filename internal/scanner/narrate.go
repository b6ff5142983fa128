package scanner

import (
	"fmt"
	"strings"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
)

const (
	notExecuted = "[Not executed: connection closed]"
	noResponse  = "[No response]"
)

func section(label, body string) string {
	return "── " + label + " ──\n" + body
}

// partsText renders a step's request. A plain single write is shown as is;
// split writes are labelled and their pauses noted.
func partsText(parts []testcase.SendPart) string {
	if len(parts) == 1 && parts[0].DelayAfter == 0 && parts[0].Label == "" {
		text, _ := response.RawText(parts[0].Data)
		return text
	}
	var sb strings.Builder
	for i, p := range parts {
		header := fmt.Sprintf("Part %d", i+1)
		if p.Label != "" {
			header += ": " + p.Label
		}
		text, _ := response.RawText(p.Data)
		fmt.Fprintf(&sb, "[%s]\n%s\n", header, text)
		if p.DelayAfter > 0 {
			fmt.Fprintf(&sb, "[Pause %d ms]\n", p.DelayAfter.Milliseconds())
		}
	}
	return strings.TrimRight(sb.String(), "\r\n")
}

// stepsText joins every step's raw response into one narrative.
func stepsText(steps []testcase.StepResult) string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		switch {
		case !s.Executed:
			out = append(out, section(s.Label, notExecuted))
		case s.Response != nil:
			out = append(out, section(s.Label, s.Response.Raw))
		default:
			out = append(out, section(s.Label, noResponse))
		}
	}
	return strings.Join(out, "\n\n")
}
