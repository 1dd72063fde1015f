package trace

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter renders Events as human-readable lines, used as a
// Handler for interactive -explain runs.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter builds a formatter writing to w (os.Stdout if nil),
// auto-detecting color support.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f)
	}
	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements Handler.
func (f *OutputFormatter) Handle(event Event) {
	if line := f.Format(event); line != "" {
		fmt.Fprintln(f.writer, line)
	}
}

// Format renders a single event. Unrecognized event names fall back to a
// generic "name +latency data" line rather than being dropped, so a new
// event kind is never silently invisible.
func (f *OutputFormatter) Format(event Event) string {
	latency := formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Query: %v", latency, event.Data["query"])

	case QueryPlanned:
		return fmt.Sprintf("\n%v\n", event.Data["plan"])

	case QueryComplete:
		if ok, _ := event.Data["success"].(bool); !ok {
			return fmt.Sprintf("%s %s query failed: %v", latency, f.colorize("✗", color.FgRed), event.Data["error"])
		}
		return fmt.Sprintf("%s %s done with %s", latency, f.colorize("===", color.FgGreen), f.colorizeCount("rows", event.Data["rows.count"]))

	case StageBegin:
		return fmt.Sprintf("%s %s %v starting", latency, f.colorize("===", color.FgYellow), event.Data["stage"])

	case StageComplete:
		return fmt.Sprintf("%s %v completed with %s", latency, event.Data["stage"], f.colorizeCount("rows", event.Data["rows.count"]))

	case InstructionOpened:
		return fmt.Sprintf("%s instruction %v opened, %s", latency, event.Data["instruction"], f.colorizeCount("rows", event.Data["rows.count"]))

	case MergeJoinExecuted:
		left, _ := event.Data["left.size"].(int)
		right, _ := event.Data["right.size"].(int)
		result, _ := event.Data["result.size"].(int)
		marker := ""
		if result > left*right/2 && left*right > 0 {
			marker = f.colorize(" ⚠ wide join", color.FgYellow)
		}
		return fmt.Sprintf("%s merge-join %d × %d → %d%s", latency, left, right, result, marker)

	case TabledCallAcquired, TabledCallWouldBlock, TabledCallSuspended, TabledCallPoisoned:
		return fmt.Sprintf("%s %s key=%v", latency, event.Name, event.Data["call.key"])

	case ReduceGrouped:
		return fmt.Sprintf("%s reduce grouped %v rows into %v groups", latency, event.Data["rows.count"], event.Data["groups.count"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func (f *OutputFormatter) colorize(s string, attr color.Attribute) string {
	if !f.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}

func (f *OutputFormatter) colorizeCount(label string, count interface{}) string {
	n, _ := count.(int)
	if !f.useColor {
		return fmt.Sprintf("%d %s", n, label)
	}
	str := fmt.Sprintf("%d", n)
	switch {
	case n == 0:
		str = color.RedString(str)
	case n < 100:
		str = color.GreenString(str)
	case n < 10000:
		str = color.YellowString(str)
	default:
		str = color.RedString(str)
	}
	return fmt.Sprintf("%s %s", str, label)
}

func formatLatency(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 0.001:
		return fmt.Sprintf("[%6.0fµs]", secs*1e6)
	case secs < 1:
		return fmt.Sprintf("[%6.1fms]", secs*1e3)
	default:
		return fmt.Sprintf("[%6.2fs ]", secs)
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
