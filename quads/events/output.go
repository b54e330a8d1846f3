package events

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string. Noisy events
// (deduped tuples, match bookkeeping) format to "" and are skipped.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case TupleAdded:
		return fmt.Sprintf("%s %s %v",
			latency,
			f.colorize("+", color.FgGreen),
			event.Data["tuple"])

	case TupleRemoved:
		return fmt.Sprintf("%s %s %v",
			latency,
			f.colorize("-", color.FgRed),
			event.Data["tuple"])

	case TupleDeduped, MatchOpened:
		return ""

	case CascadeBegin:
		return fmt.Sprintf("%s %s cascade from %v",
			latency,
			f.colorize("===", color.FgYellow),
			event.Data["tuple"])

	case CascadeComplete:
		return fmt.Sprintf("%s %s Cascade done with %s over %s.",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("tuples", event.Data["tuples.added"].(int)),
			f.colorizeCount("steps", event.Data["steps"].(int)))

	case RuleFired:
		ruleStr := f.wrap("Rule(", fmt.Sprint(event.Data["rule"]), ")")
		produced := event.Data["produced"].(int)
		if f.useColor {
			return fmt.Sprintf("%s %s {%v}%s%s",
				latency,
				ruleStr,
				event.Data["bindings"],
				color.YellowString(" → "),
				f.colorizeCount("tuples", produced))
		}
		return fmt.Sprintf("%s %s {%v} → %d tuples",
			latency, ruleStr, event.Data["bindings"], produced)

	case MatchDiscarded:
		return fmt.Sprintf("%s %s blocked %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["match"])

	case RuleWatched:
		return fmt.Sprintf("%s watching %s",
			latency,
			f.wrap("Pattern(", fmt.Sprint(event.Data["pattern"]), ")"))

	case RuleUnwatched:
		return fmt.Sprintf("%s unwatched %s",
			latency,
			f.wrap("Rule(", fmt.Sprint(event.Data["rule"]), ")"))

	case QueryInvoked:
		return fmt.Sprintf("%s Query: %s", latency, truncate(fmt.Sprint(event.Data["pattern"])))

	case QueryComplete:
		return fmt.Sprintf("%s %s Query done with %s.",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("matches", event.Data["matches"].(int)))

	case TxApplied:
		return fmt.Sprintf("%s tx applied with %s and %s",
			latency,
			f.colorizeCount("additions", event.Data["additions"].(int)),
			f.colorizeCount("removals", event.Data["removals"].(int)))

	case RuleActivated:
		return fmt.Sprintf("%s %s rule %v activated",
			latency,
			f.colorize("⚡", color.FgYellow),
			event.Data["rule"])

	case RuleDeactivated:
		return fmt.Sprintf("%s rule %v deactivated", latency, event.Data["rule"])

	case ErrorProduction, ErrorRuleDefinition:
		return fmt.Sprintf("%s %s %v: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["rule"],
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		us := d.Microseconds()
		s := fmt.Sprintf("[%dµs]", us)
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, colored by label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "tuples", "additions", "removals":
		return color.MagentaString(text)
	case "matches", "steps":
		return color.CyanString(text)
	default:
		return text
	}
}

// wrap renders prefix+body+suffix with the blue/cyan label scheme.
func (f *OutputFormatter) wrap(prefix, body, suffix string) string {
	if !f.useColor {
		return prefix + body + suffix
	}
	return color.BlueString(prefix) + color.CyanString(body) + color.BlueString(suffix)
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncate shortens long pattern text for display.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	const maxLen = 80
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen-3] + "..."
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	formatter := NewOutputFormatter(os.Stdout)
	return formatter.Handle
}

// isTerminal checks if the file descriptor is a terminal.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2) // stdout or stderr
}
