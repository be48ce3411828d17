// Package output handles CLI output formatting including verbose mode and progress indicators.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	// headingStyle marks section titles in the run summary.
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)

	// warnStyle highlights files that need operator attention.
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))

	// mutedStyle is used for secondary detail such as explanations.
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose and progress support.
type Output struct {
	config          Config
	progressActive  bool
	progressTotal   int
	progressCurrent int
	progressMu      sync.Mutex
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{
		config: config,
	}
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(o.config.Writer, msg)
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(o.config.Writer, msg)
}

// Heading prints a styled section title.
func (o *Output) Heading(title string) {
	o.clearProgressLine()
	fmt.Fprintln(o.config.Writer, o.style(headingStyle, title))
}

// Warn prints a highlighted message to stdout.
func (o *Output) Warn(format string, args ...interface{}) {
	o.clearProgressLine()
	msg := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(o.config.Writer, o.style(warnStyle, msg))
}

// Detail prints an indented secondary line, muted on a terminal.
func (o *Output) Detail(format string, args ...interface{}) {
	o.clearProgressLine()
	msg := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(o.config.Writer, "    "+o.style(mutedStyle, msg))
}

// style renders s with st on a terminal and returns it unchanged otherwise,
// so piped output and logs stay free of escape sequences.
func (o *Output) style(st lipgloss.Style, s string) string {
	if !o.config.IsTTY {
		return s
	}
	return st.Render(s)
}

// Bytes formats a byte count for humans, e.g. "4.2 MB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(o.config.ErrWriter, msg)
}

// clearProgressLine clears the current progress line if active.
func (o *Output) clearProgressLine() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.progressActive && o.config.IsTTY {
		// Clear the line with spaces and return to start
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
	}
}

// StartProgress begins a progress indicator session.
func (o *Output) StartProgress(total int) {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.progressActive = true
	o.progressTotal = total
	o.progressCurrent = 0
}

// UpdateProgress updates the progress indicator.
func (o *Output) UpdateProgress(current int, message string) {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressCurrent = current
	// Use carriage return for in-place updates
	progressMsg := fmt.Sprintf("\rExamining file %d/%d...", current, o.progressTotal)
	if message != "" {
		progressMsg = fmt.Sprintf("\r%s %d/%d...", message, current, o.progressTotal)
	}
	fmt.Fprint(o.config.Writer, progressMsg)
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressActive = false
	// Clear the line with spaces and return to start
	fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
