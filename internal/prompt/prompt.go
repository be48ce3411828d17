// Package prompt asks the operator to confirm destructive batch steps.
//
// The orchestrator only depends on the Prompter interface so the pipeline can
// run headlessly with a Scripted prompter in tests.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Answer is the operator's reply to a confirmation.
type Answer int

const (
	// No declines the step; the batch carries on with the next step.
	No Answer = iota
	// Yes accepts the step.
	Yes
	// Abort declines the step and every later destructive step.
	Abort
)

func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("answer(%d)", int(a))
	}
}

// ErrAborted is returned by Choose when the operator aborts.
var ErrAborted = errors.New("aborted by operator")

// Option is one entry of a multiple-choice prompt.
type Option struct {
	Name  string // Shown to the operator
	Value string // Returned by Choose
}

// Prompter asks the operator questions. Implementations are used from a
// single goroutine; prompts are never issued concurrently.
type Prompter interface {
	// Confirm asks a yes/no question that can also be aborted.
	Confirm(message string) (Answer, error)
	// Choose asks the operator to pick one of options and returns its Value,
	// or ErrAborted.
	Choose(label string, options []Option) (string, error)
}

// IsInteractive returns true if stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Terminal prompts on a reader/writer pair, normally os.Stdin and os.Stdout.
type Terminal struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewTerminal creates a Terminal prompter with the given reader and writer.
// Use os.Stdin and os.Stdout for normal operation, or buffers for testing.
func NewTerminal(reader io.Reader, writer io.Writer) *Terminal {
	return &Terminal{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// readLine returns the next trimmed, lower-cased line. ok is false at EOF.
func (p *Terminal) readLine() (line string, ok bool, err error) {
	text, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(text) == "" {
				return "", false, nil
			}
		} else {
			return "", false, fmt.Errorf("error reading input: %w", err)
		}
	}
	return strings.TrimSpace(strings.ToLower(text)), true, nil
}

// Confirm prints message and reads y/n/q. End of input counts as abort.
func (p *Terminal) Confirm(message string) (Answer, error) {
	fmt.Fprintf(p.writer, "%s (y)es, (n)o, (q)uit: ", message)

	input, ok, err := p.readLine()
	if err != nil {
		return Abort, err
	}
	if !ok {
		return Abort, nil
	}

	switch input {
	case "y", "yes":
		return Yes, nil
	case "n", "no", "":
		return No, nil
	case "q", "quit", "a", "abort":
		return Abort, nil
	default:
		// Invalid input, default to no for safety
		fmt.Fprintf(p.writer, "Invalid input '%s', treating as no.\n", input)
		return No, nil
	}
}

// Choose prints the numbered options and reads a number or an option name.
// Invalid input asks again; "q" or end of input aborts.
func (p *Terminal) Choose(label string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", ErrAborted
	}

	fmt.Fprintf(p.writer, "\n%s\n", label)
	for i, opt := range options {
		fmt.Fprintf(p.writer, "  %d) %s\n", i+1, opt.Name)
	}

	for {
		fmt.Fprintf(p.writer, "Choose 1-%d or (q)uit: ", len(options))

		input, ok, err := p.readLine()
		if err != nil {
			return "", err
		}
		if !ok || input == "q" || input == "quit" {
			return "", ErrAborted
		}

		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
			return options[n-1].Value, nil
		}
		for _, opt := range options {
			if strings.ToLower(opt.Name) == input || strings.ToLower(opt.Value) == input {
				return opt.Value, nil
			}
		}
		fmt.Fprintf(p.writer, "Invalid choice '%s'.\n", input)
	}
}

// AssumeNo answers every confirmation with No and every choice with its first
// option. It stands in for the operator when stdin is not a terminal, so
// nothing destructive happens unattended.
type AssumeNo struct{}

func (AssumeNo) Confirm(string) (Answer, error) { return No, nil }

func (AssumeNo) Choose(_ string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", ErrAborted
	}
	return options[0].Value, nil
}

// Scripted replays canned replies. It records every message it was asked.
type Scripted struct {
	Answers []Answer
	Choices []string
	Asked   []string
}

// Confirm returns the next scripted answer, or Abort when none are left.
func (s *Scripted) Confirm(message string) (Answer, error) {
	s.Asked = append(s.Asked, message)
	if len(s.Answers) == 0 {
		return Abort, nil
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}

// Choose returns the next scripted choice, or ErrAborted when none are left.
func (s *Scripted) Choose(label string, options []Option) (string, error) {
	s.Asked = append(s.Asked, label)
	if len(s.Choices) == 0 {
		return "", ErrAborted
	}
	c := s.Choices[0]
	s.Choices = s.Choices[1:]
	for _, opt := range options {
		if opt.Value == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("scripted choice %q is not one of the options", c)
}
