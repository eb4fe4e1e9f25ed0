package interaction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

const maxChoiceAttempts = 3

// Terminal renders operator interaction to a console. Off a TTY it
// fails closed: choices resolve to cancel and confirmations to false,
// so an unattended run can never approve spending or deletion.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	isTTY bool
}

// NewTerminal creates an Interaction bound to stdin/stdout
func NewTerminal() *Terminal {
	return &Terminal{
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
		isTTY: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewTerminalWithIO creates a terminal with explicit streams. Used in
// tests and when stdin is piped.
func NewTerminalWithIO(in io.Reader, out io.Writer, isTTY bool) *Terminal {
	return &Terminal{
		in:    bufio.NewReader(in),
		out:   out,
		isTTY: isTTY,
	}
}

// Choice implements resource.Interaction
func (t *Terminal) Choice(prompt string, options []resource.ChoiceOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("choice with no options")
	}
	if !t.isTTY {
		t.Warn("not a terminal, cancelling choice: " + prompt)
		return cancelValue(options), nil
	}

	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, prompt)

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	for i, opt := range options {
		if opt.MonthlyCost > 0 {
			fmt.Fprintf(w, "  [%d] %s\t$%.2f/month\n", i+1, opt.Label, opt.MonthlyCost)
		} else {
			fmt.Fprintf(w, "  [%d] %s\t\n", i+1, opt.Label)
		}
	}
	w.Flush()

	for attempt := 0; attempt < maxChoiceAttempts; attempt++ {
		fmt.Fprintf(t.out, "Select [1-%d]: ", len(options))
		line, err := t.in.ReadString('\n')
		if err != nil {
			return cancelValue(options), nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(options) {
			fmt.Fprintf(t.out, "invalid selection %q\n", strings.TrimSpace(line))
			continue
		}
		return options[n-1].Value, nil
	}

	t.Warn("no valid selection, cancelling")
	return cancelValue(options), nil
}

// Confirm implements resource.Interaction. Only the exact token
// approves; anything else declines.
func (t *Terminal) Confirm(prompt, expectedToken string) bool {
	if !t.isTTY {
		t.Warn("not a terminal, declining confirmation: " + prompt)
		return false
	}

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "%s\n> ", prompt)
	line, err := t.in.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == expectedToken
}

// Info implements resource.Interaction
func (t *Terminal) Info(msg string) {
	fmt.Fprintln(t.out, "[*] "+msg)
}

// Warn implements resource.Interaction
func (t *Terminal) Warn(msg string) {
	fmt.Fprintln(t.out, "[!] "+msg)
}

// cancelValue finds the option that represents cancelling; the last
// option by convention when none is named "cancel".
func cancelValue(options []resource.ChoiceOption) string {
	for _, opt := range options {
		if opt.Value == "cancel" {
			return opt.Value
		}
	}
	return options[len(options)-1].Value
}
