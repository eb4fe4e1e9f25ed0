package interaction

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

func choiceOptions() []resource.ChoiceOption {
	return []resource.ChoiceOption{
		{Label: "Create bastion host", Value: "create", MonthlyCost: 143.65},
		{Label: "Use public IP instead", Value: "fallback", MonthlyCost: 3.65},
		{Label: "Cancel", Value: "cancel"},
	}
}

func TestTerminal_Choice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "first option", input: "1\n", want: "create"},
		{name: "second option", input: "2\n", want: "fallback"},
		{name: "cancel option", input: "3\n", want: "cancel"},
		{name: "retry after junk", input: "x\n1\n", want: "create"},
		{name: "out of range then valid", input: "9\n2\n", want: "fallback"},
		{name: "attempts exhausted cancels", input: "a\nb\nc\n", want: "cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminalWithIO(strings.NewReader(tt.input), &out, true)

			got, err := term.Choice("Provision shared bastion?", choiceOptions())
			if err != nil {
				t.Fatalf("Choice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Choice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTerminal_Choice_ShowsCosts(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWithIO(strings.NewReader("1\n"), &out, true)

	if _, err := term.Choice("Provision shared bastion?", choiceOptions()); err != nil {
		t.Fatalf("Choice() error = %v", err)
	}
	if !strings.Contains(out.String(), "$143.65/month") {
		t.Errorf("Choice() output missing cost figure:\n%s", out.String())
	}
}

func TestTerminal_Choice_NonTTYFailsClosed(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWithIO(strings.NewReader("1\n"), &out, false)

	got, err := term.Choice("Provision shared bastion?", choiceOptions())
	if err != nil {
		t.Fatalf("Choice() error = %v", err)
	}
	if got != "cancel" {
		t.Errorf("Choice() off TTY = %q, want cancel", got)
	}
}

func TestTerminal_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		isTTY bool
		want  bool
	}{
		{name: "exact token approves", input: "delete\n", isTTY: true, want: true},
		{name: "token with whitespace approves", input: "  delete \n", isTTY: true, want: true},
		{name: "wrong token declines", input: "yes\n", isTTY: true, want: false},
		{name: "explicit cancel declines", input: "cancel\n", isTTY: true, want: false},
		{name: "empty input declines", input: "\n", isTTY: true, want: false},
		{name: "non-TTY declines", input: "delete\n", isTTY: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminalWithIO(strings.NewReader(tt.input), &out, tt.isTTY)

			if got := term.Confirm("type delete to proceed", "delete"); got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
		})
	}
}
