package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandSink runs shell command templates for desktop notifications and the
// alert sound, e.g. `notify-send 'Souk' '{{.Body}}'` and `paplay ding.oga`.
type CommandSink struct {
	command string
	sound   string
	run     func(ctx context.Context, cmdStr string) error
}

// CommandSinkOpts holds parameters for creating a CommandSink.
type CommandSinkOpts struct {
	Command string // notification command template; empty disables toasts
	Sound   string // sound command; empty disables sound
	// For testing: replaces shell execution.
	Run func(ctx context.Context, cmdStr string) error
}

// NewCommandSink creates a CommandSink.
func NewCommandSink(opts CommandSinkOpts) (*CommandSink, error) {
	if opts.Command == "" && opts.Sound == "" {
		return nil, fmt.Errorf("notify: command sink needs a command or a sound")
	}
	run := opts.Run
	if run == nil {
		run = runShell
	}
	return &CommandSink{command: opts.Command, sound: opts.Sound, run: run}, nil
}

// Notify runs the notification command with the alert's fields substituted,
// then the sound command when the alert asks for it. The sound is best-effort
// even within the sink: its failure never masks a delivered toast.
func (c *CommandSink) Notify(ctx context.Context, alert Alert) error {
	var cmdErr error
	if c.command != "" {
		if err := c.run(ctx, templateAlert(c.command, alert)); err != nil {
			cmdErr = fmt.Errorf("notify: command: %w", err)
		}
	}
	if alert.Sound && c.sound != "" {
		if err := c.run(ctx, c.sound); err != nil && cmdErr == nil {
			cmdErr = fmt.Errorf("notify: sound: %w", err)
		}
	}
	return cmdErr
}

// Close is a no-op; shell commands hold no resources.
func (c *CommandSink) Close() error { return nil }

func runShell(ctx context.Context, cmdStr string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// templateAlert replaces placeholders in the command template with alert
// values, shell-quoted.
func templateAlert(command string, alert Alert) string {
	r := strings.NewReplacer(
		"{{.Title}}", shellQuote(alert.Title),
		"{{.Body}}", shellQuote(alert.Body),
		"{{.Count}}", strconv.Itoa(alert.Count),
	)
	return r.Replace(command)
}

// shellQuote makes a value safe inside a single-quoted shell word.
func shellQuote(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
