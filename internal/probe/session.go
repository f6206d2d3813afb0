package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// ExecSessionProbe lists active sessions by running a command (who by
// default) whose output carries the account name in the first column
// of each line.
type ExecSessionProbe struct {
	Command string
}

// NewExecSessionProbe builds a probe around the given command; an
// empty command defaults to who.
func NewExecSessionProbe(command string) *ExecSessionProbe {
	if command == "" {
		command = "who"
	}
	return &ExecSessionProbe{Command: command}
}

func (p *ExecSessionProbe) HasActiveSession(ctx context.Context, accountID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.Command).Output()
	if err != nil {
		return false, fmt.Errorf("session probe %q: %w", p.Command, err)
	}
	return sessionListed(string(out), accountID), nil
}

// sessionListed scans session listing output for the account name in
// the first column. Matching is case-insensitive to mirror account ID
// normalization.
func sessionListed(output, accountID string) bool {
	for line := range strings.Lines(output) {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.EqualFold(fields[0], accountID) {
			return true
		}
	}
	return false
}
