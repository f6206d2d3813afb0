package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecDomainProbe resolves an account name by running an account
// lookup command (id by default). Only an explicit "no such user"
// style failure counts as unresolvable; any other failure is a probe
// error and is reported as ambiguous.
type ExecDomainProbe struct {
	Command string
}

// NewExecDomainProbe builds a probe around the given command; an
// empty command defaults to id.
func NewExecDomainProbe(command string) *ExecDomainProbe {
	if command == "" {
		command = "id"
	}
	return &ExecDomainProbe{Command: command}
}

func (p *ExecDomainProbe) Resolves(ctx context.Context, accountID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// Output (not Run) so the ExitError carries captured stderr.
	_, err := exec.CommandContext(ctx, p.Command, "-u", accountID).Output()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && explicitNotFound(string(exitErr.Stderr)) {
		return false, nil
	}
	return false, fmt.Errorf("domain probe %q: %w", p.Command, err)
}

// explicitNotFound recognizes the lookup command's own "unknown
// account" diagnostics, as opposed to failures of the probe itself.
func explicitNotFound(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no such user") || strings.Contains(s, "unknown user")
}
