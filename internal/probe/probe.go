// Package probe answers the two runtime questions the reaping engine
// asks about an account: does it have an active interactive session,
// and does it still resolve as a known account.
package probe

import "context"

// SessionProbe reports whether an account has an active interactive
// session on this machine.
type SessionProbe interface {
	HasActiveSession(ctx context.Context, accountID string) (bool, error)
}

// DomainProbe reports whether an account identifier resolves as a
// known account. A false return with a nil error means the probe
// explicitly reported the account as unknown; a non-nil error means
// the outcome is ambiguous and callers must not treat it as a
// mismatch.
type DomainProbe interface {
	Resolves(ctx context.Context, accountID string) (bool, error)
}

// SessionFunc adapts a function to SessionProbe.
type SessionFunc func(ctx context.Context, accountID string) (bool, error)

func (f SessionFunc) HasActiveSession(ctx context.Context, accountID string) (bool, error) {
	return f(ctx, accountID)
}

// DomainFunc adapts a function to DomainProbe.
type DomainFunc func(ctx context.Context, accountID string) (bool, error)

func (f DomainFunc) Resolves(ctx context.Context, accountID string) (bool, error) {
	return f(ctx, accountID)
}
