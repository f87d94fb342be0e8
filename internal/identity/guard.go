package identity

import (
	"context"
	"fmt"
)

// AuthorizationError reports a caller attempting to act as another agent.
type AuthorizationError struct {
	CallerID  string
	ClaimedID string
}

func (e *AuthorizationError) Error() string {
	if e.CallerID == "" {
		return fmt.Sprintf("unauthenticated connection cannot act as agent %q", e.ClaimedID)
	}
	return fmt.Sprintf("agent %q is not authorized to act as %q", e.CallerID, e.ClaimedID)
}

// Resolver maps a request context to the authenticated agent identity of the
// underlying connection. Transports install the identity at accept time.
type Resolver interface {
	AgentID(ctx context.Context) (string, bool)
}

type ctxKey struct{}

// WithAgent returns a context carrying the authenticated agent id.
func WithAgent(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, agentID)
}

// ContextResolver resolves identities stored by WithAgent.
type ContextResolver struct{}

func (ContextResolver) AgentID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Guard rejects requests whose claimed agent id does not match the
// connection's authenticated identity. Every mutating RPC goes through Assert
// before any state is touched.
type Guard struct {
	resolver Resolver
}

func NewGuard(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Assert returns nil when the connection behind ctx is authenticated as
// claimedID. The caller's real identity is never substituted for the claim.
func (g *Guard) Assert(ctx context.Context, claimedID string) error {
	callerID, ok := g.resolver.AgentID(ctx)
	if !ok {
		return &AuthorizationError{ClaimedID: claimedID}
	}
	if callerID != claimedID {
		return &AuthorizationError{CallerID: callerID, ClaimedID: claimedID}
	}
	return nil
}
