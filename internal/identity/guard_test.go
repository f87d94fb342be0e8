package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertMatchingIdentity(t *testing.T) {
	g := NewGuard(ContextResolver{})
	ctx := WithAgent(context.Background(), "alice")
	assert.NoError(t, g.Assert(ctx, "alice"))
}

func TestAssertImpersonationRejected(t *testing.T) {
	g := NewGuard(ContextResolver{})
	ctx := WithAgent(context.Background(), "eve")

	err := g.Assert(ctx, "bob")
	require.Error(t, err)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "eve", authErr.CallerID)
	assert.Equal(t, "bob", authErr.ClaimedID)
	assert.Contains(t, err.Error(), `"bob"`)
}

func TestAssertUnauthenticatedConnection(t *testing.T) {
	g := NewGuard(ContextResolver{})

	err := g.Assert(context.Background(), "bob")
	require.Error(t, err)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, authErr.CallerID)
}

type staticResolver string

func (r staticResolver) AgentID(context.Context) (string, bool) {
	return string(r), r != ""
}

func TestGuardUsesInjectedResolver(t *testing.T) {
	g := NewGuard(staticResolver("carol"))
	assert.NoError(t, g.Assert(context.Background(), "carol"))
	assert.Error(t, g.Assert(context.Background(), "dave"))
}
