package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, TraceIDLength*2)
	assert.NotEqual(t, id, GetTraceID(SetTraceID(context.Background())))
	assert.Len(t, generateFallbackTraceID(), TraceIDLength*2)
}

func TestAuthorizationContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.False(t, IsAuthorized(ctx))
	_, ok := AuthContext(ctx)
	assert.False(t, ok)

	plain := WithAuthorization(ctx, nil)
	assert.True(t, IsAuthorized(plain))
	_, ok = AuthContext(plain)
	assert.False(t, ok)

	withCtx := WithAuthorization(ctx, map[string]any{"role": "admin"})
	v, ok := AuthContext(withCtx)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"role": "admin"}, v)
}

func TestCredentials(t *testing.T) {
	t.Parallel()

	_, ok := Credentials(context.Background())
	assert.False(t, ok)

	v, ok := Credentials(WithCredentials(context.Background(), "claims"))
	assert.True(t, ok)
	assert.Equal(t, "claims", v)
}
