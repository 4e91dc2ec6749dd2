package governkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestContextActorRoundTrip validates actor storage and retrieval.
func TestContextActorRoundTrip(t *testing.T) {
	ctx := context.Background()

	// Absent identity is anonymous, never privileged
	actor := GetActor(ctx)
	assert.Equal(t, RolePublic, actor.Role)
	assert.Empty(t, actor.ID)

	ctx = WithActor(ctx, Actor{ID: "user-1", Role: RoleManager})
	actor = GetActor(ctx)
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, RoleManager, actor.Role)
}

// TestContextMustGetActor validates the panic on missing identity.
func TestContextMustGetActor(t *testing.T) {
	assert.Panics(t, func() {
		MustGetActor(context.Background())
	})

	ctx := WithActor(context.Background(), Actor{ID: "user-1", Role: RoleAdmin})
	assert.NotPanics(t, func() {
		actor := MustGetActor(ctx)
		assert.Equal(t, "user-1", actor.ID)
	})
}

// TestContextAuditValues validates IP, user agent and request ID round trips.
func TestContextAuditValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetIPAddress(ctx))
	assert.Empty(t, GetUserAgent(ctx))
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithIPAddress(ctx, "203.0.113.9")
	ctx = WithUserAgent(ctx, "test-agent/1.0")
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, "203.0.113.9", GetIPAddress(ctx))
	assert.Equal(t, "test-agent/1.0", GetUserAgent(ctx))
	assert.Equal(t, "req-123", GetRequestID(ctx))
}

// TestContextAuditContextBundle validates the aggregate helpers.
func TestContextAuditContextBundle(t *testing.T) {
	ac := AuditContext{
		Actor:     Actor{ID: "user-1", Role: RoleAdvisor},
		IPAddress: "203.0.113.9",
		UserAgent: "test-agent/1.0",
		RequestID: "req-123",
	}

	ctx := WithAuditContext(context.Background(), ac)
	got := GetAuditContext(ctx)
	assert.Equal(t, ac, got)

	// Empty bundle leaves the context untouched
	ctx = WithAuditContext(context.Background(), AuditContext{})
	got = GetAuditContext(ctx)
	assert.Equal(t, Anonymous(), got.Actor)
	assert.Empty(t, got.RequestID)
}
