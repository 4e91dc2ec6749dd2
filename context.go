package governkit

import (
	"context"
)

// Context keys for GovernKit values.
type contextKey string

const (
	contextKeyActor     contextKey = "governkit:actor"
	contextKeyIPAddress contextKey = "governkit:ip_address"
	contextKeyUserAgent contextKey = "governkit:user_agent"
	contextKeyRequestID contextKey = "governkit:request_id"
)

// WithActor adds the authenticated actor to the context. The auth layer sets
// this once per request; the facade and middleware read it.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// GetActor retrieves the actor from context. Returns the anonymous public
// actor if not set: an absent identity is never treated as privileged.
func GetActor(ctx context.Context) Actor {
	if v := ctx.Value(contextKeyActor); v != nil {
		if a, ok := v.(Actor); ok {
			return a
		}
	}
	return Anonymous()
}

// MustGetActor retrieves the actor from context.
// Panics if no authenticated actor is set.
func MustGetActor(ctx context.Context) Actor {
	actor := GetActor(ctx)
	if actor.ID == "" {
		panic("governkit: no authenticated actor in context")
	}
	return actor
}

// WithIPAddress adds the client IP address to the context (for audit).
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress retrieves the IP address from context.
func GetIPAddress(ctx context.Context) string {
	if v := ctx.Value(contextKeyIPAddress); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithUserAgent adds the user agent to the context (for audit).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent retrieves the user agent from context.
func GetUserAgent(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserAgent); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID adds a request-scoped correlation ID to the context. The
// facade uses it as the idempotency key for ledger claims when the record
// itself has no identity yet.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the correlation ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AuditContext holds all audit-related information from context.
type AuditContext struct {
	Actor     Actor
	IPAddress string
	UserAgent string
	RequestID string
}

// GetAuditContext extracts all audit information from context.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		Actor:     GetActor(ctx),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// WithAuditContext adds all audit information to context at once.
func WithAuditContext(ctx context.Context, ac AuditContext) context.Context {
	if ac.Actor.ID != "" || ac.Actor.Role != "" {
		ctx = WithActor(ctx, ac.Actor)
	}
	if ac.IPAddress != "" {
		ctx = WithIPAddress(ctx, ac.IPAddress)
	}
	if ac.UserAgent != "" {
		ctx = WithUserAgent(ctx, ac.UserAgent)
	}
	if ac.RequestID != "" {
		ctx = WithRequestID(ctx, ac.RequestID)
	}
	return ctx
}
