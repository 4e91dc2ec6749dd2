package governkit

import (
	"net/http"

	"github.com/google/uuid"
)

// Guard provides HTTP middleware for governance checks. Record-level
// evaluation needs the record snapshot, so Guard gates on what a request can
// know up front: the actor's role and the attempted operation. Handlers run
// the full mutation through Engine.AuthorizeAndApply.
type Guard struct {
	engine       *Engine
	getActor     func(*http.Request) Actor
	errorHandler func(http.ResponseWriter, *http.Request, error)
}

// GuardOption configures the Guard.
type GuardOption func(*Guard)

// NewGuard creates a new Guard instance.
//
// Example:
//
//	guard := governkit.NewGuard(engine,
//	    governkit.WithActorExtractor(func(r *http.Request) governkit.Actor {
//	        return actorFromSession(r)
//	    }),
//	)
func NewGuard(engine *Engine, opts ...GuardOption) *Guard {
	g := &Guard{
		engine:       engine,
		getActor:     defaultGetActor,
		errorHandler: defaultGuardErrorHandler,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithActorExtractor sets a custom function to extract the actor from a request.
func WithActorExtractor(fn func(*http.Request) Actor) GuardOption {
	return func(g *Guard) {
		g.getActor = fn
	}
}

// WithGuardErrorHandler sets a custom error handler for the middleware.
func WithGuardErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) GuardOption {
	return func(g *Guard) {
		g.errorHandler = fn
	}
}

func defaultGetActor(r *http.Request) Actor {
	return GetActor(r.Context())
}

func defaultGuardErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsPermissionDenied(err):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case IsInvalidRecordType(err):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// RequireOperation creates middleware that rejects requests whose actor's role
// cannot ever perform the operation on the record type. A pass here is not a
// grant: handlers still go through the full record-level evaluation.
//
// Example:
//
//	router.With(guard.RequireOperation(governkit.OpCreate, "lead")).
//	    Post("/leads", createLeadHandler)
func (g *Guard) RequireOperation(op Operation, recordType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := g.getActor(r)

			if err := g.engine.Registry().ValidateRecordType(recordType); err != nil {
				g.errorHandler(w, r, err)
				return
			}

			decision := g.engine.Evaluate(actor, op, recordType, nil)
			if !decision.Allowed() {
				g.errorHandler(w, r, NewError(ErrPermissionDenied, "").
					WithRecord(recordType, "").
					WithActor(actor.ID))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

// RequireRole creates middleware that requires the actor to hold one of the
// given roles.
//
// Example:
//
//	router.With(guard.RequireRole(governkit.RoleAdmin, governkit.RoleManager)).
//	    Delete("/enrollments/{id}", deleteEnrollmentHandler)
func (g *Guard) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := g.getActor(r)
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
					return
				}
			}
			g.errorHandler(w, r, NewError(ErrPermissionDenied, "").WithActor(actor.ID))
		})
	}
}

// InjectAuditContext creates middleware that extracts audit information from
// the request and adds it to the context. A request without an X-Request-ID
// header gets a freshly minted one, which also becomes the claim ID for
// capacity-managed creates in the same request.
//
// Example:
//
//	router.Use(guard.InjectAuditContext())
func (g *Guard) InjectAuditContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Extract IP address
			ip := r.Header.Get("X-Forwarded-For")
			if ip == "" {
				ip = r.Header.Get("X-Real-IP")
			}
			if ip == "" {
				ip = r.RemoteAddr
			}
			ctx = WithIPAddress(ctx, ip)

			// Extract User Agent
			ctx = WithUserAgent(ctx, r.UserAgent())

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx = WithRequestID(ctx, requestID)

			if actor := g.getActor(r); actor.ID != "" {
				ctx = WithActor(ctx, actor)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
