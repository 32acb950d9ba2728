package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
	scopeKey     contextKey = "scope"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and request ID
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		requestID := GetRequestID(r.Context())

		log.Printf(
			"method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration,
			requestID,
		)
	})
}

// ActorMiddleware resolves the calling actor from the headers the auth
// gateway sets. The core never sees credentials, only the resolved identity.
// X-Actor-Practitioners optionally narrows an assistant to assigned
// practitioners (comma-separated UUIDs).
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "AuthorizationError", "missing or invalid X-Actor-ID header")
			return
		}

		role := scheduling.Role(r.Header.Get("X-Actor-Role"))
		switch role {
		case scheduling.RolePatient, scheduling.RolePractitioner, scheduling.RoleAssistant, scheduling.RoleAdmin:
		default:
			writeError(w, http.StatusUnauthorized, "AuthorizationError", "missing or invalid X-Actor-Role header")
			return
		}

		actor := scheduling.Actor{ID: actorID, Role: role}
		scope := scheduling.Scope{Actor: actor}

		if raw := r.Header.Get("X-Actor-Practitioners"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				pid, err := uuid.Parse(strings.TrimSpace(part))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "AuthorizationError", "invalid X-Actor-Practitioners header")
					return
				}
				scope.PractitionerIDs = append(scope.PractitionerIDs, pid)
			}
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, scopeKey, scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func getActor(ctx context.Context) scheduling.Actor {
	actor, _ := ctx.Value(actorKey).(scheduling.Actor)
	return actor
}

func getScope(ctx context.Context) scheduling.Scope {
	scope, _ := ctx.Value(scopeKey).(scheduling.Scope)
	return scope
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
