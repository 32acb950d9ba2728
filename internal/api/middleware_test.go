package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

func TestActorMiddleware(t *testing.T) {
	actorID := uuid.New()
	practitionerID := uuid.New()

	var gotActor scheduling.Actor
	var gotScope scheduling.Scope
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = getActor(r.Context())
		gotScope = getScope(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := ActorMiddleware(inner)

	t.Run("resolves actor and scope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
		req.Header.Set("X-Actor-ID", actorID.String())
		req.Header.Set("X-Actor-Role", "assistant")
		req.Header.Set("X-Actor-Practitioners", practitionerID.String())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, actorID, gotActor.ID)
		assert.Equal(t, scheduling.RoleAssistant, gotActor.Role)
		assert.Equal(t, []uuid.UUID{practitionerID}, gotScope.PractitionerIDs)
	})

	t.Run("rejects missing actor ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
		req.Header.Set("X-Actor-Role", "patient")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
		req.Header.Set("X-Actor-ID", actorID.String())
		req.Header.Set("X-Actor-Role", "superuser")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestWriteServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", scheduling.ErrValidation("bad input"), http.StatusBadRequest, "ValidationError"},
		{"not found", scheduling.ErrNotFound("missing"), http.StatusNotFound, "NotFoundError"},
		{"authorization", scheduling.ErrAuthorization("nope"), http.StatusForbidden, "AuthorizationError"},
		{"conflict", scheduling.ErrConflict("taken"), http.StatusConflict, "ConflictError"},
		{"invalid transition", scheduling.ErrInvalidTransition("no edge"), http.StatusConflict, "InvalidTransitionError"},
		{"out of window", scheduling.ErrOutOfWindow("closed"), http.StatusUnprocessableEntity, "OutOfWindowError"},
		{"untyped", assert.AnError, http.StatusInternalServerError, "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantKind, body.Kind)
		})
	}
}
