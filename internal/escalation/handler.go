package escalation

import (
	"context"
	"net/http"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for incident actions.
type Handler struct {
	service *Service
}

// NewHandler creates a new escalation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the incident action routes. Callers are expected
// to mount them behind authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/incidents/{id}/acknowledge", h.Acknowledge)
	r.Post("/incidents/{id}/resolve", h.Resolve)
	r.Post("/incidents/{id}/escalate", h.Escalate)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrAlreadyResolved, Status: http.StatusConflict},
	{Error: ErrAlreadyAcknowledged, Status: http.StatusConflict},
	{Error: ErrEscalationConflict, Status: http.StatusConflict},
	{Error: ErrPolicyExhausted, Status: http.StatusConflict},
	{Error: ErrNoEscalationPolicy, Status: http.StatusUnprocessableEntity},
	{Error: ErrPolicyNotFound, Status: http.StatusUnprocessableEntity},
}

type action func(ctx context.Context, id, by string) (*domain.Incident, error)

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, fn action) {
	id := chi.URLParam(r, "id")
	by := httputil.GetUserID(r.Context())
	if by == "" {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	inc, err := fn(r.Context(), id, by)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, inc)
}

// Acknowledge handles POST /incidents/{id}/acknowledge.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.AcknowledgeIncident)
}

// Resolve handles POST /incidents/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.ResolveIncident)
}

// Escalate handles POST /incidents/{id}/escalate.
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.EscalateNow)
}
