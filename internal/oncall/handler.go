package oncall

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/oncall-garden/internal/pkg/httputil"
	"github.com/bissquit/oncall-garden/internal/rotation"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Preview limits.
const (
	DefaultPreviewShifts = 10
	MaxPreviewShifts     = rotation.MaxPreviewShifts
)

// Handler handles HTTP requests for on-call lookups.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new on-call handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the on-call routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/schedules/{id}/on-call", h.GetOnCall)
	r.Get("/schedules/{id}/preview", h.GetPreview)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrScheduleNotFound, Status: http.StatusNotFound},
	{Error: ErrScheduleInactive, Status: http.StatusConflict},
	{Error: rotation.ErrNotYetActive, Status: http.StatusConflict},
	{Error: rotation.ErrNoMembers, Status: http.StatusUnprocessableEntity},
	{Error: rotation.ErrInvalidShiftLength, Status: http.StatusUnprocessableEntity},
	{Error: rotation.ErrInvalidHandoffTime, Status: http.StatusUnprocessableEntity},
	{Error: rotation.ErrInvalidTimeZone, Status: http.StatusUnprocessableEntity},
}

// GetOnCall handles GET /schedules/{id}/on-call.
func (h *Handler) GetOnCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		result Resolution
		err    error
	)
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, parseErr := time.Parse(time.RFC3339, at)
		if parseErr != nil {
			httputil.Error(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return
		}
		result, err = h.service.ResolveAt(r.Context(), id, parsed)
	} else {
		result, err = h.service.ResolveCurrentOnCall(r.Context(), id)
	}
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

type previewQuery struct {
	Shifts int `validate:"min=1,max=100"`
	From   time.Time
}

// GetPreview handles GET /schedules/{id}/preview.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	q := previewQuery{Shifts: DefaultPreviewShifts}
	if s := r.URL.Query().Get("shifts"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "shifts must be an integer")
			return
		}
		q.Shifts = parsed
	}
	if f := r.URL.Query().Get("from"); f != "" {
		parsed, err := time.Parse(time.RFC3339, f)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
			return
		}
		q.From = parsed
	}
	if err := h.validator.Struct(q); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	segments, err := h.service.PreviewRotation(r.Context(), id, q.From, q.Shifts)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, segments)
}
