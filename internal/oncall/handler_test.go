package oncall

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/oncall-garden/internal/pkg/clock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler(NewService(newRepo(), clock.NewFake(utc(2024, 1, 9, 12)))).RegisterRoutes(r)
	return r
}

func TestHandler_GetOnCall(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		user   string
	}{
		{"now", "/schedules/s1/on-call", http.StatusOK, "bob"},
		{"explicit instant", "/schedules/s1/on-call?at=2024-01-16T00:00:00Z", http.StatusOK, "carol"},
		{"bad instant", "/schedules/s1/on-call?at=yesterday", http.StatusBadRequest, ""},
		{"unknown schedule", "/schedules/nope/on-call", http.StatusNotFound, ""},
		{"before start", "/schedules/s1/on-call?at=2023-01-01T00:00:00Z", http.StatusConflict, ""},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.user == "" {
				return
			}
			var body struct {
				Data struct {
					UserID string `json:"user_id"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.user, body.Data.UserID)
		})
	}
}

func TestHandler_GetPreview(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schedules/s1/preview?shifts=3&from=2024-01-01T00:00:00Z", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			UserID     string `json:"user_id"`
			ShiftIndex int    `json:"shift_index"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, "alice", body.Data[0].UserID)
	assert.Equal(t, 2, body.Data[2].ShiftIndex)
}

func TestHandler_GetPreview_Validation(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{
		"/schedules/s1/preview?shifts=0",
		"/schedules/s1/preview?shifts=101",
		"/schedules/s1/preview?shifts=ten",
		"/schedules/s1/preview?from=soon",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}
