package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification(to string) notifications.Notification {
	return notifications.Notification{
		To:         to,
		Subject:    "[HIGH] Level 1: DB down",
		Body:       "Incident escalated",
		IncidentID: "inc-1",
		Data:       map[string]string{"urgency": "high", "level": "1"},
	}
}

func TestNewSender_Defaults(t *testing.T) {
	sender := NewSender(Config{})

	assert.Equal(t, defaultTimeout, sender.config.Timeout)
	assert.Equal(t, domain.ChannelTypeWebhook, sender.Type())
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get(SignatureHeader))

		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "incident.escalated", p.Event)
		assert.Equal(t, "inc-1", p.IncidentID)
		assert.Equal(t, 1, p.Level)
		assert.Equal(t, "high", p.Urgency)
		assert.Equal(t, "Incident escalated", p.Text)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	err := NewSender(Config{}).Send(context.Background(), testNotification(server.URL))
	assert.NoError(t, err)
}

func TestSender_Send_Signed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, Sign("s3cret", body), r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewSender(Config{SigningSecret: "s3cret"}).Send(context.Background(), testNotification(server.URL))
	assert.NoError(t, err)
}

func TestSender_Send_EmptyURL(t *testing.T) {
	err := NewSender(Config{}).Send(context.Background(), testNotification(""))

	require.Error(t, err)
	assert.False(t, notifications.IsRetryable(err))
	assert.Contains(t, err.Error(), "webhook URL is empty")
}

func TestSender_Send_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer server.Close()

			err := NewSender(Config{}).Send(context.Background(), testNotification(server.URL))
			require.Error(t, err)
			assert.Equal(t, tt.retryable, notifications.IsRetryable(err))

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.Code)
			assert.Equal(t, "nope", statusErr.Body)
		})
	}
}

func TestSender_Send_NetworkError(t *testing.T) {
	sender := NewSender(Config{Timeout: 100 * time.Millisecond})

	err := sender.Send(context.Background(), testNotification("http://localhost:59999"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
	assert.True(t, notifications.IsRetryable(err))
}

func TestSender_Send_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSender(Config{}).Send(ctx, testNotification(server.URL))
	require.Error(t, err)
	assert.True(t, notifications.IsRetryable(err))
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "http://example.com/hook", maskURL("http://example.com/hook"))
	assert.Equal(t, "http://example.com/h...ghijklmnop", maskURL("http://example.com/hooks/abcdefghijklmnop"))
}
