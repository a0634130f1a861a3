package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Sender) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewSender(Config{BotToken: "xoxb-test", APIURL: server.URL + "/"})
	require.NoError(t, err)
	return server, s
}

func TestNewSender_RequiresToken(t *testing.T) {
	_, err := NewSender(Config{})
	assert.Error(t, err)
}

func TestSender_Type(t *testing.T) {
	s, err := NewSender(Config{BotToken: "xoxb-test"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelTypeChat, s.Type())
}

func TestSender_Send_Success(t *testing.T) {
	_, s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "C123", r.Form.Get("channel"))
		assert.Equal(t, "[HIGH] Level 1: DB down", r.Form.Get("text"))
		assert.Contains(t, r.Form.Get("blocks"), "Escalated to level 1")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000000.000100"})
	})

	err := s.Send(context.Background(), notifications.Notification{
		To:      "C123",
		Subject: "[HIGH] Level 1: DB down",
		Body:    "Escalated to level 1 of 2",
	})
	assert.NoError(t, err)
}

func TestSender_Send_APIErrors(t *testing.T) {
	tests := []struct {
		name      string
		apiError  string
		retryable bool
	}{
		{"unknown channel", "channel_not_found", false},
		{"bad token", "invalid_auth", false},
		{"slack outage", "service_unavailable", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": tt.apiError})
			})

			err := s.Send(context.Background(), notifications.Notification{To: "C123", Subject: "s", Body: "b"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, notifications.IsRetryable(err))
			assert.Contains(t, err.Error(), tt.apiError)
		})
	}
}

func TestSender_Send_RateLimited(t *testing.T) {
	_, s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := s.Send(context.Background(), notifications.Notification{To: "C123", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.True(t, notifications.IsRetryable(err))
}

func TestSender_Send_ServerError(t *testing.T) {
	_, s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := s.Send(context.Background(), notifications.Notification{To: "C123", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.True(t, notifications.IsRetryable(err))
}

func TestSender_Send_EmptyChatID(t *testing.T) {
	s, err := NewSender(Config{BotToken: "xoxb-test"})
	require.NoError(t, err)

	err = s.Send(context.Background(), notifications.Notification{})
	require.Error(t, err)
	assert.False(t, notifications.IsRetryable(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("a", 200)
	got := truncate(long, headerLimit)
	assert.Len(t, []rune(got), headerLimit)
	assert.True(t, strings.HasSuffix(got, "…"))
}
