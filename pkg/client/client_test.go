package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestClientFetchNotificationsSendsBearer(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.Equal(t, "/api/notifications/user", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"content": []map[string]interface{}{
				{"id": "n1", "title": "Exam", "content": "Maths on Monday", "is_read": false},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", WithToken("tok"))
	list, err := c.FetchNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, "Bearer tok", auth)
}

func TestClientUnreadCountAndMarkAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/notifications/user/unread/count":
			writeEnvelope(w, http.StatusOK, map[string]int{"count": 5})
		case "/api/notifications/mark-all-read":
			require.Equal(t, http.MethodPost, r.Method)
			writeEnvelope(w, http.StatusOK, map[string]int{"updated": 5})
		case "/api/notifications/mark-read/n%201", "/api/notifications/mark-read/n 1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	count, err := c.FetchUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	updated, err := c.MarkAllRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated)

	require.NoError(t, c.MarkRead(context.Background(), "n 1"))
}

func TestClientStatusErrors(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.FetchNotifications(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "Authentication error: 401", err.Error())

	status = http.StatusForbidden
	_, err = c.FetchUnreadCount(context.Background())
	assert.Equal(t, "Authentication error: 403", err.Error())

	status = http.StatusInternalServerError
	_, err = c.MarkAllRead(context.Background())
	assert.False(t, IsAuthError(err))
	assert.Equal(t, "Failed to mark all notifications as read: 500", err.Error())
}

func TestClientRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchUnreadCount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch unread count")
	assert.False(t, IsAuthError(err))
}
