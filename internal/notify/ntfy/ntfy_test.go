package ntfy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jon4hz/csoportal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Disabled(t *testing.T) {
	assert.Nil(t, NewClient(nil))
	c := NewClient(&config.NtfyConfig{Enabled: false})
	assert.Nil(t, c)
	// nil clients are no-ops
	assert.NoError(t, c.SendRegistration(context.Background(), "A", "1234567890", ""))
}

func TestSendRegistration(t *testing.T) {
	var got Message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "yes", r.Header.Get("Markdown"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{Enabled: true, ServerURL: srv.URL + "/", Topic: "admins", Token: "tk"})
	require.NoError(t, c.SendRegistration(context.Background(), "A 상사", "1234567890", "https://portal/admin/users"))

	assert.Equal(t, "Bearer tk", auth)
	assert.Equal(t, "admins", got.Topic)
	assert.Contains(t, got.Message, "123-45-67890")
	assert.Contains(t, got.Message, "A 상사")
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "https://portal/admin/users", got.Actions[0].URL)
}

func TestSendBulkSummary_BasicAuth(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{Enabled: true, ServerURL: srv.URL, Topic: "t", Username: "u", Password: "p"})
	require.NoError(t, c.SendBulkSummary(context.Background(), "1월 정산", 3, 1, 0, false))

	assert.Equal(t, 4, got.Priority)
	assert.Contains(t, got.Message, "실패 1건")
}

func TestSendMessage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not allowed", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{Enabled: true, ServerURL: srv.URL, Topic: "t"})
	err := c.SendMessage(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "topic not allowed")
}
