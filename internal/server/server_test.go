package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/ravianlabs/quantum-chat/internal/chat"
	"github.com/ravianlabs/quantum-chat/internal/models"
	"github.com/ravianlabs/quantum-chat/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, userMessage string) (string, error) {
	return "echo: " + userMessage, nil
}

func newTestServer(limit int) *Server {
	store := storage.NewMemoryStorage()
	usage := chat.NewUsageCounter(store, limit)
	service := chat.NewService(store, echoGenerator{}, usage, chat.NopEvents{})
	return New(service, zap.NewNop())
}

func doRequest(t *testing.T, srv *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestMissingIdentityRejected(t *testing.T) {
	srv := newTestServer(50)
	w := doRequest(t, srv, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(50)

	w := doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var turn chat.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.Equal(t, "Hello", turn.Conversation.Title)
	assert.Equal(t, "echo: Hello", turn.AssistantMessage.Content)
	assert.Equal(t, 49, turn.Remaining)

	// The conversation shows up in the sidebar list.
	w = doRequest(t, srv, http.MethodGet, "/api/conversations", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Conversations []*models.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Conversations, 1)

	// History renders both turns oldest first.
	path := fmt.Sprintf("/api/conversations/%s/messages", turn.Conversation.ID)
	w = doRequest(t, srv, http.MethodGet, path, "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgResp struct {
		Messages []*models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgResp))
	require.Len(t, msgResp.Messages, 2)
	assert.Equal(t, models.RoleUser, msgResp.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, msgResp.Messages[1].Role)

	// Usage reflects the completed turn.
	w = doRequest(t, srv, http.MethodGet, "/api/usage", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage chat.UsageSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.Equal(t, 1, usage.Used)
	assert.Equal(t, 49, usage.Remaining)
	assert.Equal(t, 50, usage.Limit)
}

func TestQuotaExceededHasDistinctCode(t *testing.T) {
	srv := newTestServer(1)

	w := doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{"content": "one"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{"content": "two"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "quota_exceeded", errResp.Code)
}

func TestOwnershipMapping(t *testing.T) {
	srv := newTestServer(50)

	w := doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{"content": "mine"})
	require.Equal(t, http.StatusOK, w.Code)
	var turn chat.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))

	path := fmt.Sprintf("/api/conversations/%s/messages", turn.Conversation.ID)
	w = doRequest(t, srv, http.MethodGet, path, "intruder", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	path = fmt.Sprintf("/api/conversations/%s/messages", uuid.New())
	w = doRequest(t, srv, http.MethodGet, path, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteConversation(t *testing.T) {
	srv := newTestServer(50)

	w := doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{"content": "to delete"})
	require.Equal(t, http.StatusOK, w.Code)
	var turn chat.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))

	path := "/api/conversations/" + turn.Conversation.ID.String()
	w = doRequest(t, srv, http.MethodDelete, path, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, srv, http.MethodDelete, path, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(50)

	w := doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/chat", "user-1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/conversations/not-a-uuid/messages", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
