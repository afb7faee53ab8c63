package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdhq/crewd/pkg/metrics"
	"github.com/crewdhq/crewd/pkg/store"
)

const testBotToken = "12345:abc"

func newTestServer(t *testing.T) (*httptest.Server, *store.InMemory) {
	t.Helper()
	st := store.NewInMemory()
	srv := httptest.NewServer(New(st, metrics.New(), testBotToken).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func telegramUpdateJSON(chatID int64, text string) string {
	u := map[string]any{
		"message": map[string]any{
			"text": text,
			"chat": map[string]any{"id": chatID, "type": "group", "title": "Team"},
			"from": map[string]any{"first_name": "Pat", "username": "pat"},
		},
	}
	data, _ := json.Marshal(u)
	return string(data)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "uptime")
}

func TestInfoEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/webhook/telegram/wrong-token", telegramUpdateJSON(1, "hi"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookCreatesInboxTask(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	_, err := st.RegisterChat(ctx, &store.TelegramChat{WorkspaceID: "ws-1", ChatID: 777, Type: "group"})
	require.NoError(t, err)
	agentID, err := st.CreateAgent(ctx, &store.Agent{WorkspaceID: "ws-1", Name: "Nova", Role: store.RoleMainCoordinator, State: store.StateSleeping})
	require.NoError(t, err)

	resp, body := postJSON(t, srv.URL+"/webhook/telegram/"+testBotToken, telegramUpdateJSON(777, "Please update the pricing page"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	taskID, _ := body["taskId"].(string)
	require.NotEmpty(t, taskID)

	task, err := st.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", task.WorkspaceID)
	assert.Equal(t, "Telegram Message from Pat", task.Title)
	assert.Equal(t, "Please update the pricing page", task.Description)
	assert.Equal(t, store.TaskStatusInbox, task.Status)
	assert.Equal(t, agentID, task.CreatedBy)
	assert.Equal(t, []string{"telegram", "inbox"}, task.Tags)
}

func TestWebhookIgnoresNonTextUpdate(t *testing.T) {
	srv, st := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/webhook/telegram/"+testBotToken, `{"message": {"chat": {"id": 777}}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ignored", body["status"])

	tasks, err := st.ListTasks(context.Background(), "ws-1", store.TaskStatusInbox)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestWebhookUnregisteredChat(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/webhook/telegram/"+testBotToken, telegramUpdateJSON(999, "hello"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unregistered", body["status"])
}

func TestWebhookAutoRegistersChatWithWorkspaceParam(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	_, err := st.CreateAgent(ctx, &store.Agent{WorkspaceID: "ws-1", Name: "Nova", Role: store.RoleMainCoordinator, State: store.StateSleeping})
	require.NoError(t, err)

	resp, body := postJSON(t, srv.URL+"/webhook/telegram/"+testBotToken+"?workspace=ws-1", telegramUpdateJSON(888, "first contact"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	chat, err := st.GetChatByTelegramID(ctx, 888)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", chat.WorkspaceID)
}

func TestWebhookNoAgentsInWorkspace(t *testing.T) {
	srv, st := newTestServer(t)

	_, err := st.RegisterChat(context.Background(), &store.TelegramChat{WorkspaceID: "ws-empty", ChatID: 555, Type: "group"})
	require.NoError(t, err)

	resp, _ := postJSON(t, srv.URL+"/webhook/telegram/"+testBotToken, telegramUpdateJSON(555, "anyone home?"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestWebhookInvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/webhook/telegram/"+testBotToken, "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
