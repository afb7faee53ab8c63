// Package server exposes the HTTP surface: health, service info,
// Prometheus metrics and the Telegram webhook that feeds the task
// inbox.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crewdhq/crewd/pkg/logger"
	"github.com/crewdhq/crewd/pkg/metrics"
	"github.com/crewdhq/crewd/pkg/store"
)

// Server handles the HTTP surface over the workspace store.
type Server struct {
	store    store.Store
	metrics  *metrics.Metrics
	botToken string
	started  time.Time
}

// New creates a server. metrics may be nil; botToken guards the
// Telegram webhook route.
func New(st store.Store, m *metrics.Metrics, botToken string) *Server {
	return &Server{
		store:    st,
		metrics:  m,
		botToken: botToken,
		started:  time.Now(),
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Post("/webhook/telegram/{token}", s.handleTelegramWebhook)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":   "crewd",
		"status": "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

// telegramUpdate is the slice of the Bot API update payload the webhook
// consumes.
type telegramUpdate struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID       int64  `json:"id"`
			Type     string `json:"type"`
			Title    string `json:"title"`
			Username string `json:"username"`
		} `json:"chat"`
		From struct {
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

// handleTelegramWebhook ingests one inbound message. Every accepted
// text message creates exactly one inbox task in the chat's workspace.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != s.botToken || s.botToken == "" {
		logger.Warn("webhook called with invalid token", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if update.Message == nil || update.Message.Text == "" {
		// Non-text updates are acknowledged and dropped.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	ctx := r.Context()
	msg := update.Message

	chat, err := s.store.GetChatByTelegramID(ctx, msg.Chat.ID)
	if errors.Is(err, store.ErrNotFound) {
		// Auto-register for a valid workspace override (initial setup).
		workspaceID := r.URL.Query().Get("workspace")
		if workspaceID == "" {
			logger.Warn("webhook from unregistered chat", "chat", msg.Chat.ID)
			writeJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
			return
		}
		chat = &store.TelegramChat{
			WorkspaceID: workspaceID,
			ChatID:      msg.Chat.ID,
			Type:        msg.Chat.Type,
			Title:       msg.Chat.Title,
			Username:    msg.Chat.Username,
		}
		if _, err := s.store.RegisterChat(ctx, chat); err != nil {
			logger.Error("failed to register chat", "chat", msg.Chat.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
			return
		}
	} else if err != nil {
		logger.Error("failed to resolve chat", "chat", msg.Chat.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	sender := msg.From.FirstName
	if sender == "" {
		sender = msg.From.Username
	}
	if sender == "" {
		sender = "Unknown"
	}

	// Attribute the task to an agent of the workspace; the first by
	// stable order carries inbound messages.
	agents, err := s.store.ListAgents(ctx, chat.WorkspaceID)
	if err != nil || len(agents) == 0 {
		logger.Error("no agent to attribute inbound message to", "workspace", chat.WorkspaceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "no agents in workspace"})
		return
	}

	task := &store.Task{
		WorkspaceID: chat.WorkspaceID,
		Title:       fmt.Sprintf("Telegram Message from %s", sender),
		Description: msg.Text,
		Priority:    store.TaskPriorityNormal,
		CreatedBy:   agents[0].ID,
		Tags:        []string{"telegram", "inbox"},
	}
	if _, err := s.store.CreateTask(ctx, task); err != nil {
		logger.Error("failed to create inbox task", "workspace", chat.WorkspaceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "task creation failed"})
		return
	}

	logger.Info("inbound message converted to task",
		"workspace", chat.WorkspaceID, "task", task.ID, "sender", sender)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "taskId": task.ID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
