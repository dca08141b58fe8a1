package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/comigor/cidion/internal/agent"
	"github.com/comigor/cidion/internal/history"
	"github.com/comigor/cidion/internal/logger"
)

// Processor answers chat messages.
type Processor interface {
	ProcessMessage(ctx context.Context, sessionID, message string) (*agent.Response, error)
}

// SessionStore is the read and maintenance side of the conversation store.
type SessionStore interface {
	RecentSessions(ctx context.Context, limit int) ([]history.Session, error)
	History(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
	Stats(ctx context.Context, sessionID string) (history.Stats, error)
	UpdateTitle(ctx context.Context, sessionID, title string) error
	UpdateSummary(ctx context.Context, sessionID, summary string) error
	Clear(ctx context.Context, sessionID string) error
}

// ToolLister reports the registered tools.
type ToolLister interface {
	Names() []string
}

// Handler holds the HTTP handlers.
type Handler struct {
	agent Processor
	store SessionStore
	tools ToolLister
	newID func() string
}

// NewHandler creates a Handler.
func NewHandler(p Processor, store SessionStore, tools ToolLister) *Handler {
	return &Handler{agent: p, store: store, tools: tools, newID: uuid.NewString}
}

// RegisterRoutes mounts every route on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/chat", h.Chat)
	api.GET("/health", h.Health)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id/messages", h.SessionMessages)
	api.GET("/sessions/:id/stats", h.SessionStats)
	api.PUT("/sessions/:id/title", h.UpdateTitle)
	api.PUT("/sessions/:id/summary", h.UpdateSummary)
	api.DELETE("/sessions/:id", h.ClearSession)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Response       string                 `json:"response"`
	SessionID      string                 `json:"session_id"`
	ThoughtProcess []string               `json:"thought_process"`
	ToolsUsed      []agent.ToolInvocation `json:"tools_used"`
	ExecutionSteps []string               `json:"execution_steps"`
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// Chat processes one message.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, http.StatusBadRequest, "message is required")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.newID()
	}

	resp, err := h.agent.ProcessMessage(c.Request().Context(), sessionID, req.Message)
	status := http.StatusOK
	if err != nil {
		logger.L.Error("chat request failed", "session_id", sessionID, "error", err)
		status = http.StatusInternalServerError
	}
	if resp == nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to process message")
	}

	return c.JSON(status, ChatResponse{
		Response:       resp.Content,
		SessionID:      sessionID,
		ThoughtProcess: resp.ThoughtProcess,
		ToolsUsed:      resp.ToolsUsed,
		ExecutionSteps: resp.ExecutionSteps,
	})
}

// Health reports liveness and the registered tools.
// GET /api/health
func (h *Handler) Health(c echo.Context) error {
	names := h.tools.Names()
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "healthy",
		"tools_available": len(names),
		"tool_names":      names,
	})
}

// ListSessions lists sessions, most recently active first.
// GET /api/sessions?limit=10
func (h *Handler) ListSessions(c echo.Context) error {
	limit := 10
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil || limit <= 0 {
		return errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
	}
	sessions, err := h.store.RecentSessions(c.Request().Context(), limit)
	if err != nil {
		logger.L.Error("failed to list sessions", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to list sessions")
	}
	return c.JSON(http.StatusOK, sessions)
}

// SessionMessages returns a session's latest messages, oldest first.
// GET /api/sessions/:id/messages?limit=50
func (h *Handler) SessionMessages(c echo.Context) error {
	limit := 50
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil || limit <= 0 {
		return errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
	}
	msgs, err := h.store.History(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		logger.L.Error("failed to load messages", "session_id", c.Param("id"), "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to load messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

// SessionStats returns message statistics of a session.
// GET /api/sessions/:id/stats
func (h *Handler) SessionStats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context(), c.Param("id"))
	if err != nil {
		logger.L.Error("failed to load stats", "session_id", c.Param("id"), "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to load stats")
	}
	return c.JSON(http.StatusOK, stats)
}

type titleRequest struct {
	Title string `json:"title"`
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

// UpdateTitle sets a session's title.
// PUT /api/sessions/:id/title
func (h *Handler) UpdateTitle(c echo.Context) error {
	var req titleRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	return h.sessionResult(c, h.store.UpdateTitle(c.Request().Context(), c.Param("id"), req.Title))
}

// UpdateSummary sets a session's summary.
// PUT /api/sessions/:id/summary
func (h *Handler) UpdateSummary(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	return h.sessionResult(c, h.store.UpdateSummary(c.Request().Context(), c.Param("id"), req.Summary))
}

// ClearSession deletes a session and its messages.
// DELETE /api/sessions/:id
func (h *Handler) ClearSession(c echo.Context) error {
	return h.sessionResult(c, h.store.Clear(c.Request().Context(), c.Param("id")))
}

func (h *Handler) sessionResult(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, history.ErrSessionNotFound):
		return errorJSON(c, http.StatusNotFound, "session not found")
	default:
		logger.L.Error("session update failed", "session_id", c.Param("id"), "error", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to update session")
	}
}
