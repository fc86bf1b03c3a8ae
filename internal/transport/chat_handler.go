package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pricebot/internal/chat"
	"pricebot/internal/middleware"
	"pricebot/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SendMessageRequest represents one user chat message
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// ChatHandler handles HTTP requests for chat sessions
type ChatHandler struct {
	chatService service.ChatService
	logger      *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chatService service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// RegisterRoutes registers the chat routes. Opening a session and sending a
// message go through the rate limiter.
func (h *ChatHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimit func(http.Handler) http.Handler) {
	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Use(authMiddleware)

		r.With(optional(rateLimit)).Post("/", h.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Delete("/pending", h.DiscardPending)
			r.Get("/notifications", h.Notifications)
			r.Get("/notifications/stream", h.StreamNotifications)
			r.With(optional(rateLimit)).Post("/messages", h.SendMessage)
		})
	})

	r.Route("/api/admin/sessions", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))
		r.Get("/", h.ListSessions)
	})
}

// CreateSession opens a new conversation for the caller
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	snapshot := h.chatService.CreateSession(r.Context(), userID)
	middleware.RespondWithJSON(w, http.StatusCreated, snapshot)
}

// GetSession returns the transcript and pending action of a conversation
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	snapshot, err := h.chatService.GetSession(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, snapshot)
}

// DeleteSession closes a conversation
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(r.Context(), userID, chi.URLParam(r, "sessionID")); err != nil {
		h.respondWithChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage runs one turn and returns what it appended
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Chat message validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	result, err := h.chatService.SendMessage(r.Context(), userID, chi.URLParam(r, "sessionID"), req.Text)
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// DiscardPending drops the staged action without committing it
func (h *ChatHandler) DiscardPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	snapshot, err := h.chatService.DiscardPending(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, snapshot)
}

// Notifications returns the latest toasts raised in a conversation
func (h *ChatHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 20, 1, 100)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	notes, err := h.chatService.Notifications(r.Context(), userID, chi.URLParam(r, "sessionID"), int64(limit))
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, notes)
}

// StreamNotifications pushes a conversation's toasts as server-sent events
// until the client goes away
func (h *ChatHandler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	feed, err := h.chatService.WatchNotifications(r.Context(), userID, sessionID)
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// a stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Warn("Notification stream cannot flush", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-feed:
			if !ok {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("Failed to encode notification", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			if err := rc.Flush(); err != nil {
				h.logger.Debug("Notification stream closed",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

// ListSessions gives administrators an overview of live conversations
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.chatService.Summaries(r.Context()))
}

func (h *ChatHandler) respondWithChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "chat session not found")
	case errors.Is(err, chat.ErrEmptyMessage):
		middleware.RespondWithError(w, http.StatusBadRequest, "message must not be empty")
	case errors.Is(err, chat.ErrTurnInProgress):
		middleware.RespondWithError(w, http.StatusConflict, "a message is already being processed")
	default:
		h.logger.Error("Chat request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "chat request failed")
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func optional(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

// queryInt reads an integer query parameter bounded by [min, max]
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, errors.New(name + " must be an integer between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return v, nil
}
