package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"suptui/model"
)

// Handler serves the chat API.
type Handler struct {
	store *Store
	cfg   *Config
}

func NewHandler(store *Store, cfg *Config) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// Router builds the full chi router: global middleware plus the /api
// route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	// The widget embeds on arbitrary pages, so every origin is allowed.
	r.Use(CORS)

	r.Route("/api", h.RegisterRoutes)

	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/start", h.startChat)
	r.Get("/chat/{chatID}", h.getChat)
	r.Post("/chat/{chatID}/message", h.postMessage)
	r.Post("/chat/{chatID}/reply", h.postReply)
	r.Get("/chat/{chatID}/typing", h.getTyping)
	r.Post("/chat/{chatID}/typing", h.postTyping)
}

// CORS allows any origin; the chat identifier is the only credential
// and it lives in the request path.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) startChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := h.store.CreateChat(r.Context())
	if err != nil {
		slog.Error("Failed to create chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}

	slog.Info("Chat started", "chat_id", chatID)
	JSON(w, http.StatusOK, map[string]string{"chat_id": chatID})
}

func (h *Handler) getChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	messages, err := h.store.GetMessages(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			Error(w, http.StatusNotFound, "chat not found")
			return
		}
		slog.Error("Failed to load messages", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// postMessage accepts the widget's multipart form and stores a visitor
// message. Empty text is stored as NULL, matching file-only messages.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		Error(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	var text *string
	if t := strings.TrimSpace(r.FormValue("text")); t != "" {
		text = &t
	}

	if err := h.store.AddMessage(r.Context(), chatID, model.SenderVisitor, text); err != nil {
		if errors.Is(err, ErrChatNotFound) {
			Error(w, http.StatusNotFound, "chat not found")
			return
		}
		slog.Error("Failed to store message", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	JSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

type replyRequest struct {
	Text string `json:"text"`
}

// postReply is the operator path, authenticated by X-API-Key.
func (h *Handler) postReply(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		Error(w, http.StatusForbidden, "invalid API key")
		return
	}

	chatID := chi.URLParam(r, "chatID")

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var text *string
	if t := strings.TrimSpace(req.Text); t != "" {
		text = &t
	}

	if err := h.store.AddMessage(r.Context(), chatID, model.SenderOperator, text); err != nil {
		if errors.Is(err, ErrChatNotFound) {
			Error(w, http.StatusNotFound, "chat not found")
			return
		}
		slog.Error("Failed to store reply", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to store reply")
		return
	}

	slog.Info("Operator reply stored", "chat_id", chatID)
	JSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *Handler) authorized(r *http.Request) bool {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return false
	}
	for _, k := range h.cfg.OperatorKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (h *Handler) getTyping(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	role := model.Sender(r.URL.Query().Get("role"))
	if role != model.SenderVisitor && role != model.SenderOperator {
		Error(w, http.StatusBadRequest, "role must be visitor or operator")
		return
	}

	isTyping, err := h.store.GetTyping(r.Context(), chatID, role, time.Now())
	if err != nil {
		if errors.Is(err, ErrChatNotFound) {
			Error(w, http.StatusNotFound, "chat not found")
			return
		}
		slog.Error("Failed to read typing flag", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to read typing flag")
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"is_typing": isTyping})
}

func (h *Handler) postTyping(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var status model.TypingStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if status.Role != model.SenderVisitor && status.Role != model.SenderOperator {
		Error(w, http.StatusBadRequest, "role must be visitor or operator")
		return
	}

	expiresAt := time.Now().Add(TypingTTL)
	if err := h.store.SetTyping(r.Context(), chatID, status.Role, status.IsTyping, expiresAt); err != nil {
		if errors.Is(err, ErrChatNotFound) {
			Error(w, http.StatusNotFound, "chat not found")
			return
		}
		slog.Error("Failed to set typing flag", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to set typing flag")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
