package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/mzeli/pigeon/internal/service"
	"github.com/mzeli/pigeon/internal/transport/http/middleware"
	"github.com/mzeli/pigeon/pkg/validator"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// AddContact starts (or returns) the conversation with another user.
func (h *ChatHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var input struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	entry, err := h.chatService.AddContact(r.Context(), sess, input.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCannotChatSelf):
			writeError(w, http.StatusBadRequest, "CANNOT_CHAT_SELF", "Cannot start a conversation with yourself")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Printf("ERROR add contact: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// ListChats returns the caller's chat index, most recent activity first.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	chats, err := h.chatService.ListChats(r.Context(), sess)
	if err != nil {
		log.Printf("ERROR list chats: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	chatID := r.PathValue("id")

	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(input.Text); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.chatService.SendMessage(r.Context(), sess, chatID, input.Text)
	if err != nil {
		h.writeChatError(w, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	chatID := r.PathValue("id")

	msgs, err := h.chatService.ListMessages(r.Context(), sess, chatID)
	if err != nil {
		h.writeChatError(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// MarkRead resets the caller's unread counter and flips the peer's messages
// to read.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	chatID := r.PathValue("id")

	if err := h.chatService.MarkRead(r.Context(), sess, chatID); err != nil {
		h.writeChatError(w, "mark read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this conversation")
	case errors.Is(err, service.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	default:
		log.Printf("ERROR %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
