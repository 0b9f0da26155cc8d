package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/mzeli/pigeon/internal/service"
	"github.com/mzeli/pigeon/internal/transport/http/middleware"
	"github.com/mzeli/pigeon/pkg/validator"
)

const maxAvatarSize = 5 << 20 // 5 MiB

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	user, err := h.userService.Get(r.Context(), sess)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			log.Printf("ERROR get profile: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// CompleteProfile accepts multipart form data: display_name plus an optional
// avatar file.
func (h *UserHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
		return
	}

	displayName := r.FormValue("display_name")
	if errs := validator.ValidateProfile(displayName); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	var avatar io.Reader
	var avatarName string
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		avatar = file
		avatarName = header.Filename
	}

	user, err := h.userService.CompleteProfile(r.Context(), sess, displayName, avatar, avatarName)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			log.Printf("ERROR complete profile: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "q is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	users, err := h.userService.Search(r.Context(), sess, prefix, limit)
	if err != nil {
		log.Printf("ERROR search users: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, users)
}
