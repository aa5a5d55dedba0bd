package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/blogsphere/backend/internal/auth"
	"github.com/blogsphere/backend/internal/httputil"
	"github.com/blogsphere/backend/internal/logging"
	"github.com/blogsphere/backend/internal/user"
)

var validate = validator.New()

// Store is the slice of the user repository the profile handlers use
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params user.UpdateProfileParams) (*user.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar string) (*user.User, error)
}

// Handler contains HTTP handlers for the current user's profile
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// UpdateProfileRequest represents the profile update request body
type UpdateProfileRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Gender   string `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
}

// ChangeAvatarRequest represents the avatar change request body
type ChangeAvatarRequest struct {
	Avatar string `json:"avatar" validate:"required,url"`
}

// Me returns the authenticated user
// @Summary      Current user
// @Description  Return the profile of the authenticated user.
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} user.User
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid authentication"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	current, err := h.store.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to fetch current user", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to fetch user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, current, http.StatusOK)
}

// UpdateProfile updates the authenticated user's profile fields
// @Summary      Update profile
// @Description  Update name, username, email, and gender. Username and email stay unique across users.
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateProfileRequest true "Profile fields"
// @Success      200 {object} user.User
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Username or email already taken"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /me [patch]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	params := user.UpdateProfileParams{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
	}
	if req.Gender != "" {
		g := user.Gender(req.Gender)
		params.Gender = &g
	}

	updated, err := h.store.UpdateProfile(r.Context(), userID, params)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("profile update failed: email taken", "user_id", userID)
			httputil.RespondErrorWithCode(w, "email already exists", httputil.CodeUserExists, http.StatusConflict)
			return
		}
		if errors.Is(err, user.ErrDuplicateUsername) {
			logger.Warn("profile update failed: username taken", "user_id", userID)
			httputil.RespondErrorWithCode(w, "username already exists", httputil.CodeUserExists, http.StatusConflict)
			return
		}
		logger.Error("profile update failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("profile updated", "user_id", userID)
	httputil.RespondJSON(w, updated, http.StatusOK)
}

// ChangeAvatar replaces the authenticated user's avatar URL
// @Summary      Change avatar
// @Description  Replace the avatar with the URL of an externally hosted image.
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ChangeAvatarRequest true "Avatar URL"
// @Success      200 {object} user.User
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /me/avatar [post]
func (h *Handler) ChangeAvatar(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangeAvatarRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.store.UpdateAvatar(r.Context(), userID, req.Avatar)
	if err != nil {
		logger.Error("avatar update failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update avatar", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("avatar updated", "user_id", userID)
	httputil.RespondJSON(w, updated, http.StatusOK)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		msg := "validation failed"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = strings.ToLower(verrs[0].Field()) + " is invalid"
		}
		httputil.RespondErrorWithCode(w, msg, httputil.CodeValidationFailed, http.StatusBadRequest)
		return false
	}

	return true
}
