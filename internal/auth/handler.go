package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/blogsphere/backend/internal/httputil"
	"github.com/blogsphere/backend/internal/logging"
	"github.com/blogsphere/backend/internal/user"
)

var validate = validator.New()

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service        *Service
	rateLimiter    RateLimiter
	logger         *logging.Logger
	accessDuration time.Duration
}

func NewHandler(service *Service, rateLimiter RateLimiter, logger *logging.Logger, accessDuration time.Duration) *Handler {
	return &Handler{
		service:        service,
		rateLimiter:    rateLimiter,
		logger:         logger,
		accessDuration: accessDuration,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest represents the login request body.
// Either username or email identifies the account.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents the change password request body
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the password reset confirmation.
// The token arrives as a path parameter; newPassword shape is checked by
// the service so the failure ordering stays token-independent.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// SendVerificationRequest represents the send verification email request
type SendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthResponse represents a successful register or login response
type AuthResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new user account. Returns the created user and an access token, also set as a cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} ErrorResponse "Username or email already exists"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limitByIP(w, r, "register") {
		return
	}

	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"username": req.Username})

	newUser, token, err := h.service.Register(r.Context(), RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			logger.Warn("registration failed: duplicate username or email")
			respondError(w, "email or username already exist", httputil.CodeUserExists, http.StatusConflict)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	SetTokenCookie(w, token, h.accessDuration)
	respondJSON(w, AuthResponse{User: newUser, Token: token}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with username or email plus password. Returns the user and an access token, also set as a cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      401 {object} ErrorResponse "Password is incorrect"
// @Failure      404 {object} ErrorResponse "No user with this username or email"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limitByIP(w, r, "login") {
		return
	}

	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	logger = logger.WithFields(map[string]any{"username": req.Username, "email": req.Email})

	loggedInUser, token, err := h.service.Login(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			logger.Warn("login failed: user not found")
			respondError(w, "user not found with this username or email", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrInvalidPassword) {
			logger.Warn("login failed: wrong password")
			respondError(w, "password is incorrect", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", loggedInUser.ID)

	SetTokenCookie(w, token, h.accessDuration)
	respondJSON(w, AuthResponse{User: loggedInUser, Token: token}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Clear the access token cookie. Always succeeds.
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ClearTokenCookie(w)

	logger.Info("user logged out")
	respondJSON(w, map[string]string{"message": "logged out successfully"}, http.StatusOK)
}

// ChangePassword handles password change for the authenticated user
// @Summary      Change password
// @Description  Replace the current password after verifying the old one.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ChangePasswordRequest true "Old and new password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request or validation error"
// @Failure      401 {object} ErrorResponse "Invalid old password"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidOldPassword) {
			logger.Warn("change password failed: wrong old password", "user_id", userID)
			respondError(w, "invalid old password", httputil.CodeInvalidOldPassword, http.StatusUnauthorized)
			return
		}
		logger.Error("change password failed: internal error", "error", err.Error())
		respondError(w, "failed to change password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password changed successfully", "user_id", userID)
	respondJSON(w, map[string]string{"message": "password changed successfully"}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Store a single-use reset token and email a reset link valid for one hour.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      404 {object} ErrorResponse "No user with this email"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Mail dispatch failed"
// @Router       /forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if h.limitByIPAndEmail(w, r, req.Email) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			logger.Warn("forgot password failed: user not found")
			respondError(w, "user not found with this email", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("forgot password failed: internal error", "error", err.Error())
		respondError(w, "failed to send password reset email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{
		"message": "password reset request sent to your email",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Redeem a single-use reset token. A token redeems at most once and expires one hour after issue.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token path string true "Reset token"
// @Param        request body ResetPasswordRequest true "New password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid password, invalid token, or token expired"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /reset-password/{token} [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), token, strings.TrimSpace(req.NewPassword)); err != nil {
		if errors.Is(err, ErrPasswordRequired) {
			logger.Warn("password reset failed: empty password")
			respondError(w, "invalid password", httputil.CodePasswordRequired, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrInvalidResetToken) {
			logger.Warn("password reset failed: invalid token")
			respondError(w, "invalid token", httputil.CodeInvalidToken, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrResetTokenExpired) {
			logger.Warn("password reset failed: token expired")
			respondError(w, "token expired", httputil.CodeTokenExpired, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset successfully")
	respondJSON(w, map[string]string{"message": "password successfully reset"}, http.StatusOK)
}

// SendEmailVerification handles requests for a verification email
// @Summary      Send verification email
// @Description  Store a single-use verification token and email a verification link.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SendVerificationRequest true "Email address"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request or email already verified"
// @Failure      404 {object} ErrorResponse "No user with this email"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Mail dispatch failed"
// @Router       /send-email-verification [post]
func (h *Handler) SendEmailVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SendVerificationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if h.limitByIPAndEmail(w, r, req.Email) {
		return
	}

	if err := h.service.SendEmailVerification(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			logger.Warn("send verification failed: user not found")
			respondError(w, "user not found with this email", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrAlreadyVerified) {
			logger.Warn("send verification failed: already verified")
			respondError(w, "email is already verified", httputil.CodeAlreadyVerified, http.StatusBadRequest)
			return
		}
		logger.Error("send verification failed: internal error", "error", err.Error())
		respondError(w, "failed to send verification email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{
		"message": "verification link sent to your email",
	}, http.StatusOK)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Redeem a single-use verification token from the emailed link.
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid token"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /verify-email/{token} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, ErrInvalidVerificationToken) {
			logger.Warn("email verification failed: invalid token")
			respondError(w, "invalid token", httputil.CodeInvalidToken, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified successfully")
	respondJSON(w, map[string]string{"message": "email verified successfully"}, http.StatusOK)
}

// decodeAndValidate decodes the JSON body into req and runs struct
// validation. Writes the error response itself and reports success.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}

	if err := validate.Struct(req); err != nil {
		logger.Warn("request validation failed", "error", err.Error())
		respondError(w, validationMessage(err), httputil.CodeValidationFailed, http.StatusBadRequest)
		return false
	}

	return true
}

// validationMessage builds a short human-readable message from the first
// failed validation rule.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "required_without":
		return field + " is required"
	case "email":
		return "invalid email format"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

// limitByIP applies the per-purpose IP rate limit. Returns true if the
// request was rejected.
func (h *Handler) limitByIP(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		// Continue despite error to avoid blocking legitimate requests
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return false
}

// limitByIPAndEmail applies the IP limit plus a per-email cooldown for
// mail-sending endpoints. Returns true if the request was rejected.
func (h *Handler) limitByIPAndEmail(w http.ResponseWriter, r *http.Request, email string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limitByIP(w, r, "email") {
		return true
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		// Continue despite error
	} else if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	return false
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", extract just the IP
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
