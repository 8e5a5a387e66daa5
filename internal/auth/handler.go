package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/telegram"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/token"
)

// Handler exposes the orchestrator over HTTP.
type Handler struct {
	svc    *Service
	mgr    *token.Manager
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, mgr *token.Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, mgr: mgr, logger: logger}
}

// envelope is the stable error body every failed request gets.
type envelope struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// LoginRequest login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// RefreshRequest refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Logout resolves the caller from the bearer access token and revokes
// every refresh token they hold.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.bearerUserID(r)
	if userID == 0 {
		h.writeError(w, http.StatusUnauthorized, "invalid or missing access token")
		return
	}
	if err := h.svc.Logout(r.Context(), userID); err != nil {
		h.writeFlowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TelegramAuthRequest WebApp payload.
type TelegramAuthRequest struct {
	InitData string `json:"initData"`
}

func (h *Handler) TelegramAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req TelegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.svc.TelegramAuthenticate(r.Context(), req.InitData)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// TelegramLoginRequest binds a Telegram account during a password login.
type TelegramLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	TelegramID int64  `json:"telegramId"`
}

func (h *Handler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req TelegramLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.svc.LoginWithTelegram(r.Context(), req.Identifier, req.Password, req.TelegramID)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// TelegramRegisterRequest registers with an immediate Telegram binding.
type TelegramRegisterRequest struct {
	RegisterInput
	TelegramID int64 `json:"telegramId"`
}

func (h *Handler) TelegramRegister(w http.ResponseWriter, r *http.Request) {
	var req TelegramRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.svc.RegisterWithTelegram(r.Context(), req.RegisterInput, req.TelegramID)
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) bearerUserID(r *http.Request) int64 {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return 0
	}
	return h.mgr.UserID(raw)
}

// writeFlowError maps orchestrator sentinels onto HTTP statuses.
func (h *Handler) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrUserDeactivated):
		h.writeError(w, http.StatusForbidden, "user deactivated")
	case errors.Is(err, token.ErrTokenExpired):
		h.writeError(w, http.StatusForbidden, "refresh token expired")
	case errors.Is(err, token.ErrTokenNotFound):
		h.writeError(w, http.StatusForbidden, "refresh token not found")
	case errors.Is(err, telegram.ErrInvalidInitData):
		h.writeError(w, http.StatusBadRequest, "invalid telegram data")
	case errors.Is(err, ErrTelegramIDBound):
		h.writeError(w, http.StatusConflict, "telegram account already bound")
	case errors.Is(err, ErrUsernameExists):
		h.writeError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, ErrEmailExists):
		h.writeError(w, http.StatusConflict, "email already exists")
	case errors.Is(err, ErrRegistration):
		h.writeError(w, http.StatusBadRequest, "registration failed")
	default:
		h.writeError(w, http.StatusInternalServerError, "authentication process failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, envelope{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warnw("response encode failed", "err", err)
	}
}
