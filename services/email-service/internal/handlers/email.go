package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/httpx"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/email"
)

// RecipientChecker answers whether an address belongs to a known user.
type RecipientChecker interface {
	Exists(ctx context.Context, email string) (bool, error)
}

type Handler struct {
	recipients RecipientChecker
	sender     email.Sender
	logger     *slog.Logger
}

func New(recipients RecipientChecker, sender email.Sender, logger *slog.Logger) *Handler {
	return &Handler{recipients: recipients, sender: sender, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/email/check", h.Check)
	mux.HandleFunc("POST /api/email", h.Send)
}

// Check is the probe the registry guards with its circuit breaker.
// 200 means the address is a known recipient, 404 means it is not.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.URL.Query().Get("email"))
	if addr == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email query parameter is required")
		return
	}
	ok, err := h.recipients.Exists(r.Context(), addr)
	if err != nil {
		h.logger.Error("recipient lookup failed", "err", err, "email", addr)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Recipient not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"email": addr})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Message) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email and message are required")
		return
	}

	ok, err := h.recipients.Exists(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("recipient lookup failed", "err", err, "email", req.Email)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Recipient not found")
		return
	}

	if err := h.sender.Send(req.Email, "Message from user registry", req.Message); err != nil {
		h.logger.Error("mail send failed", "err", err, "email", req.Email)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "mail delivery failed")
		return
	}
	h.logger.Info("mail sent", "email", req.Email)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "SENT",
		"message": "Message to " + req.Email + " successfully sent",
	})
}
