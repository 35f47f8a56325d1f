package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/email-service/internal/email"
)

// Recipients is the slice of the storage layer the handlers need.
type Recipients interface {
	Upsert(ctx context.Context, email string, name string) error
	Remove(ctx context.Context, email string) error
}

type userCreatedPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

type userDeletedPayload struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Handler applies consumed registry events: it maintains the local
// recipients projection and sends the matching notification mail.
type Handler struct {
	recipients Recipients
	sender     email.Sender
	logger     *slog.Logger
}

func NewHandler(recipients Recipients, sender email.Sender, logger *slog.Logger) *Handler {
	return &Handler{recipients: recipients, sender: sender, logger: logger}
}

// HandleCreated registers the new user as a recipient and sends the
// welcome mail. A malformed payload is logged and skipped.
func (h *Handler) HandleCreated(ctx context.Context, value []byte) error {
	var payload userCreatedPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		h.logger.Error("invalid user-created payload", "err", err)
		return nil
	}
	if payload.ID <= 0 || payload.Email == "" {
		h.logger.Error("missing user-created fields")
		return nil
	}

	if err := h.recipients.Upsert(ctx, payload.Email, payload.Name); err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}

	body := fmt.Sprintf("Hello %s! Your account has been successfully created.", payload.Name)
	if err := h.sender.Send(payload.Email, "Account created", body); err != nil {
		h.logger.Error("welcome mail failed", "err", err, "email", payload.Email)
		return nil
	}
	h.logger.Info("welcome mail sent", "email", payload.Email, "user_id", payload.ID)
	return nil
}

// HandleDeleted drops the recipient and sends the farewell mail.
func (h *Handler) HandleDeleted(ctx context.Context, value []byte) error {
	var payload userDeletedPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		h.logger.Error("invalid user-deleted payload", "err", err)
		return nil
	}
	if payload.ID <= 0 || payload.Email == "" {
		h.logger.Error("missing user-deleted fields")
		return nil
	}

	if err := h.recipients.Remove(ctx, payload.Email); err != nil {
		return fmt.Errorf("remove recipient: %w", err)
	}

	body := fmt.Sprintf("Your account (id=%d) has been deleted.", payload.ID)
	if err := h.sender.Send(payload.Email, "Account deleted", body); err != nil {
		h.logger.Error("farewell mail failed", "err", err, "email", payload.Email)
		return nil
	}
	h.logger.Info("farewell mail sent", "email", payload.Email, "user_id", payload.ID)
	return nil
}
