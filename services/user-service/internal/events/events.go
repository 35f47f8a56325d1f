package events

import (
	"strconv"
	"time"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/model"
	"github.com/google/uuid"
)

// Topics carrying user lifecycle events, keyed by the user id so the
// transport preserves per-user ordering.
const (
	TopicUserCreated = "user-created-events-topic"
	TopicUserDeleted = "user-deleted-events-topic"
)

// UserCreated is the envelope published after a user row is committed.
// EventID is assigned at construction and is the event's sole identity:
// two envelopes with equal payloads are still distinct events.
type UserCreated struct {
	EventID        string    `json:"eventId"`
	EventTimestamp time.Time `json:"eventTimestamp"`
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Age            int       `json:"age"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserDeleted is the envelope published after a user row is removed.
// It carries the pre-delete identity only.
type UserDeleted struct {
	EventID        string    `json:"eventId"`
	EventTimestamp time.Time `json:"eventTimestamp"`
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
}

func NewUserCreated(u model.User) UserCreated {
	return UserCreated{
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UTC(),
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Age:            u.Age,
		CreatedAt:      u.CreatedAt,
	}
}

func NewUserDeleted(id int64, email string) UserDeleted {
	return UserDeleted{
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UTC(),
		ID:             id,
		Email:          email,
	}
}

func (e UserCreated) Key() string { return strconv.FormatInt(e.ID, 10) }
func (e UserDeleted) Key() string { return strconv.FormatInt(e.ID, 10) }
