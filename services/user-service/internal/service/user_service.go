package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/events"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/model"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/query"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/storage"
)

// Repository is the slice of the user store the lifecycle service needs.
type Repository interface {
	Insert(ctx context.Context, name, email string, age int) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, id int64) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f query.Filter, p query.Page) ([]model.User, int, error)
}

// Publisher submits an envelope for asynchronous delivery. It never
// reports delivery failures back; completions are observed out-of-band.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventID string, payload []byte)
}

// UserService orchestrates the registry lifecycle. Events are built and
// submitted only after the corresponding store mutation has committed;
// a failed mutation never produces an event.
type UserService struct {
	repo   Repository
	pub    Publisher
	logger *slog.Logger
}

func New(repo Repository, pub Publisher, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, pub: pub, logger: logger}
}

func (s *UserService) Get(ctx context.Context, id int64) (model.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			s.logger.Info("user not found", "id", id)
			return model.User{}, &NotFoundError{ID: id}
		}
		s.logger.Error("user lookup failed", "id", id, "err", err)
		return model.User{}, err
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, name, email string, age int) (model.User, error) {
	s.logger.Debug("creating user", "email", email)

	u, err := s.repo.Insert(ctx, name, email, age)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			s.logger.Warn("user creation conflict", "email", email)
			return model.User{}, ErrConflict
		}
		s.logger.Error("user creation failed", "email", email, "err", err)
		return model.User{}, err
	}
	s.logger.Debug("user created", "id", u.ID, "email", u.Email)

	s.publishCreated(ctx, u)
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id int64, patch model.UserUpdate) (model.User, error) {
	s.logger.Debug("updating user", "id", id)

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			s.logger.Info("user not found", "id", id)
			return model.User{}, &NotFoundError{ID: id}
		}
		s.logger.Error("user lookup failed", "id", id, "err", err)
		return model.User{}, err
	}
	if patch.Empty() {
		// Nothing supplied, nothing mutated.
		return u, nil
	}

	patch.Apply(&u)
	out, err := s.repo.Update(ctx, u)
	if err != nil {
		switch {
		case storage.IsUniqueViolation(err):
			s.logger.Warn("user update conflict", "id", id)
			return model.User{}, ErrConflict
		case storage.IsNotFound(err):
			s.logger.Info("user not found", "id", id)
			return model.User{}, &NotFoundError{ID: id}
		default:
			s.logger.Error("user update failed", "id", id, "err", err)
			return model.User{}, err
		}
	}
	return out, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	s.logger.Debug("deleting user", "id", id)

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			s.logger.Info("user not found", "id", id)
			return &NotFoundError{ID: id}
		}
		s.logger.Error("user lookup failed", "id", id, "err", err)
		return err
	}

	// The envelope needs the pre-delete row, but it is submitted only
	// after the deletion is confirmed. If the delete fails the envelope
	// is discarded.
	evt := events.NewUserDeleted(u.ID, u.Email)

	if err := s.repo.Delete(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			s.logger.Info("user not found", "id", id)
			return &NotFoundError{ID: id}
		}
		s.logger.Error("user deletion failed", "id", id, "err", err)
		return err
	}
	s.logger.Debug("user deleted", "id", id)

	s.publish(ctx, events.TopicUserDeleted, evt.Key(), evt.EventID, evt)
	return nil
}

func (s *UserService) List(ctx context.Context, f query.Filter, p query.Page) ([]model.User, int, error) {
	users, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		s.logger.Error("user listing failed", "err", err)
		return nil, 0, err
	}
	return users, total, nil
}

// CheckEmail verifies that a user with the given email exists; it backs
// the existence probe other services call.
func (s *UserService) CheckEmail(ctx context.Context, email string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error("email existence check failed", "email", email, "err", err)
		return err
	}
	if !exists {
		s.logger.Info("user not found", "email", email)
		return &NotFoundError{Email: email}
	}
	return nil
}

func (s *UserService) publishCreated(ctx context.Context, u model.User) {
	evt := events.NewUserCreated(u)
	s.publish(ctx, events.TopicUserCreated, evt.Key(), evt.EventID, evt)
}

func (s *UserService) publish(ctx context.Context, topic, key, eventID string, envelope any) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("event marshal failed", "topic", topic, "key", key, "err", err)
		return
	}
	s.pub.Publish(ctx, topic, key, eventID, payload)
}
