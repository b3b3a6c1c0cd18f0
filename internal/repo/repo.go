package repo

import (
	"context"
	"errors"

	"eventhub/internal/model"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrSessionNotFound = errors.New("session not found")

	ErrEventFull         = model.ErrEventFull
	ErrDuplicateRequest  = model.ErrDuplicateRequest
	ErrRequestNotFound   = model.ErrRequestNotFound
	ErrInvalidTransition = model.ErrInvalidTransition
)

// EventMutation edits an event in place while the repository holds its lock.
type EventMutation func(e *model.Event) error

// Repository is implemented by the key-value store and the postgres store.
// Events returned by either backend have attendee fields derived from
// their rsvp requests.
type Repository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	UpdateEventTx(ctx context.Context, id string, mutate EventMutation) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) (*model.Event, error)

	RequestRsvpTx(ctx context.Context, eventID, userID, userName string) (*model.Event, error)
	RespondRsvpTx(ctx context.Context, eventID, userID string, status model.RsvpStatus) (*model.Event, error)
	CancelRsvpTx(ctx context.Context, eventID, userID string) (*model.Event, error)
	ListRsvpRequestsByUser(ctx context.Context, userID string) ([]model.RsvpRequest, error)

	Ping(ctx context.Context) error
	Close() error
}
