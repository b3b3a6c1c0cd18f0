package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"eventhub/internal/model"
)

const (
	keyEvents   = "events"
	keyUsers    = "users"
	keySessions = "sessions"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// KVStore keeps each collection as a single JSON document in a SQLite
// key-value table. Writers are serialized and every write of one or more
// keys happens in a single transaction.
type KVStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zerolog.Logger
}

func NewKVStore(dsn string, log *zerolog.Logger) (*KVStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and sqlite writes ordered
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &KVStore{db: db, log: log}, nil
}

func (s *KVStore) getBlob(ctx context.Context, q querier, key string, dst any) error {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Error().Err(err).Str("key", key).Int("bytes", len(raw)).Msg("stored value is not valid JSON")
		return fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	return nil
}

func putBlob(ctx context.Context, ex execer, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) update(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("failed to roll back kv transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		s.log.Error().Err(err).Msg("failed to commit kv transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *KVStore) loadEvents(ctx context.Context, q querier) ([]model.Event, error) {
	var events []model.Event
	if err := s.getBlob(ctx, q, keyEvents, &events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Derive()
	}
	return events, nil
}

func (s *KVStore) loadUsers(ctx context.Context, q querier) ([]model.User, error) {
	var users []model.User
	if err := s.getBlob(ctx, q, keyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *KVStore) loadSessions(ctx context.Context, q querier) (map[string]model.Session, error) {
	sessions := map[string]model.Session{}
	if err := s.getBlob(ctx, q, keySessions, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *KVStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return s.update(ctx, func(tx *sql.Tx) error {
		users, err := s.loadUsers(ctx, tx)
		if err != nil {
			return err
		}
		for _, existing := range users {
			if strings.EqualFold(existing.Email, u.Email) {
				return ErrEmailTaken
			}
		}
		return putBlob(ctx, tx, keyUsers, append(users, *u))
	})
}

func (s *KVStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	users, err := s.loadUsers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *KVStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := s.loadUsers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *KVStore) UpdateUser(ctx context.Context, u *model.User) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		users, err := s.loadUsers(ctx, tx)
		if err != nil {
			return err
		}
		for i := range users {
			if users[i].ID == u.ID {
				users[i] = *u
				return putBlob(ctx, tx, keyUsers, users)
			}
		}
		return ErrUserNotFound
	})
}

func (s *KVStore) CreateSession(ctx context.Context, sess *model.Session) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		sessions, err := s.loadSessions(ctx, tx)
		if err != nil {
			return err
		}
		sessions[sess.Token] = *sess
		return putBlob(ctx, tx, keySessions, sessions)
	})
}

func (s *KVStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	sessions, err := s.loadSessions(ctx, s.db)
	if err != nil {
		return nil, err
	}
	sess, ok := sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *KVStore) DeleteSession(ctx context.Context, token string) error {
	return s.update(ctx, func(tx *sql.Tx) error {
		sessions, err := s.loadSessions(ctx, tx)
		if err != nil {
			return err
		}
		if _, ok := sessions[token]; !ok {
			return nil
		}
		delete(sessions, token)
		return putBlob(ctx, tx, keySessions, sessions)
	})
}

func (s *KVStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Derive()
	return s.update(ctx, func(tx *sql.Tx) error {
		events, err := s.loadEvents(ctx, tx)
		if err != nil {
			return err
		}
		return putBlob(ctx, tx, keyEvents, append(events, *e))
	})
}

func (s *KVStore) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	events, err := s.loadEvents(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ID == id {
			return &events[i], nil
		}
	}
	return nil, ErrEventNotFound
}

func (s *KVStore) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.loadEvents(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// mutateEvent applies fn to the stored event and persists the result
// only when fn succeeds.
func (s *KVStore) mutateEvent(ctx context.Context, id string, fn EventMutation) (*model.Event, error) {
	var out model.Event
	err := s.update(ctx, func(tx *sql.Tx) error {
		events, err := s.loadEvents(ctx, tx)
		if err != nil {
			return err
		}
		for i := range events {
			if events[i].ID != id {
				continue
			}
			if err := fn(&events[i]); err != nil {
				return err
			}
			events[i].Derive()
			out = events[i]
			return putBlob(ctx, tx, keyEvents, events)
		}
		return ErrEventNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *KVStore) UpdateEventTx(ctx context.Context, id string, mutate EventMutation) (*model.Event, error) {
	return s.mutateEvent(ctx, id, func(e *model.Event) error {
		if err := mutate(e); err != nil {
			return err
		}
		e.UpdatedAt = time.Now().UTC()
		return e.CheckCapacity()
	})
}

// DeleteEvent removes the event together with its rsvp requests.
func (s *KVStore) DeleteEvent(ctx context.Context, id string) (*model.Event, error) {
	var removed model.Event
	err := s.update(ctx, func(tx *sql.Tx) error {
		events, err := s.loadEvents(ctx, tx)
		if err != nil {
			return err
		}
		for i := range events {
			if events[i].ID == id {
				removed = events[i]
				events = append(events[:i:i], events[i+1:]...)
				return putBlob(ctx, tx, keyEvents, events)
			}
		}
		return ErrEventNotFound
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

func (s *KVStore) RequestRsvpTx(ctx context.Context, eventID, userID, userName string) (*model.Event, error) {
	return s.mutateEvent(ctx, eventID, func(e *model.Event) error {
		_, err := e.AddRequest(userID, userName, time.Now().UTC())
		return err
	})
}

func (s *KVStore) RespondRsvpTx(ctx context.Context, eventID, userID string, status model.RsvpStatus) (*model.Event, error) {
	return s.mutateEvent(ctx, eventID, func(e *model.Event) error {
		_, err := e.Respond(userID, status, time.Now().UTC())
		return err
	})
}

func (s *KVStore) CancelRsvpTx(ctx context.Context, eventID, userID string) (*model.Event, error) {
	return s.mutateEvent(ctx, eventID, func(e *model.Event) error {
		_, err := e.Cancel(userID, time.Now().UTC())
		return err
	})
}

func (s *KVStore) ListRsvpRequestsByUser(ctx context.Context, userID string) ([]model.RsvpRequest, error) {
	events, err := s.loadEvents(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := []model.RsvpRequest{}
	for i := range events {
		if req, ok := events[i].Request(userID); ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KVStore) Close() error {
	return s.db.Close()
}
