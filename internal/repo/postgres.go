package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const eventColumns = `id, title, description, date, time, location, address, category, type,
	max_capacity, organizer_id, organizer, thumbnail, distance, created_at, updated_at`

const requestColumns = `event_id, user_id, user_name, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// Postgres stores users, sessions, events and rsvp requests in separate tables.
type Postgres struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewPostgres(db *dbpg.DB, log *zerolog.Logger) (*Postgres, error) {
	if db == nil || db.Master == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &Postgres{db: db, log: log}, nil
}

func (r *Postgres) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(r.db.Master, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func (r *Postgres) MigrateUp() error {
	m, err := r.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	r.log.Info().Msg("Migrations applied successfully")
	return nil
}

func (r *Postgres) MigrateDown() error {
	m, err := r.migrator()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	r.log.Info().Msg("Migrations rolled back successfully")
	return nil
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.PasswordHash,
		&u.IsLoggedIn, &lastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e        model.Event
		typ      string
		distance sql.NullFloat64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location,
		&e.Address, &e.Category, &typ, &e.MaxCapacity, &e.OrganizerID, &e.Organizer,
		&e.Thumbnail, &distance, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Type = model.EventType(typ)
	if distance.Valid {
		d := distance.Float64
		e.Distance = &d
	}
	return &e, nil
}

func scanRequest(row scanner) (model.RsvpRequest, error) {
	var (
		req    model.RsvpRequest
		status string
	)
	err := row.Scan(&req.EventID, &req.UserID, &req.UserName, &status, &req.CreatedAt, &req.UpdatedAt)
	req.Status = model.RsvpStatus(status)
	return req, err
}

func nullDistance(d *float64) sql.NullFloat64 {
	if d == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *d, Valid: true}
}

func (r *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Master.ExecContext(ctx, `
		INSERT INTO users (id, email, name, avatar, password_hash, is_logged_in, last_login_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Name, u.Avatar, u.PasswordHash, u.IsLoggedIn, u.LastLoginAt, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *Postgres) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	row := r.db.Master.QueryRowContext(ctx, `
		SELECT id, email, name, avatar, password_hash, is_logged_in, last_login_at, created_at
		FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *Postgres) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, "id = $1", id)
}

func (r *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *Postgres) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := r.db.Master.ExecContext(ctx, `
		UPDATE users
		SET name = $1, avatar = $2, is_logged_in = $3, last_login_at = $4
		WHERE id = $5
	`, u.Name, u.Avatar, u.IsLoggedIn, u.LastLoginAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Postgres) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := r.db.Master.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, s.Token, s.UserID, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *Postgres) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	err := r.db.Master.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = $1
	`, token).Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *Postgres) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.Master.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *Postgres) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := r.db.Master.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, e.ID, e.Title, e.Description, e.Date, e.Time, e.Location, e.Address, e.Category,
		string(e.Type), e.MaxCapacity, e.OrganizerID, e.Organizer, e.Thumbnail,
		nullDistance(e.Distance), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	e.Derive()
	return nil
}

func (r *Postgres) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.Master.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	reqs, err := r.loadRequests(ctx, r.db.Master, id)
	if err != nil {
		return nil, err
	}
	e.RsvpRequests = reqs
	e.Derive()
	return e, nil
}

type rowsQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Postgres) loadRequests(ctx context.Context, q rowsQuerier, eventID string) ([]model.RsvpRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM rsvp_requests
		WHERE event_id = $1
		ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp requests: %w", err)
	}
	defer rows.Close()

	reqs := []model.RsvpRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rsvp request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *Postgres) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byEvent, err := r.requestsByEvent(ctx)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].RsvpRequests = byEvent[events[i].ID]
		events[i].Derive()
	}
	return events, nil
}

func (r *Postgres) requestsByEvent(ctx context.Context) (map[string][]model.RsvpRequest, error) {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM rsvp_requests ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp requests: %w", err)
	}
	defer rows.Close()

	out := map[string][]model.RsvpRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rsvp request: %w", err)
		}
		out[req.EventID] = append(out[req.EventID], req)
	}
	return out, rows.Err()
}

// mutateEventTx locks the event row, applies fn to the loaded event and
// writes back the event row plus any rsvp rows fn added, changed or removed.
func (r *Postgres) mutateEventTx(ctx context.Context, id string, fn EventMutation) (*model.Event, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	e, err := scanEvent(row)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	before, err := r.loadRequests(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	e.RsvpRequests = append([]model.RsvpRequest(nil), before...)
	e.Derive()

	if err := fn(e); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE events
		SET title = $1, description = $2, date = $3, time = $4, location = $5, address = $6,
		    category = $7, type = $8, max_capacity = $9, thumbnail = $10, distance = $11, updated_at = $12
		WHERE id = $13
	`, e.Title, e.Description, e.Date, e.Time, e.Location, e.Address, e.Category,
		string(e.Type), e.MaxCapacity, e.Thumbnail, nullDistance(e.Distance), e.UpdatedAt, e.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if err := syncRequests(ctx, tx, id, before, e.RsvpRequests); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	e.Derive()
	return e, nil
}

func syncRequests(ctx context.Context, tx *sql.Tx, eventID string, before, after []model.RsvpRequest) error {
	old := make(map[string]model.RsvpRequest, len(before))
	for _, req := range before {
		old[req.UserID] = req
	}

	for _, req := range after {
		prev, ok := old[req.UserID]
		delete(old, req.UserID)
		switch {
		case !ok:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rsvp_requests (`+requestColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, eventID, req.UserID, req.UserName, string(req.Status), req.CreatedAt, req.UpdatedAt); err != nil {
				return fmt.Errorf("failed to insert rsvp request: %w", err)
			}
		case prev.Status != req.Status:
			if _, err := tx.ExecContext(ctx, `
				UPDATE rsvp_requests SET status = $1, updated_at = $2
				WHERE event_id = $3 AND user_id = $4
			`, string(req.Status), req.UpdatedAt, eventID, req.UserID); err != nil {
				return fmt.Errorf("failed to update rsvp request: %w", err)
			}
		}
	}

	for userID := range old {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM rsvp_requests WHERE event_id = $1 AND user_id = $2
		`, eventID, userID); err != nil {
			return fmt.Errorf("failed to delete rsvp request: %w", err)
		}
	}
	return nil
}

func (r *Postgres) UpdateEventTx(ctx context.Context, id string, mutate EventMutation) (*model.Event, error) {
	return r.mutateEventTx(ctx, id, func(e *model.Event) error {
		if err := mutate(e); err != nil {
			return err
		}
		e.UpdatedAt = time.Now().UTC()
		return e.CheckCapacity()
	})
}

// DeleteEvent relies on ON DELETE CASCADE to drop the event's rsvp requests.
func (r *Postgres) DeleteEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := r.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := r.db.Master.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (r *Postgres) RequestRsvpTx(ctx context.Context, eventID, userID, userName string) (*model.Event, error) {
	return r.mutateEventTx(ctx, eventID, func(e *model.Event) error {
		_, err := e.AddRequest(userID, userName, time.Now().UTC())
		return err
	})
}

func (r *Postgres) RespondRsvpTx(ctx context.Context, eventID, userID string, status model.RsvpStatus) (*model.Event, error) {
	return r.mutateEventTx(ctx, eventID, func(e *model.Event) error {
		_, err := e.Respond(userID, status, time.Now().UTC())
		return err
	})
}

func (r *Postgres) CancelRsvpTx(ctx context.Context, eventID, userID string) (*model.Event, error) {
	return r.mutateEventTx(ctx, eventID, func(e *model.Event) error {
		_, err := e.Cancel(userID, time.Now().UTC())
		return err
	})
}

func (r *Postgres) ListRsvpRequestsByUser(ctx context.Context, userID string) ([]model.RsvpRequest, error) {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM rsvp_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp requests: %w", err)
	}
	defer rows.Close()

	reqs := []model.RsvpRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rsvp request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *Postgres) Ping(ctx context.Context) error {
	return r.db.Master.PingContext(ctx)
}

func (r *Postgres) Close() error {
	return r.db.Master.Close()
}
