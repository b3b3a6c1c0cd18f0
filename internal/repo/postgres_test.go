package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/model"
)

var eventCols = []string{
	"id", "title", "description", "date", "time", "location", "address", "category", "type",
	"max_capacity", "organizer_id", "organizer", "thumbnail", "distance", "created_at", "updated_at",
}

var requestCols = []string{"event_id", "user_id", "user_name", "status", "created_at", "updated_at"}

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := zerolog.Nop()
	return &Postgres{db: &dbpg.DB{Master: db}, log: &log}, mock
}

func eventRow(id string, capacity int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(eventCols).AddRow(
		id, "Open mic", "Bring a song", "2030-06-01", "7:00 PM", "Student Union", "", "Music", "public",
		capacity, "org", "Organizer", "", nil, now, now,
	)
}

func TestPostgresGetEventByIDNotFound(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetEventByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetEventByIDDerivesAttendees(t *testing.T) {
	r, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 10))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e1", "u1", "Alice", "accepted", now, now).
			AddRow("e1", "u2", "Bob", "pending", now, now))

	e, err := r.GetEventByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.CurrentAttendees)
	assert.Equal(t, []string{"Alice"}, e.Attendees)
	assert.Equal(t, model.StatusPending, e.StatusFor("u2"))
	assert.Nil(t, e.Distance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRequestRsvpTx(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 2))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols))
	mock.ExpectExec(`UPDATE events SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rsvp_requests`).
		WithArgs("e1", "u1", "Alice", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := r.RequestRsvpTx(context.Background(), "e1", "u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, e.StatusFor("u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRespondRsvpTxFullEventRollsBack(t *testing.T) {
	r, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 1))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e1", "u1", "Alice", "accepted", now, now).
			AddRow("e1", "u2", "Bob", "pending", now, now))
	mock.ExpectRollback()

	_, err := r.RespondRsvpTx(context.Background(), "e1", "u2", model.StatusAccepted)
	assert.ErrorIs(t, err, ErrEventFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCancelRsvpTxDeletesRow(t *testing.T) {
	r, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 0))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e1", "u1", "Alice", "accepted", now, now))
	mock.ExpectExec(`UPDATE events SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM rsvp_requests WHERE event_id = \$1 AND user_id = \$2`).
		WithArgs("e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := r.CancelRsvpTx(context.Background(), "e1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, e.CurrentAttendees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserDuplicateEmail(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := r.CreateUser(context.Background(), &model.User{Email: "a@b.c", Name: "A", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSessionNotFound(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectQuery(`FROM sessions WHERE token = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateEventTxSyncsRequests(t *testing.T) {
	r, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 5))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e1", "u1", "Alice", "accepted", now, now).
			AddRow("e1", "u2", "Bob", "pending", now, now))
	mock.ExpectExec(`UPDATE events SET`).
		WithArgs("Open mic night", "Bring a song", "2030-07-01", "7:00 PM", "Student Union", "", "Music",
			"public", 5, "", nil, sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE rsvp_requests SET status = \$1, updated_at = \$2`).
		WithArgs("rejected", sqlmock.AnyArg(), "e1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rsvp_requests`).
		WithArgs("e1", "u3", "Carol", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM rsvp_requests WHERE event_id = \$1 AND user_id = \$2`).
		WithArgs("e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := r.UpdateEventTx(context.Background(), "e1", func(e *model.Event) error {
		e.Title = "Open mic night"
		e.Date = "2030-07-01"
		if _, err := e.Cancel("u1", now); err != nil {
			return err
		}
		if _, err := e.Respond("u2", model.StatusRejected, now); err != nil {
			return err
		}
		_, err := e.AddRequest("u3", "Carol", now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "2030-07-01", e.Date)
	assert.Equal(t, 0, e.CurrentAttendees)
	assert.Equal(t, model.StatusRejected, e.StatusFor("u2"))
	assert.Equal(t, model.StatusPending, e.StatusFor("u3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateEventTxCapacityTooLowRollsBack(t *testing.T) {
	r, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 5))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e1", "u1", "Alice", "accepted", now, now).
			AddRow("e1", "u2", "Bob", "accepted", now, now))
	mock.ExpectRollback()

	_, err := r.UpdateEventTx(context.Background(), "e1", func(e *model.Event) error {
		e.MaxCapacity = 1
		return nil
	})
	assert.ErrorIs(t, err, model.ErrCapacityTooLow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateEventTxNotFound(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.UpdateEventTx(context.Background(), "missing", func(*model.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteEvent(t *testing.T) {
	r, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 10))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e1", "u1", "Alice", "accepted", now, now))
	mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	e, err := r.DeleteEvent(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, e.Attendees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteEventRaceLost(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1`).
		WithArgs("e1").
		WillReturnRows(eventRow("e1", 10))
	mock.ExpectQuery(`FROM rsvp_requests WHERE event_id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(requestCols))
	mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := r.DeleteEvent(context.Background(), "e1")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRsvpRequestsByUser(t *testing.T) {
	r, mock := newMockPostgres(t)
	newer := time.Now()
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`FROM rsvp_requests\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("e2", "u1", "Alice", "pending", newer, newer).
			AddRow("e1", "u1", "Alice", "accepted", older, older))

	reqs, err := r.ListRsvpRequestsByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "e2", reqs[0].EventID)
	assert.Equal(t, model.StatusAccepted, reqs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRsvpRequestsByUserEmpty(t *testing.T) {
	r, mock := newMockPostgres(t)

	mock.ExpectQuery(`FROM rsvp_requests\s+WHERE user_id = \$1`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(requestCols))

	reqs, err := r.ListRsvpRequestsByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, reqs)
	assert.Empty(t, reqs)
}
