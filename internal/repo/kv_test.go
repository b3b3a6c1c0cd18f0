package repo

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
)

func newTestKV(t *testing.T) *KVStore {
	t.Helper()
	log := zerolog.Nop()
	store, err := NewKVStore(":memory:", &log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fakeUser() *model.User {
	return &model.User{
		Email:        gofakeit.Email(),
		Name:         gofakeit.Name(),
		PasswordHash: "hash",
	}
}

func fakeEvent(organizer *model.User, capacity int) *model.Event {
	return &model.Event{
		Title:       gofakeit.LoremIpsumSentence(4),
		Description: gofakeit.LoremIpsumSentence(15),
		Date:        "2030-06-01",
		Time:        "7:00 PM",
		Location:    gofakeit.City(),
		Category:    "Music",
		Type:        model.EventPublic,
		MaxCapacity: capacity,
		OrganizerID: organizer.ID,
		Organizer:   organizer.Name,
	}
}

func TestKVUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	u := fakeUser()
	require.NoError(t, store.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	dup := fakeUser()
	dup.Email = u.Email
	assert.ErrorIs(t, store.CreateUser(ctx, dup), ErrEmailTaken)

	got, err := store.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got.IsLoggedIn = true
	require.NoError(t, store.UpdateUser(ctx, got))
	got, err = store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLoggedIn)

	_, err = store.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestKVSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	require.NoError(t, store.CreateSession(ctx, &model.Session{Token: "t1", UserID: "u1"}))
	s, err := store.GetSession(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	require.NoError(t, store.DeleteSession(ctx, "t1"))
	_, err = store.GetSession(ctx, "t1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, store.DeleteSession(ctx, "t1"))
}

func TestKVRsvpFlow(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	host, guest := fakeUser(), fakeUser()
	require.NoError(t, store.CreateUser(ctx, host))
	require.NoError(t, store.CreateUser(ctx, guest))

	e := fakeEvent(host, 1)
	require.NoError(t, store.CreateEvent(ctx, e))

	got, err := store.RequestRsvpTx(ctx, e.ID, guest.ID, guest.Name)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.StatusFor(guest.ID))

	_, err = store.RequestRsvpTx(ctx, e.ID, guest.ID, guest.Name)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	got, err = store.RespondRsvpTx(ctx, e.ID, guest.ID, model.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentAttendees)
	assert.Equal(t, []string{guest.Name}, got.Attendees)

	stored, err := store.GetEventByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentAttendees)

	other := fakeUser()
	require.NoError(t, store.CreateUser(ctx, other))
	_, err = store.RequestRsvpTx(ctx, e.ID, other.ID, other.Name)
	assert.ErrorIs(t, err, ErrEventFull)

	reqs, err := store.ListRsvpRequestsByUser(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, model.StatusAccepted, reqs[0].Status)

	_, err = store.CancelRsvpTx(ctx, e.ID, guest.ID)
	require.NoError(t, err)
	reqs, err = store.ListRsvpRequestsByUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestKVFailedMutationIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	host := fakeUser()
	require.NoError(t, store.CreateUser(ctx, host))
	e := fakeEvent(host, 0)
	require.NoError(t, store.CreateEvent(ctx, e))

	_, err := store.UpdateEventTx(ctx, e.ID, func(ev *model.Event) error {
		ev.Title = "changed"
		return model.ErrCapacityTooLow
	})
	assert.ErrorIs(t, err, model.ErrCapacityTooLow)

	stored, err := store.GetEventByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Title, stored.Title)
}

func TestKVDeleteEventCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	host, guest := fakeUser(), fakeUser()
	require.NoError(t, store.CreateUser(ctx, host))
	require.NoError(t, store.CreateUser(ctx, guest))
	e := fakeEvent(host, 0)
	require.NoError(t, store.CreateEvent(ctx, e))
	_, err := store.RequestRsvpTx(ctx, e.ID, guest.ID, guest.Name)
	require.NoError(t, err)

	removed, err := store.DeleteEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, removed.RsvpRequests, 1)

	reqs, err := store.ListRsvpRequestsByUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	_, err = store.DeleteEvent(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestKVConcurrentRequestsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	host := fakeUser()
	require.NoError(t, store.CreateUser(ctx, host))
	e := fakeEvent(host, 3)
	require.NoError(t, store.CreateEvent(ctx, e))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := store.RequestRsvpTx(ctx, e.ID, id, id); err != nil {
				return
			}
			_, _ = store.RespondRsvpTx(ctx, e.ID, id, model.StatusAccepted)
		}(gofakeit.UUID())
	}
	wg.Wait()

	stored, err := store.GetEventByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentAttendees)
	assert.GreaterOrEqual(t, len(stored.RsvpRequests), 3)
}

func TestKVCorruptBlobIsReportedAndLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	store, err := NewKVStore(":memory:", &log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		keyEvents, []byte("{broken"))
	require.NoError(t, err)

	_, err = store.GetAllEvents(ctx)
	assert.ErrorContains(t, err, "failed to decode key events")
	assert.Contains(t, buf.String(), "stored value is not valid JSON")
	assert.Contains(t, buf.String(), `"key":"events"`)
}
