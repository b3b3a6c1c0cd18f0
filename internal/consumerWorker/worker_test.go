package consumerWorker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []dto.NotificationMessage
}

func (s *recordingSender) Send(_ context.Context, n dto.NotificationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

type chanConsumer struct {
	msgs chan []byte
}

func (c *chanConsumer) Consume(handler func([]byte) error) error {
	go func() {
		for body := range c.msgs {
			_ = handler(body)
		}
	}()
	return nil
}

func setup(t *testing.T) (*Reader, *recordingSender, *repo.KVStore, *chanConsumer) {
	t.Helper()
	log := zerolog.Nop()
	store, err := repo.NewKVStore(":memory:", &log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sender := &recordingSender{}
	consumer := &chanConsumer{msgs: make(chan []byte, 4)}
	return NewReader(consumer, store, sender, &log), sender, store, consumer
}

func encode(t *testing.T, msg dto.NotificationMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestHandleSendsPlainNotification(t *testing.T) {
	r, sender, _, _ := setup(t)

	err := r.Handle(context.Background(), encode(t, dto.NotificationMessage{
		Kind: dto.RsvpAccepted, EventID: "e1", UserID: "u1", Email: "u1@example.com",
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, dto.RsvpAccepted, sender.sent[0].Kind)
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	r, sender, _, _ := setup(t)
	assert.NoError(t, r.Handle(context.Background(), []byte("{not json")))
	assert.Empty(t, sender.sent)
}

func TestHandleReminderChecksRsvp(t *testing.T) {
	r, sender, store, _ := setup(t)
	ctx := context.Background()

	e := &model.Event{Title: "Open mic", OrganizerID: "org", Date: "2030-01-01", Time: "8:00 PM"}
	require.NoError(t, store.CreateEvent(ctx, e))
	_, err := store.RequestRsvpTx(ctx, e.ID, "u1", "Alice")
	require.NoError(t, err)

	reminder := dto.NotificationMessage{
		Kind: dto.EventReminder, EventID: e.ID, EventDate: e.Date, EventTime: e.Time,
		UserID: "u1", Email: "a@example.com",
	}

	require.NoError(t, r.Handle(ctx, encode(t, reminder)))
	assert.Empty(t, sender.sent, "pending rsvp must not get a reminder")

	_, err = store.RespondRsvpTx(ctx, e.ID, "u1", model.StatusAccepted)
	require.NoError(t, err)
	require.NoError(t, r.Handle(ctx, encode(t, reminder)))
	assert.Len(t, sender.sent, 1)

	_, err = store.DeleteEvent(ctx, e.ID)
	require.NoError(t, err)
	require.NoError(t, r.Handle(ctx, encode(t, reminder)))
	assert.Len(t, sender.sent, 1)
}

func TestHandleDropsReminderForMovedEvent(t *testing.T) {
	r, sender, store, _ := setup(t)
	ctx := context.Background()

	e := &model.Event{Title: "Book club", OrganizerID: "org", Date: "2030-01-01", Time: "8:00 PM"}
	require.NoError(t, store.CreateEvent(ctx, e))
	_, err := store.RequestRsvpTx(ctx, e.ID, "u1", "Alice")
	require.NoError(t, err)
	_, err = store.RespondRsvpTx(ctx, e.ID, "u1", model.StatusAccepted)
	require.NoError(t, err)

	old := dto.NotificationMessage{
		Kind: dto.EventReminder, EventID: e.ID, EventDate: "2030-01-01", EventTime: "8:00 PM",
		UserID: "u1", Email: "a@example.com",
	}
	_, err = store.UpdateEventTx(ctx, e.ID, func(ev *model.Event) error {
		ev.Date = "2030-02-01"
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, r.Handle(ctx, encode(t, old)))
	assert.Empty(t, sender.sent)

	moved := old
	moved.EventDate = "2030-02-01"
	require.NoError(t, r.Handle(ctx, encode(t, moved)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "2030-02-01", sender.sent[0].EventDate)
}

func TestStartStop(t *testing.T) {
	r, sender, _, consumer := setup(t)

	r.Start(context.Background())
	consumer.msgs <- encode(t, dto.NotificationMessage{Kind: dto.RsvpRejected, Email: "x@example.com"})

	assert.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	close(consumer.msgs)
}
