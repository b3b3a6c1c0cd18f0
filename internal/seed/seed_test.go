package seed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
	"eventhub/internal/repo"
)

func TestEventsAreValidSamples(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	events := Events(now, &model.User{ID: "host", Name: HostName})
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.True(t, model.IsCategory(e.Category), e.Category)
		_, err := e.StartsAt(time.UTC)
		assert.NoError(t, err, e.Title)
		assert.Equal(t, "host", e.OrganizerID)
		assert.Greater(t, e.Date, "2030-01-01")
	}
}

func TestRunSeedsOnlyEmptyStore(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()
	store, err := repo.NewKVStore(":memory:", &log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n, err := Run(ctx, store, "changeme", &log, time.Now())
	require.NoError(t, err)
	assert.Equal(t, len(samples), n)

	n, err = Run(ctx, store, "changeme", &log, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	events, err := store.GetAllEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, len(samples))

	host, err := store.GetUserByEmail(ctx, HostEmail)
	require.NoError(t, err)
	assert.Equal(t, host.ID, events[0].OrganizerID)
}
