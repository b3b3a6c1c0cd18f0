package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"eventhub/internal/dto"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/rabbit"
	"eventhub/internal/repo"
)

// Reader consumes notification messages and mails them out.
type Reader struct {
	rmq    rabbit.Consumer
	repo   repo.Repository
	sender mailer.Sender
	log    *zerolog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq rabbit.Consumer, repo repo.Repository, sender mailer.Sender, log *zerolog.Logger) *Reader {
	return &Reader{
		rmq:    rmq,
		repo:   repo,
		sender: sender,
		log:    log,
		done:   make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("notification reader started")

	go func() {
		defer close(r.done)

		if err := r.rmq.Consume(func(body []byte) error { return r.Handle(cctx, body) }); err != nil {
			r.log.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("notification reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// Handle processes one message. Returning an error requeues it, so only
// storage failures are reported; undecodable messages and mail errors are
// logged and dropped.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var msg dto.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().Err(err).Str("body", string(body)).Msg("failed to unmarshal notification")
		return nil
	}

	r.log.Info().
		Str("kind", string(msg.Kind)).
		Str("event_id", msg.EventID).
		Str("user_id", msg.UserID).
		Msg("received notification")

	if msg.Kind == dto.EventReminder {
		current, err := r.reminderCurrent(ctx, msg)
		if err != nil {
			return err
		}
		if !current {
			r.log.Info().
				Str("event_id", msg.EventID).
				Str("user_id", msg.UserID).
				Msg("reminder is stale, skipping")
			return nil
		}
	}

	if err := r.sender.Send(ctx, msg); err != nil {
		r.log.Warn().Err(err).Str("kind", string(msg.Kind)).Msg("failed to deliver notification")
	}
	return nil
}

// reminderCurrent reports whether a reminder still applies: the rsvp is
// accepted and the event has not moved since the reminder was queued.
func (r *Reader) reminderCurrent(ctx context.Context, msg dto.NotificationMessage) (bool, error) {
	e, err := r.repo.GetEventByID(ctx, msg.EventID)
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		return false, nil
	case err != nil:
		r.log.Error().Err(err).Str("event_id", msg.EventID).Msg("failed to load event for reminder")
		return false, err
	}
	if e.Date != msg.EventDate || e.Time != msg.EventTime {
		return false, nil
	}
	return e.StatusFor(msg.UserID) == model.StatusAccepted, nil
}
