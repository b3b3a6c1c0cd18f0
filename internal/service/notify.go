package service

import (
	"context"
	"encoding/json"
	"time"

	"eventhub/internal/dto"
	"eventhub/internal/model"
)

// notifyUser publishes a notification for recipientID about e. Failures are
// logged and never reach the caller.
func (s *service) notifyUser(ctx context.Context, kind dto.NotificationKind, e *model.Event, recipientID, actor string, delay time.Duration) {
	recipient, err := s.repo.GetUserByID(ctx, recipientID)
	if err != nil {
		if !isNotFound(err) {
			s.log.Error().Err(err).Str("user_id", recipientID).Msg("failed to load notification recipient")
		}
		return
	}

	msg := dto.NotificationMessage{
		Kind:       kind,
		EventID:    e.ID,
		EventTitle: e.Title,
		EventDate:  e.Date,
		EventTime:  e.Time,
		Location:   e.Location,
		UserID:     recipient.ID,
		Email:      recipient.Email,
		ActorName:  actor,
		CreatedAt:  s.now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal notification")
		return
	}

	if err := s.pub.Publish(payload, int(delay/time.Second)); err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to publish notification")
	}
}

// scheduleReminder queues a reminder reminderLead before the event starts.
// Events that already started get none; events starting within the lead
// get one right away.
func (s *service) scheduleReminder(ctx context.Context, e *model.Event, userID string) {
	if s.reminderLead <= 0 {
		return
	}
	start, err := e.StartsAt(s.loc)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", e.ID).Msg("cannot schedule reminder")
		return
	}
	now := s.now()
	if !start.After(now) {
		return
	}
	delay := start.Add(-s.reminderLead).Sub(now)
	if delay < 0 {
		delay = 0
	}
	s.notifyUser(ctx, dto.EventReminder, e, userID, e.Organizer, delay)
}
