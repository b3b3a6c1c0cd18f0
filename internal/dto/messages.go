package dto

import "time"

type NotificationKind string

const (
	RsvpRequested NotificationKind = "rsvp_requested"
	RsvpAccepted  NotificationKind = "rsvp_accepted"
	RsvpRejected  NotificationKind = "rsvp_rejected"
	RsvpCancelled NotificationKind = "rsvp_cancelled"
	EventDeleted  NotificationKind = "event_deleted"
	EventReminder NotificationKind = "event_reminder"
)

// NotificationMessage is published to the broker and consumed by the mail worker.
type NotificationMessage struct {
	Kind       NotificationKind `json:"kind"`
	EventID    string           `json:"event_id"`
	EventTitle string           `json:"event_title"`
	EventDate  string           `json:"event_date"`
	EventTime  string           `json:"event_time"`
	Location   string           `json:"location"`
	UserID     string           `json:"user_id"`
	Email      string           `json:"email"`
	ActorName  string           `json:"actor_name,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
