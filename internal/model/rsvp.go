package model

import (
	"errors"
	"time"
)

type RsvpStatus string

const (
	StatusNone     RsvpStatus = "none"
	StatusPending  RsvpStatus = "pending"
	StatusAccepted RsvpStatus = "accepted"
	StatusRejected RsvpStatus = "rejected"
)

var (
	ErrEventFull         = errors.New("event is full")
	ErrDuplicateRequest  = errors.New("rsvp request already exists")
	ErrRequestNotFound   = errors.New("rsvp request not found")
	ErrInvalidTransition = errors.New("invalid rsvp transition")
	ErrOwnEvent          = errors.New("organizer cannot rsvp to own event")
	ErrCapacityTooLow    = errors.New("capacity below accepted attendees")
)

type RsvpRequest struct {
	EventID   string     `db:"event_id" json:"event_id"`
	UserID    string     `db:"user_id" json:"user_id"`
	UserName  string     `db:"user_name" json:"user_name"`
	Status    RsvpStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// CanTransition reports whether an rsvp may move from one status to another.
// StatusNone stands for "no request".
func CanTransition(from, to RsvpStatus) bool {
	switch from {
	case StatusNone:
		return to == StatusPending
	case StatusPending:
		return to == StatusAccepted || to == StatusRejected || to == StatusNone
	case StatusAccepted:
		return to == StatusNone
	}
	return false
}

func (e *Event) findRequest(userID string) int {
	for i := range e.RsvpRequests {
		if e.RsvpRequests[i].UserID == userID {
			return i
		}
	}
	return -1
}

// StatusFor returns the viewer's rsvp status, StatusNone when there is no request.
func (e *Event) StatusFor(userID string) RsvpStatus {
	if i := e.findRequest(userID); i >= 0 {
		return e.RsvpRequests[i].Status
	}
	return StatusNone
}

func (e *Event) Request(userID string) (RsvpRequest, bool) {
	if i := e.findRequest(userID); i >= 0 {
		return e.RsvpRequests[i], true
	}
	return RsvpRequest{}, false
}

func (e *Event) AcceptedCount() int {
	n := 0
	for _, r := range e.RsvpRequests {
		if r.Status == StatusAccepted {
			n++
		}
	}
	return n
}

// IsFull is false for events without a capacity limit.
func (e *Event) IsFull() bool {
	return e.MaxCapacity > 0 && e.AcceptedCount() >= e.MaxCapacity
}

// Derive recomputes the attendee count and names from accepted requests.
func (e *Event) Derive() {
	e.Attendees = make([]string, 0, len(e.RsvpRequests))
	for _, r := range e.RsvpRequests {
		if r.Status == StatusAccepted {
			e.Attendees = append(e.Attendees, r.UserName)
		}
	}
	e.CurrentAttendees = len(e.Attendees)
	if e.RsvpRequests == nil {
		e.RsvpRequests = []RsvpRequest{}
	}
}

// AddRequest records a pending request from the user.
func (e *Event) AddRequest(userID, userName string, now time.Time) (RsvpRequest, error) {
	if userID == e.OrganizerID {
		return RsvpRequest{}, ErrOwnEvent
	}
	if e.findRequest(userID) >= 0 {
		return RsvpRequest{}, ErrDuplicateRequest
	}
	if e.IsFull() {
		return RsvpRequest{}, ErrEventFull
	}
	req := RsvpRequest{
		EventID:   e.ID,
		UserID:    userID,
		UserName:  userName,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.RsvpRequests = append(e.RsvpRequests, req)
	e.UpdatedAt = now
	e.Derive()
	return req, nil
}

// Respond moves a pending request to accepted or rejected.
func (e *Event) Respond(userID string, status RsvpStatus, now time.Time) (RsvpRequest, error) {
	i := e.findRequest(userID)
	if i < 0 {
		return RsvpRequest{}, ErrRequestNotFound
	}
	if status == StatusNone || !CanTransition(e.RsvpRequests[i].Status, status) {
		return RsvpRequest{}, ErrInvalidTransition
	}
	if status == StatusAccepted && e.IsFull() {
		return RsvpRequest{}, ErrEventFull
	}
	e.RsvpRequests[i].Status = status
	e.RsvpRequests[i].UpdatedAt = now
	e.UpdatedAt = now
	e.Derive()
	return e.RsvpRequests[i], nil
}

// Cancel removes the user's pending or accepted request and returns it.
func (e *Event) Cancel(userID string, now time.Time) (RsvpRequest, error) {
	i := e.findRequest(userID)
	if i < 0 {
		return RsvpRequest{}, ErrRequestNotFound
	}
	req := e.RsvpRequests[i]
	if !CanTransition(req.Status, StatusNone) {
		return RsvpRequest{}, ErrInvalidTransition
	}
	e.RsvpRequests = append(e.RsvpRequests[:i:i], e.RsvpRequests[i+1:]...)
	e.UpdatedAt = now
	e.Derive()
	return req, nil
}

// CheckCapacity fails when a capacity limit is lower than the accepted count.
func (e *Event) CheckCapacity() error {
	if e.MaxCapacity > 0 && e.MaxCapacity < e.AcceptedCount() {
		return ErrCapacityTooLow
	}
	return nil
}
