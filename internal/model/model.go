package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "3:04 PM"
)

type EventType string

const (
	EventPublic  EventType = "public"
	EventPrivate EventType = "private"
)

// Categories an event may be filed under.
var Categories = []string{
	"Culture", "Academic", "Sports", "Business", "Music", "Arts", "Career", "Food", "Other",
}

type Event struct {
	ID               string        `db:"id" json:"id"`
	Title            string        `db:"title" json:"title"`
	Description      string        `db:"description" json:"description"`
	Date             string        `db:"date" json:"date"`
	Time             string        `db:"time" json:"time"`
	Location         string        `db:"location" json:"location"`
	Address          string        `db:"address,omitempty" json:"address,omitempty"`
	Category         string        `db:"category" json:"category"`
	Type             EventType     `db:"type" json:"type"`
	MaxCapacity      int           `db:"max_capacity" json:"max_capacity"`
	CurrentAttendees int           `db:"-" json:"current_attendees"`
	OrganizerID      string        `db:"organizer_id" json:"organizer_id"`
	Organizer        string        `db:"organizer" json:"organizer"`
	Thumbnail        string        `db:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Distance         *float64      `db:"distance,omitempty" json:"distance,omitempty"`
	Attendees        []string      `db:"-" json:"attendees"`
	RsvpRequests     []RsvpRequest `db:"-" json:"rsvp_requests"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

type User struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	Name            string     `db:"name" json:"name"`
	Avatar          string     `db:"avatar,omitempty" json:"avatar,omitempty"`
	PasswordHash    string     `db:"password_hash" json:"password_hash"`
	CreatedEvents   []string   `db:"-" json:"created_events"`
	AttendingEvents []string   `db:"-" json:"attending_events"`
	IsLoggedIn      bool       `db:"is_logged_in" json:"is_logged_in"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Session binds a bearer token to a user until ExpiresAt.
type Session struct {
	Token     string    `db:"token" json:"token"`
	UserID    string    `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// StartsAt combines Date and Time in loc.
func (e *Event) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+strings.ToUpper(strings.TrimSpace(e.Time)), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event start %q %q: %w", e.Date, e.Time, err)
	}
	return t, nil
}

func IsCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
