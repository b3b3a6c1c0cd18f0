package dto

import (
	"time"

	"eventhub/internal/model"
)

type UserResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Avatar          string     `json:"avatar,omitempty"`
	CreatedEvents   []string   `json:"created_events"`
	AttendingEvents []string   `json:"attending_events"`
	IsLoggedIn      bool       `json:"is_logged_in"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type RsvpResponse struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EventResponse struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Date             string         `json:"date"`
	Time             string         `json:"time"`
	Location         string         `json:"location"`
	Address          string         `json:"address,omitempty"`
	Category         string         `json:"category"`
	Type             string         `json:"type"`
	MaxCapacity      int            `json:"max_capacity"`
	CurrentAttendees int            `json:"current_attendees"`
	IsFull           bool           `json:"is_full"`
	OrganizerID      string         `json:"organizer_id"`
	Organizer        string         `json:"organizer"`
	Thumbnail        string         `json:"thumbnail,omitempty"`
	Distance         *float64       `json:"distance,omitempty"`
	RsvpStatus       string         `json:"rsvp_status,omitempty"`
	Attendees        []string       `json:"attendees,omitempty"`
	RsvpRequests     []RsvpResponse `json:"rsvp_requests,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type ListResponse struct {
	Items  []EventResponse `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

func NewUserResponse(u *model.User) UserResponse {
	created, attending := u.CreatedEvents, u.AttendingEvents
	if created == nil {
		created = []string{}
	}
	if attending == nil {
		attending = []string{}
	}
	return UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Avatar:          u.Avatar,
		CreatedEvents:   created,
		AttendingEvents: attending,
		IsLoggedIn:      u.IsLoggedIn,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}

func NewRsvpResponse(r model.RsvpRequest) RsvpResponse {
	return RsvpResponse{
		EventID:   r.EventID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// NewEventResponse renders e for viewerID. Attendee names and the request
// list are only included for the organizer; an empty viewerID means an
// anonymous caller.
func NewEventResponse(e *model.Event, viewerID string) EventResponse {
	resp := EventResponse{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Date:             e.Date,
		Time:             e.Time,
		Location:         e.Location,
		Address:          e.Address,
		Category:         e.Category,
		Type:             string(e.Type),
		MaxCapacity:      e.MaxCapacity,
		CurrentAttendees: e.CurrentAttendees,
		IsFull:           e.IsFull(),
		OrganizerID:      e.OrganizerID,
		Organizer:        e.Organizer,
		Thumbnail:        e.Thumbnail,
		Distance:         e.Distance,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	if viewerID == "" {
		return resp
	}
	resp.RsvpStatus = string(e.StatusFor(viewerID))
	if viewerID == e.OrganizerID {
		resp.Attendees = e.Attendees
		resp.RsvpRequests = make([]RsvpResponse, 0, len(e.RsvpRequests))
		for _, r := range e.RsvpRequests {
			resp.RsvpRequests = append(resp.RsvpRequests, NewRsvpResponse(r))
		}
	}
	return resp
}

func NewEventResponses(events []model.Event, viewerID string) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, NewEventResponse(&events[i], viewerID))
	}
	return out
}
