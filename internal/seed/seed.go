// Package seed fills an empty store with sample events.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/model"
	"eventhub/internal/repo"
)

const (
	HostEmail = "events@eventhub.local"
	HostName  = "Campus Events"
)

type sample struct {
	title, description, location, address, category string
	typ                                             model.EventType
	daysAhead                                       int
	time                                            string
	capacity                                        int
	distance                                        float64
}

var samples = []sample{
	{"Welcome Week Concert", "Live bands on the main lawn to kick off the semester.", "Main Lawn", "1 University Ave",
		"Music", model.EventPublic, 3, "6:00 PM", 500, 0.4},
	{"Startup Pitch Night", "Student founders pitch to local investors.", "Innovation Hub", "220 College St",
		"Business", model.EventPublic, 7, "7:00 PM", 120, 1.2},
	{"Intro to Pottery", "Hands-on wheel throwing for beginners. Clay provided.", "Arts Center, Studio B", "48 Elm St",
		"Arts", model.EventPrivate, 10, "3:30 PM", 12, 2.5},
	{"Career Fair", "Meet recruiters from over fifty companies.", "Recreation Center", "300 Stadium Rd",
		"Career", model.EventPublic, 14, "10:00 AM", 0, 0.9},
	{"Intramural Soccer Finals", "Cheer on the league finalists.", "North Field", "5 Athletic Way",
		"Sports", model.EventPublic, 5, "4:00 PM", 300, 3.1},
	{"Global Food Festival", "Dishes from student cultural clubs around the world.", "Student Union Plaza", "10 Union Sq",
		"Food", model.EventPublic, 12, "12:00 PM", 0, 0.6},
	{"Thesis Writing Workshop", "Structure, citations and staying on schedule.", "Library Room 204", "2 Library Walk",
		"Academic", model.EventPublic, 4, "2:00 PM", 30, 1.7},
	{"Lunar New Year Gala", "Performances, lanterns and a dumpling contest.", "Grand Hall", "77 Heritage Blvd",
		"Culture", model.EventPublic, 20, "7:30 PM", 250, 4.8},
}

// Events builds the sample events relative to now, organized by organizer.
func Events(now time.Time, organizer *model.User) []model.Event {
	out := make([]model.Event, 0, len(samples))
	for _, s := range samples {
		d := s.distance
		out = append(out, model.Event{
			Title:        s.title,
			Description:  s.description,
			Date:         now.AddDate(0, 0, s.daysAhead).Format(model.DateLayout),
			Time:         s.time,
			Location:     s.location,
			Address:      s.address,
			Category:     s.category,
			Type:         s.typ,
			MaxCapacity:  s.capacity,
			OrganizerID:  organizer.ID,
			Organizer:    organizer.Name,
			Distance:     &d,
			RsvpRequests: []model.RsvpRequest{},
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return out
}

// Run inserts the sample events when the store has none. It returns the
// number of events created.
func Run(ctx context.Context, r repo.Repository, password string, log *zerolog.Logger, now time.Time) (int, error) {
	existing, err := r.GetAllEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list events: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Int("events", len(existing)).Msg("store already has events, skipping seed")
		return 0, nil
	}

	host, err := r.GetUserByEmail(ctx, HostEmail)
	if errors.Is(err, repo.ErrUserNotFound) {
		hash, herr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if herr != nil {
			return 0, fmt.Errorf("failed to hash seed password: %w", herr)
		}
		host = &model.User{Email: HostEmail, Name: HostName, PasswordHash: string(hash), CreatedAt: now}
		err = r.CreateUser(ctx, host)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to prepare seed organizer: %w", err)
	}

	events := Events(now, host)
	for i := range events {
		if err := r.CreateEvent(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("failed to create sample event %q: %w", events[i].Title, err)
		}
	}
	log.Info().Int("events", len(events)).Msg("sample events created")
	return len(events), nil
}
