// Package calendar exports events as iCalendar documents for sharing.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"eventhub/internal/model"
)

const (
	productID       = "-//eventhub//EN"
	DefaultDuration = 2 * time.Hour
)

// Contacts holds the e-mail addresses written as ORGANIZER and ATTENDEE.
type Contacts struct {
	Organizer string
	Attendees []string
}

// Build creates a calendar with a single VEVENT for e. Times are written in UTC.
func Build(e *model.Event, people Contacts, loc *time.Location, now time.Time) (*ical.Calendar, error) {
	start, err := e.StartsAt(loc)
	if err != nil {
		return nil, err
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, e.ID+"@eventhub")
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(DefaultDuration).UTC())

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	location := e.Location
	if e.Address != "" {
		location += ", " + e.Address
	}
	if location != "" {
		ve.Props.SetText(ical.PropLocation, location)
	}
	if e.Category != "" {
		ve.Props.SetText(ical.PropCategories, e.Category)
	}
	if people.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + people.Organizer
		p.Params.Set(ical.ParamCommonName, e.Organizer)
		ve.Props.Add(p)
	}
	for _, attendee := range people.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + attendee
		ve.Props.Add(p)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, ve)
	return cal, nil
}

func Write(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	return nil
}
