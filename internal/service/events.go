package service

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/calendar"
	"eventhub/internal/catalog"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/pkg/validator"
)

func (s *service) ListEvents(ctx *ginext.Context) {
	var q dto.ListEventsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid query parameters")
		return
	}
	if verr := validator.Validate(ctx, q); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get events")
		dto.InternalServerError(ctx)
		return
	}

	filtered := catalog.Apply(events, catalog.Filter{
		Query:       q.Query,
		Category:    q.Category,
		Type:        q.Type,
		Date:        q.Date,
		MaxDistance: q.MaxDistance,
		Sort:        q.Sort,
	})
	limit := q.Limit
	if limit == 0 {
		limit = catalog.DefaultLimit
	}
	page := catalog.Page(filtered, limit, q.Offset)

	dto.SuccessResponse(ctx, dto.ListResponse{
		Items:  dto.NewEventResponses(page, viewerID(ctx)),
		Total:  len(filtered),
		Limit:  limit,
		Offset: q.Offset,
	})
}

func (s *service) Categories(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get events for categories")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.CategoriesResponse{Categories: catalog.Categories(events)})
}

func (s *service) GetEvent(ctx *ginext.Context) {
	e, err := s.repo.GetEventByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		s.repoError(ctx, err, "failed to get event")
		return
	}
	dto.SuccessResponse(ctx, dto.NewEventResponse(e, viewerID(ctx)))
}

// ExportICS shares an event as an .ics file. Attendee addresses are only
// included for the organizer.
func (s *service) ExportICS(ctx *ginext.Context) {
	rctx := ctx.Request.Context()
	e, err := s.repo.GetEventByID(rctx, ctx.Param("id"))
	if err != nil {
		s.repoError(ctx, err, "failed to get event for export")
		return
	}

	var people calendar.Contacts
	if organizer, err := s.repo.GetUserByID(rctx, e.OrganizerID); err == nil {
		people.Organizer = organizer.Email
	}
	if viewerID(ctx) == e.OrganizerID {
		for _, r := range e.RsvpRequests {
			if r.Status != model.StatusAccepted {
				continue
			}
			if u, err := s.repo.GetUserByID(rctx, r.UserID); err == nil {
				people.Attendees = append(people.Attendees, u.Email)
			}
		}
	}

	cal, err := calendar.Build(e, people, s.loc, s.now())
	if err != nil {
		s.log.Error().Err(err).Str("event_id", e.ID).Msg("failed to build calendar")
		dto.InternalServerError(ctx)
		return
	}
	var buf bytes.Buffer
	if err := calendar.Write(&buf, cal); err != nil {
		s.log.Error().Err(err).Str("event_id", e.ID).Msg("failed to encode calendar")
		dto.InternalServerError(ctx)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, e.ID))
	ctx.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create event request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Type = strings.ToLower(req.Type)

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	u, _ := currentUser(ctx)
	now := s.now()
	e := &model.Event{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Date:         req.Date,
		Time:         strings.ToUpper(req.Time),
		Location:     req.Location,
		Address:      strings.TrimSpace(req.Address),
		Category:     req.Category,
		Type:         model.EventPublic,
		MaxCapacity:  req.MaxCapacity,
		OrganizerID:  u.ID,
		Organizer:    u.Name,
		Thumbnail:    req.Thumbnail,
		Distance:     req.Distance,
		RsvpRequests: []model.RsvpRequest{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Type != "" {
		e.Type = model.EventType(req.Type)
	}

	if err := s.repo.CreateEvent(ctx.Request.Context(), e); err != nil {
		s.log.Error().Err(err).Msg("failed to create event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("event_id", e.ID).Str("organizer_id", u.ID).Msg("event created successfully")
	dto.SuccessCreatedResponse(ctx, dto.NewEventResponse(e, u.ID))
}

func blank(p *string) bool {
	return p != nil && strings.TrimSpace(*p) == ""
}

func applyUpdate(e *model.Event, req dto.UpdateEventRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&e.Title, req.Title)
	set(&e.Description, req.Description)
	set(&e.Date, req.Date)
	set(&e.Location, req.Location)
	set(&e.Address, req.Address)
	set(&e.Category, req.Category)
	set(&e.Thumbnail, req.Thumbnail)
	if req.Time != nil {
		e.Time = strings.ToUpper(strings.TrimSpace(*req.Time))
	}
	if req.Type != nil {
		e.Type = model.EventType(strings.ToLower(*req.Type))
	}
	if req.MaxCapacity != nil {
		e.MaxCapacity = *req.MaxCapacity
	}
	if req.Distance != nil {
		d := *req.Distance
		e.Distance = &d
	}
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if req.Type != nil {
		lower := strings.ToLower(*req.Type)
		req.Type = &lower
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}
	for field, p := range map[string]*string{
		"title": req.Title, "description": req.Description, "date": req.Date,
		"time": req.Time, "location": req.Location, "category": req.Category,
	} {
		if blank(p) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, validator.ErrFieldRequired+": "+field)
			return
		}
	}

	u, _ := currentUser(ctx)
	rctx := ctx.Request.Context()
	var moved bool
	e, err := s.repo.UpdateEventTx(rctx, ctx.Param("id"), func(e *model.Event) error {
		if e.OrganizerID != u.ID {
			return errForbidden
		}
		date, at := e.Date, e.Time
		applyUpdate(e, req)
		moved = e.Date != date || e.Time != at
		return nil
	})
	if err != nil {
		s.repoError(ctx, err, "failed to update event")
		return
	}

	// Reminders queued for the old start are dropped by the worker.
	if moved {
		for _, r := range e.RsvpRequests {
			if r.Status == model.StatusAccepted {
				s.scheduleReminder(rctx, e, r.UserID)
			}
		}
	}

	s.log.Info().Str("event_id", e.ID).Bool("rescheduled", moved).Msg("event updated")
	dto.SuccessResponse(ctx, dto.NewEventResponse(e, u.ID))
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	u, _ := currentUser(ctx)
	rctx := ctx.Request.Context()
	id := ctx.Param("id")

	e, err := s.repo.GetEventByID(rctx, id)
	if err != nil {
		s.repoError(ctx, err, "failed to get event for delete")
		return
	}
	if e.OrganizerID != u.ID {
		s.repoError(ctx, errForbidden, "")
		return
	}

	removed, err := s.repo.DeleteEvent(rctx, id)
	if err != nil {
		s.repoError(ctx, err, "failed to delete event")
		return
	}

	for _, r := range removed.RsvpRequests {
		if r.Status == model.StatusRejected {
			continue
		}
		s.notifyUser(rctx, dto.EventDeleted, removed, r.UserID, u.Name, 0)
	}

	s.log.Info().Str("event_id", id).Int("requests", len(removed.RsvpRequests)).Msg("event deleted")
	dto.SuccessResponse(ctx, map[string]string{"id": id})
}

func (s *service) MyHosting(ctx *ginext.Context) {
	s.listForUser(ctx, catalog.Hosting)
}

func (s *service) MyAttending(ctx *ginext.Context) {
	s.listForUser(ctx, catalog.Attending)
}

func (s *service) listForUser(ctx *ginext.Context, pick func([]model.Event, string) []model.Event) {
	u, _ := currentUser(ctx)
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get events")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.NewEventResponses(pick(events, u.ID), u.ID))
}

func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrEventNotFound) || errors.Is(err, repo.ErrUserNotFound)
}
