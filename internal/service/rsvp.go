package service

import (
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/pkg/validator"
)

func (s *service) RequestRsvp(ctx *ginext.Context) {
	u, _ := currentUser(ctx)
	rctx := ctx.Request.Context()

	e, err := s.repo.RequestRsvpTx(rctx, ctx.Param("id"), u.ID, u.Name)
	if err != nil {
		s.repoError(ctx, err, "failed to request rsvp")
		return
	}
	req, _ := e.Request(u.ID)

	s.log.Info().Str("event_id", e.ID).Str("user_id", u.ID).Msg("rsvp requested")
	s.notifyUser(rctx, dto.RsvpRequested, e, e.OrganizerID, u.Name, 0)

	dto.SuccessCreatedResponse(ctx, dto.NewRsvpResponse(req))
}

func (s *service) CancelRsvp(ctx *ginext.Context) {
	u, _ := currentUser(ctx)
	rctx := ctx.Request.Context()

	e, err := s.repo.CancelRsvpTx(rctx, ctx.Param("id"), u.ID)
	if err != nil {
		s.repoError(ctx, err, "failed to cancel rsvp")
		return
	}

	s.log.Info().Str("event_id", e.ID).Str("user_id", u.ID).Msg("rsvp cancelled")
	s.notifyUser(rctx, dto.RsvpCancelled, e, e.OrganizerID, u.Name, 0)

	dto.SuccessResponse(ctx, dto.NewEventResponse(e, u.ID))
}

// RespondRsvp lets the organizer accept or reject a pending request.
func (s *service) RespondRsvp(ctx *ginext.Context) {
	var body dto.RespondRsvpRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, body); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	u, _ := currentUser(ctx)
	rctx := ctx.Request.Context()
	eventID, attendeeID := ctx.Param("id"), ctx.Param("userId")

	e, err := s.repo.GetEventByID(rctx, eventID)
	if err != nil {
		s.repoError(ctx, err, "failed to get event for rsvp response")
		return
	}
	if e.OrganizerID != u.ID {
		s.repoError(ctx, errForbidden, "")
		return
	}

	status := model.RsvpStatus(body.Status)
	e, err = s.repo.RespondRsvpTx(rctx, eventID, attendeeID, status)
	if err != nil {
		s.repoError(ctx, err, "failed to respond to rsvp")
		return
	}
	req, _ := e.Request(attendeeID)

	s.log.Info().
		Str("event_id", eventID).
		Str("user_id", attendeeID).
		Str("status", body.Status).
		Msg("rsvp answered")

	if status == model.StatusAccepted {
		s.notifyUser(rctx, dto.RsvpAccepted, e, attendeeID, u.Name, 0)
		s.scheduleReminder(rctx, e, attendeeID)
	} else {
		s.notifyUser(rctx, dto.RsvpRejected, e, attendeeID, u.Name, 0)
	}

	dto.SuccessResponse(ctx, dto.NewRsvpResponse(req))
}

func (s *service) MyRequests(ctx *ginext.Context) {
	u, _ := currentUser(ctx)
	reqs, err := s.repo.ListRsvpRequestsByUser(ctx.Request.Context(), u.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list rsvp requests")
		dto.InternalServerError(ctx)
		return
	}
	out := make([]dto.RsvpResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, dto.NewRsvpResponse(r))
	}
	dto.SuccessResponse(ctx, out)
}
