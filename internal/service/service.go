package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/rabbit"
	"eventhub/internal/repo"
)

type Service interface {
	Authenticate(ctx *ginext.Context)
	RequireUser(ctx *ginext.Context)

	Signup(ctx *ginext.Context)
	Login(ctx *ginext.Context)
	Logout(ctx *ginext.Context)
	Me(ctx *ginext.Context)
	MyHosting(ctx *ginext.Context)
	MyAttending(ctx *ginext.Context)
	MyRequests(ctx *ginext.Context)

	ListEvents(ctx *ginext.Context)
	Categories(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	ExportICS(ctx *ginext.Context)
	CreateEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)

	RequestRsvp(ctx *ginext.Context)
	CancelRsvp(ctx *ginext.Context)
	RespondRsvp(ctx *ginext.Context)

	Health(ctx *ginext.Context)
	Ready(ctx *ginext.Context)
}

type Config struct {
	SessionTTL   time.Duration
	ReminderLead time.Duration
	Location     *time.Location
	Now          func() time.Time
}

type service struct {
	repo         repo.Repository
	log          *zerolog.Logger
	pub          rabbit.Publisher
	sessionTTL   time.Duration
	reminderLead time.Duration
	loc          *time.Location
	now          func() time.Time
}

var errForbidden = errors.New("forbidden")

func NewService(repo repo.Repository, logger *zerolog.Logger, pub rabbit.Publisher, cfg Config) Service {
	s := &service{
		repo:         repo,
		log:          logger,
		pub:          pub,
		sessionTTL:   cfg.SessionTTL,
		reminderLead: cfg.ReminderLead,
		loc:          cfg.Location,
		now:          cfg.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 30 * 24 * time.Hour
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.pub == nil {
		s.pub = rabbit.Discard{}
	}
	return s
}

// repoError renders storage and state-machine errors. Unknown errors are
// logged with msg and reported as a 500.
func (s *service) repoError(ctx *ginext.Context, err error, msg string) {
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		dto.EventNotFoundError(ctx)
	case errors.Is(err, repo.ErrEventFull):
		dto.EventFullError(ctx)
	case errors.Is(err, repo.ErrDuplicateRequest):
		dto.RsvpDuplicateError(ctx)
	case errors.Is(err, repo.ErrRequestNotFound):
		dto.RsvpNotFoundError(ctx)
	case errors.Is(err, repo.ErrInvalidTransition):
		dto.RsvpInvalidTransitionError(ctx)
	case errors.Is(err, model.ErrOwnEvent):
		dto.RsvpOwnEventError(ctx)
	case errors.Is(err, model.ErrCapacityTooLow):
		dto.CapacityTooLowError(ctx)
	case errors.Is(err, errForbidden):
		dto.ForbiddenError(ctx, "Only the organizer can manage this event")
	default:
		s.log.Error().Err(err).Msg(msg)
		dto.InternalServerError(ctx)
	}
}

func (s *service) Health(ctx *ginext.Context) {
	ctx.JSON(http.StatusOK, dto.Response{Status: "ok"})
}

func (s *service) Ready(ctx *ginext.Context) {
	if err := s.repo.Ping(ctx.Request.Context()); err != nil {
		s.log.Error().Err(err).Msg("storage is not ready")
		dto.UnavailableError(ctx)
		return
	}
	ctx.JSON(http.StatusOK, dto.Response{Status: "ok"})
}
