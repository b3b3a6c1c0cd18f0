package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/catalog"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/pkg/validator"
)

const (
	userKey  = "eventhub.user"
	tokenKey = "eventhub.token"
)

var errUnauthenticated = errors.New("unauthenticated")

func bearerToken(ctx *ginext.Context) string {
	h := ctx.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func currentUser(ctx *ginext.Context) (*model.User, bool) {
	v, ok := ctx.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}

func viewerID(ctx *ginext.Context) string {
	if u, ok := currentUser(ctx); ok {
		return u.ID
	}
	return ""
}

func (s *service) userForToken(ctx context.Context, token string) (*model.User, error) {
	sess, err := s.repo.GetSession(ctx, token)
	if errors.Is(err, repo.ErrSessionNotFound) {
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, token); err != nil {
			s.log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return nil, errUnauthenticated
	}

	u, err := s.repo.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, errUnauthenticated
	}
	return u, err
}

// Authenticate resolves an optional bearer token. Requests without a valid
// token pass through anonymously; RequireUser rejects them on private routes.
func (s *service) Authenticate(ctx *ginext.Context) {
	token := bearerToken(ctx)
	if token == "" {
		ctx.Next()
		return
	}

	u, err := s.userForToken(ctx.Request.Context(), token)
	if err != nil {
		if errors.Is(err, errUnauthenticated) {
			ctx.Next()
			return
		}
		s.log.Error().Err(err).Msg("failed to resolve session")
		dto.InternalServerError(ctx)
		return
	}

	ctx.Set(userKey, u)
	ctx.Set(tokenKey, token)
	ctx.Next()
}

func (s *service) RequireUser(ctx *ginext.Context) {
	if _, ok := currentUser(ctx); !ok {
		dto.UnauthorizedError(ctx)
		return
	}
	ctx.Next()
}

func (s *service) newSession(ctx context.Context, u *model.User) (*model.Session, error) {
	now := s.now()
	sess := &model.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// syncUserEvents fills the user's hosting and attending lists from the
// current events.
func (s *service) syncUserEvents(ctx context.Context, u *model.User) error {
	events, err := s.repo.GetAllEvents(ctx)
	if err != nil {
		return err
	}
	u.CreatedEvents = catalog.IDs(catalog.Hosting(events, u.ID))
	u.AttendingEvents = catalog.IDs(catalog.Attending(events, u.ID))
	return nil
}

func (s *service) Signup(ctx *ginext.Context) {
	var req dto.SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to hash password")
		dto.InternalServerError(ctx)
		return
	}

	now := s.now()
	u := &model.User{
		ID:              uuid.NewString(),
		Email:           req.Email,
		Name:            req.Name,
		Avatar:          req.Avatar,
		PasswordHash:    string(hash),
		CreatedEvents:   []string{},
		AttendingEvents: []string{},
		IsLoggedIn:      true,
		LastLoginAt:     &now,
		CreatedAt:       now,
	}

	rctx := ctx.Request.Context()
	if err := s.repo.CreateUser(rctx, u); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			dto.EmailTakenError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to create user")
		dto.InternalServerError(ctx)
		return
	}

	sess, err := s.newSession(rctx, u)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create session")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("user_id", u.ID).Msg("user signed up")
	dto.SuccessCreatedResponse(ctx, dto.SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      dto.NewUserResponse(u),
	})
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	rctx := ctx.Request.Context()
	u, err := s.repo.GetUserByEmail(rctx, req.Email)
	if errors.Is(err, repo.ErrUserNotFound) {
		dto.InvalidCredentialsError(ctx)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load user for login")
		dto.InternalServerError(ctx)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		dto.InvalidCredentialsError(ctx)
		return
	}

	now := s.now()
	u.IsLoggedIn = true
	u.LastLoginAt = &now
	if err := s.syncUserEvents(rctx, u); err != nil {
		s.log.Error().Err(err).Msg("failed to sync user events")
		dto.InternalServerError(ctx)
		return
	}
	if err := s.repo.UpdateUser(rctx, u); err != nil {
		s.log.Error().Err(err).Msg("failed to update user on login")
		dto.InternalServerError(ctx)
		return
	}

	sess, err := s.newSession(rctx, u)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create session")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("user_id", u.ID).Msg("user logged in")
	dto.SuccessResponse(ctx, dto.SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      dto.NewUserResponse(u),
	})
}

func (s *service) Logout(ctx *ginext.Context) {
	u, _ := currentUser(ctx)
	rctx := ctx.Request.Context()

	if err := s.repo.DeleteSession(rctx, ctx.GetString(tokenKey)); err != nil {
		s.log.Error().Err(err).Msg("failed to delete session")
		dto.InternalServerError(ctx)
		return
	}

	u.IsLoggedIn = false
	u.LastLoginAt = nil
	if err := s.repo.UpdateUser(rctx, u); err != nil {
		s.log.Error().Err(err).Msg("failed to update user on logout")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("user_id", u.ID).Msg("user logged out")
	dto.SuccessResponse(ctx, nil)
}

func (s *service) Me(ctx *ginext.Context) {
	u, _ := currentUser(ctx)
	if err := s.syncUserEvents(ctx.Request.Context(), u); err != nil {
		s.log.Error().Err(err).Msg("failed to sync user events")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.NewUserResponse(u))
}
