package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthorized       = "UNAUTHORIZED"
	Forbidden          = "FORBIDDEN"
	EmailTaken         = "EMAIL_TAKEN"
	InvalidCredentials = "INVALID_CREDENTIALS"

	EventNotFound         = "EVENT_NOT_FOUND"
	EventFull             = "EVENT_FULL"
	CapacityTooLow        = "CAPACITY_TOO_LOW"
	RsvpNotFound          = "RSVP_NOT_FOUND"
	RsvpDuplicate         = "RSVP_DUPLICATE"
	RsvpInvalidTransition = "RSVP_INVALID_TRANSITION"
	RsvpOwnEvent          = "RSVP_OWN_EVENT"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func UnavailableError(c *ginext.Context) {
	ErrorResponse(c, http.StatusServiceUnavailable, ServiceUnavailable, InternalError)
}

func UnauthorizedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, "Please log in to continue")
}

func InvalidCredentialsError(c *ginext.Context) {
	ErrorResponse(c, http.StatusUnauthorized, InvalidCredentials, "Invalid email or password")
}

func ForbiddenError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusForbidden, Forbidden, desc)
}

func EmailTakenError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, EmailTaken, "Email already registered")
}

func EventNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, EventNotFound, "Event not found")
}

func EventFullError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, EventFull, "Event is full")
}

func CapacityTooLowError(c *ginext.Context) {
	BadResponseError(c, CapacityTooLow, "Capacity cannot be lower than the number of accepted attendees")
}

func RsvpNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, RsvpNotFound, "RSVP request not found")
}

func RsvpDuplicateError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, RsvpDuplicate, "You have already requested to attend this event")
}

func RsvpInvalidTransitionError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, RsvpInvalidTransition, "This RSVP request can no longer be changed")
}

func RsvpOwnEventError(c *ginext.Context) {
	BadResponseError(c, RsvpOwnEvent, "You cannot RSVP to your own event")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
