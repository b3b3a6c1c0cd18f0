package validator

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator"

	"eventhub/internal/model"
)

var (
	global    *validator.Validate
	timeRegex = regexp.MustCompile(`^(0?[1-9]|1[0-2]):[0-5][0-9] ([AaPp][Mm])$`)
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clock     = time.Now
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("eventdate", validateEventDate)
	_ = v.RegisterValidation("eventtime", validateEventTime)
	_ = v.RegisterValidation("category", validateCategory)
	_ = v.RegisterValidation("singleline", validateSingleLine)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

// SetClock replaces the time source used by the eventdate tag.
func SetClock(now func() time.Time) {
	clock = now
}

// SetLocation makes eventdate compare against today in loc.
func SetLocation(loc *time.Location) {
	SetClock(func() time.Time { return time.Now().In(loc) })
}

// validateEventDate accepts YYYY-MM-DD dates that are today or later.
func validateEventDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !dateRegex.MatchString(s) {
		return false
	}
	now := clock()
	d, err := time.ParseInLocation(model.DateLayout, s, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !d.Before(today)
}

func validateEventTime(fl validator.FieldLevel) bool {
	return timeRegex.MatchString(fl.Field().String())
}

func validateCategory(fl validator.FieldLevel) bool {
	return model.IsCategory(fl.Field().String())
}

// validateSingleLine rejects line breaks and other control characters.
func validateSingleLine(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "email", "oneof":
		msg = ErrInvalidFormat
	case "eventdate":
		msg = "Please enter a valid date (YYYY-MM-DD), today or later"
	case "eventtime":
		msg = "Please enter a valid time (e.g., 7:00 PM)"
	case "category":
		msg = "Please choose a known category"
	case "singleline":
		msg = "Field must be a single line of text"
	default:
		msg = ErrUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
