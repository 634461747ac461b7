package req

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"sdtchat/internal/pkg/errs"
	"sdtchat/internal/pkg/logx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the `validate` struct tags of v. Any failure maps to
// ErrInvalidParams; the offending fields are logged at debug level.
func Validate(v any) *errs.CustomError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fieldError(fe))
		}
		logx.Debug("Input failed validation", "fields", strings.Join(fields, "; "))
	} else {
		logx.Warn("Validator rejected input type", "error", err.Error())
	}

	return errs.NewError(errs.ErrInvalidParams)
}

// fieldError converts a single FieldError into a short description.
func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must be at most " + fe.Param() + " long"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "hexcolor":
		return field + " must be a hex color"
	default:
		return field + " failed " + fe.Tag()
	}
}
