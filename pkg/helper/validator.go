package helper

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// certname: usable as a store file name; no path separators, no leading dot
var certNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

func init() {
	if err := validate.RegisterValidation("certname", func(fl validator.FieldLevel) bool {
		return certNameRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// Validate shortcuts
func ValidateStruct(s interface{}) error              { return validate.Struct(s) }
func ValidateVar(field interface{}, tag string) error { return validate.Var(field, tag) }

func IsValidationError(err error) bool {
	var verr validator.ValidationErrors

	return errors.As(err, &verr)
}
