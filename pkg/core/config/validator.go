package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// structValidator wraps validator.Validate with readable messages.
type structValidator struct {
	validate *validator.Validate
}

func newValidator() *structValidator {
	return &structValidator{validate: validator.New()}
}

func (v *structValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msg := fmt.Sprintf("field '%s' failed validation '%s'", e.Namespace(), e.Tag())
		if e.Param() != "" {
			msg += "=" + e.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
