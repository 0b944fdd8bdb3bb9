package common

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"blogicum/models"
)

// FormErrorKey holds errors that belong to no single field.
const FormErrorKey = "__all__"

// FormErrors maps a form field name to its error message.
type FormErrors map[string]string

func (e FormErrors) Add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

func (e FormErrors) Any() bool { return len(e) > 0 }

func init() {
	// report fields by their form name rather than the Go field name
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	}
}

// BindErrors converts a ShouldBind error into field messages.
func BindErrors(err error) FormErrors {
	errs := FormErrors{}
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add(FormErrorKey, "Invalid form data.")
		return errs
	}

	for _, fe := range verrs {
		errs.Add(fe.Field(), fieldMessage(fe))
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "The two password fields didn't match."
	}
	return "Enter a valid value."
}

// AddAppError records a field-bound AppError and reports whether err was one.
func (e FormErrors) AddAppError(err error) bool {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	if appErr.Code != models.CodeValidation && appErr.Code != models.CodeIntegrity {
		return false
	}
	field := appErr.Field
	if field == "" {
		field = FormErrorKey
	}
	e.Add(field, appErr.Message)
	return true
}
