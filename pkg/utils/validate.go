package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName reports json names so field errors line up with the request
// body. Register it on any validator whose errors reach clients.
func JSONFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// Validator returns the shared instance. gin's binding uses its own.
func Validator() *validator.Validate { return validate }

// ValidateStruct runs `validate` tags and returns field errors keyed by json
// name, or nil when v is valid.
func ValidateStruct(v any) map[string]string {
	return FieldErrors(validate.Struct(v))
}

// FieldErrors converts validator errors into {field: message}. Errors of
// other kinds come back under the "_" key.
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(ves))
	for _, fe := range ves {
		name := fe.Field()
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Please enter a valid email address"
	case "min":
		if fe.Field() == "password" {
			return fmt.Sprintf("Password must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "eqfield":
		if fe.Field() == "confirmPassword" {
			return "Passwords do not match"
		}
		return "Must match " + fe.Param()
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "e164":
		return "Please enter a phone number in international format"
	default:
		return "Invalid value"
	}
}
