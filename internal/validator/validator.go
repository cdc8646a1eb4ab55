package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"careplan/internal/apperror"
	"careplan/internal/database"

	"github.com/go-playground/validator/v10"
)

const (
	ProfileOptionGeneric     = "GENERIC"
	ProfileOptionFromScratch = "FROM_SCRATCH"
)

type Validator struct {
	validate *validator.Validate
}

// FieldError describes one rejected field using its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "query", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})

	mustRegister(v, "role", func(fl validator.FieldLevel) bool {
		return database.UserRole(fl.Field().String()).Valid()
	})
	mustRegister(v, "permission", func(fl validator.FieldLevel) bool {
		return database.Permission(fl.Field().String()).Valid()
	})
	mustRegister(v, "activity_type", func(fl validator.FieldLevel) bool {
		return database.ActivityType(fl.Field().String()).Valid()
	})
	mustRegister(v, "clinical_type", func(fl validator.FieldLevel) bool {
		return database.ClinicalType(fl.Field().String()).Valid()
	})
	mustRegister(v, "profile_option", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == ProfileOptionGeneric || s == ProfileOptionFromScratch
	})
	mustRegister(v, "sort_order", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "ASC" || s == "DESC"
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validator: failed to register %q: %v", tag, err))
	}
}

// Validate checks i against its struct tags. Failures come back as a
// FAILED_FIELD_VALIDATION error listing every rejected field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(err.Error(), nil)
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fieldPath(fe),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return apperror.Validation(details[0].Message, details)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	case "url", "http_url":
		return field + " must be a valid URL"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "role":
		return field + " must be one of [ADMIN USER CONTENT_ADMIN]"
	case "permission":
		return field + " must be one of [Y LC]"
	case "activity_type":
		return field + " must be one of [ASPECT_OF_PRACTICE TASK RESTRICTED_ACTIVITY]"
	case "clinical_type":
		return field + " must be one of [CLINICAL SUPPORT]"
	case "profile_option":
		return field + " must be one of [GENERIC FROM_SCRATCH]"
	case "sort_order":
		return field + " must be one of [ASC DESC]"
	}
	return fmt.Sprintf("%s failed the %s check", field, fe.Tag())
}
