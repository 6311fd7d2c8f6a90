package validator

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate  *validator.Validate
	digitsRe  = regexp.MustCompile(`^\d+$`)
	messageOf = map[string]string{}
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	})
}

// RegisterMessage sets the human-readable message reported for a failing
// "field.tag" pair, e.g. "age.min".
func RegisterMessage(field, tag, message string) {
	messageOf[field+"."+tag] = message
}

// Validate struct fields. Returns nil when v is valid, otherwise a map from
// JSON field name to message.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string)
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = message(name, fe.Tag())
	}
	return fields
}

// Field validates a single value against tag and returns the message
// registered for name, or "" when the value passes.
func Field(name string, value any, tag string) string {
	err := validate.Var(value, tag)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return message(name, verrs[0].Tag())
	}
	return err.Error()
}

func message(field, tag string) string {
	if msg, ok := messageOf[field+"."+tag]; ok {
		return msg
	}
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "digits":
		return "must contain digits only"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

// FieldErrors is a set of field-scoped messages usable as an error.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}
