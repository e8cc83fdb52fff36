package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// customTags maps struct tags to the rules above.
var customTags = map[string]Rule{
	"ddmmyyyy":   Date,
	"recordid":   ID,
	"personname": Name,
	"course":     Course,
	"address":    Freeform(5, 200),
}

// New returns a validator with the custom tags registered and field names reported
// by their json tag.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register installs the custom tags on an existing validator.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	for tag, rule := range customTags {
		rule := rule
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.Field().String()).Valid
		}); err != nil {
			return err
		}
	}
	return nil
}

// Messages flattens validator errors into one message per failing field, in struct
// field order. labels maps a json field name to its user-facing message; fields
// without a label get a generic one.
func Messages(err error, labels map[string]string) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err == nil {
			return nil
		}
		return []string{err.Error()}
	}
	seen := make(map[string]struct{}, len(verrs))
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		if msg, ok := labels[field]; ok {
			out = append(out, msg)
			continue
		}
		switch fe.Tag() {
		case "required":
			out = append(out, field+" is required")
		case "oneof":
			out = append(out, field+" must be one of "+fe.Param())
		case "max":
			out = append(out, field+" must be at most "+fe.Param()+" characters")
		default:
			out = append(out, field+" is invalid")
		}
	}
	return out
}
