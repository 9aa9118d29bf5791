// Package validate checks form input before it is sent to the backend and
// turns failures into the messages the forms show inline.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dconnect/courier/internal/apperr"
	"github.com/dconnect/courier/internal/model"
)

// MsgFillAllFields is shown when any required field is blank.
const MsgFillAllFields = "Please fill in all fields"

// MinPasswordLength is the shortest password the register form accepts.
const MinPasswordLength = 6

// Login is the login form.
type Login struct {
	Email    string `validate:"required" label:"Email"`
	Password string `validate:"required" label:"Password"`
}

// Register is the register form. The phone number is collected but only
// sent when the backend accepts it.
type Register struct {
	FullName        string     `validate:"required" label:"Full name"`
	Email           string     `validate:"required,email" label:"Email"`
	Phone           string     `validate:"required" label:"Phone"`
	Password        string     `validate:"required,min=6" label:"Password"`
	ConfirmPassword string     `validate:"required,eqfield=Password" label:"Confirm password"`
	Role            model.Role `validate:"required,oneof=carrier requester" label:"Role"`
}

// Validator wraps go-playground/validator with the client's rules.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with trip and request cross-field rules
// registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	v.RegisterStructValidation(tripRules, model.NewTrip{})
	v.RegisterStructValidation(itemRequestRules, model.NewItemRequest{})
	return &Validator{v: v}
}

// Struct validates s and returns nil or an *apperr.ValidationError naming
// the most relevant failure.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(trimmed(s))
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return &apperr.ValidationError{Message: err.Error()}
	}

	best := fieldErrs[0]
	for _, fe := range fieldErrs[1:] {
		if rank(fe.Tag()) < rank(best.Tag()) {
			best = fe
		}
	}
	return &apperr.ValidationError{Field: best.StructField(), Message: message(best)}
}

// rank orders failures so blank fields are reported before mismatches and
// mismatches before length problems.
func rank(tag string) int {
	switch tag {
	case "required":
		return 0
	case "eqfield":
		return 1
	case "min":
		return 2
	default:
		return 3
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgFillAllFields
	case "eqfield":
		if fe.Param() == "Password" {
			return "Passwords do not match"
		}
		return fmt.Sprintf("%s does not match", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "email":
		return "Please enter a valid email address"
	case "datetime":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "notbefore":
		return fmt.Sprintf("%s cannot be before %s", fe.Field(), fe.Param())
	case "distinct":
		return "Origin and destination must differ"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func tripRules(sl validator.StructLevel) {
	t := sl.Current().Interface().(model.NewTrip)
	if t.ReturnDate != nil && *t.ReturnDate != "" && t.DepartureDate != "" && *t.ReturnDate < t.DepartureDate {
		sl.ReportError(t.ReturnDate, "Return date", "ReturnDate", "notbefore", "Departure date")
	}
	if sameLocation(t.FromCountry, t.FromState, t.FromCity, t.ToCountry, t.ToState, t.ToCity) {
		sl.ReportError(t.ToCity, "Destination city", "ToCity", "distinct", "")
	}
}

func itemRequestRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(model.NewItemRequest)
	if sameLocation(r.FromCountry, r.FromState, r.FromCity, r.ToCountry, r.ToState, r.ToCity) {
		sl.ReportError(r.ToCity, "Delivery city", "ToCity", "distinct", "")
	}
}

func sameLocation(fromCountry, fromState, fromCity, toCountry, toState, toCity string) bool {
	if fromCity == "" || toCity == "" {
		return false
	}
	return fromCountry == toCountry && fromState == toState && strings.EqualFold(fromCity, toCity)
}

// trimmed returns a copy of the login and register forms with surrounding
// whitespace removed so "  " counts as blank. Passwords are left alone.
func trimmed(s any) any {
	switch f := s.(type) {
	case Login:
		f.Email = strings.TrimSpace(f.Email)
		return f
	case *Login:
		return trimmed(*f)
	case Register:
		f.FullName = strings.TrimSpace(f.FullName)
		f.Email = strings.TrimSpace(f.Email)
		f.Phone = strings.TrimSpace(f.Phone)
		return f
	case *Register:
		return trimmed(*f)
	case model.NewItemRequest:
		f.ItemName = strings.TrimSpace(f.ItemName)
		return f
	case *model.NewItemRequest:
		return trimmed(*f)
	case model.NewTrip:
		return f
	case *model.NewTrip:
		return *f
	default:
		return s
	}
}
