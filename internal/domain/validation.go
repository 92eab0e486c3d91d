package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	cnicPattern  = regexp.MustCompile(`^\d{5}-\d{7}-\d{1}$`)
	phonePattern = regexp.MustCompile(`^(\+92|0)?3\d{9}$`)
)

// Provinces lists the accepted customer provinces.
var Provinces = []string{"Punjab", "Sindh", "KPK", "Balochistan", "Gilgit-Baltistan", "AJK"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cnic", func(fl validator.FieldLevel) bool {
		return ValidCNIC(fl.Field().String())
	})
	_ = v.RegisterValidation("pkphone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("province", func(fl validator.FieldLevel) bool {
		return ValidProvince(fl.Field().String())
	})
	_ = v.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		return TransactionType(fl.Field().String()).Valid()
	})
	return v
}

// ValidCNIC reports whether s is a CNIC in 12345-1234567-1 form.
func ValidCNIC(s string) bool {
	return cnicPattern.MatchString(s)
}

// ValidPhone reports whether s is a Pakistani mobile number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidProvince reports whether s is an accepted province.
func ValidProvince(s string) bool {
	for _, p := range Provinces {
		if s == p {
			return true
		}
	}
	return false
}

// Validate checks s against its validate tags. Failures wrap ErrInvalidInput.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "cnic":
		return field + " must match 12345-1234567-1"
	case "pkphone":
		return field + " must be a valid Pakistani mobile number"
	case "province":
		return field + " must be one of " + strings.Join(Provinces, ", ")
	case "txtype":
		return fmt.Sprintf("%s %q is not a known transaction type", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
