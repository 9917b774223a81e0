package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Provincial health regions are two-digit codes ("01" through "18").
var regionCodePattern = regexp.MustCompile(`^(0[1-9]|1[0-8])$`)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Custom validators
	v.RegisterValidation("region_code", validateRegionCode)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func validateRegionCode(fl validator.FieldLevel) bool {
	return regionCodePattern.MatchString(fl.Field().String())
}
