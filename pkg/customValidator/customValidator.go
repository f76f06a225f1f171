package customvalidator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
)

type CustomValidator struct {
	Validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	valCustom := validator.New()
	valCustom.RegisterValidation("codec", validateCodec)
	valCustom.RegisterValidation("sqldriver", validateSQLDriver)
	valCustom.RegisterValidation("jsontype", validateJSONType)
	valCustom.RegisterValidation("identifier", validateIdentifier)
	return &CustomValidator{Validator: valCustom}
}

func validateCodec(fl validator.FieldLevel) bool {
	_, ok := jsoncodec.ByName(fl.Field().String())
	return ok
}

func validateSQLDriver(fl validator.FieldLevel) bool {
	_, err := dialect.ForDriver(fl.Field().String())
	return err == nil
}

func validateJSONType(fl validator.FieldLevel) bool {
	switch dialect.TypeRequest(fl.Field().String()) {
	case "", dialect.TypeJSON, dialect.TypeJSONB:
		return true
	}
	return false
}

// validateIdentifier accepts unquoted SQL identifiers: a letter or
// underscore followed by letters, digits or underscores.
func validateIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Validate checks i and turns validation failures into one readable error.
func (cv *CustomValidator) Validate(i interface{}) error {
	return FormatErrors(cv.Validator.Struct(i))
}

// FormatErrors rewrites validator.ValidationErrors into messages naming the
// offending fields. Other errors are returned unchanged.
func FormatErrors(err error) error {
	var castedObject validator.ValidationErrors
	if !errors.As(err, &castedObject) {
		return err
	}

	var message []string
	for _, err := range castedObject {
		switch err.Tag() {
		case "required", "required_without":
			message = append(message, fmt.Sprintf("%s is required", err.Namespace()))
		case "gte":
			message = append(message, fmt.Sprintf("%s value must be greater than %s", err.Namespace(), err.Param()))
		case "codec":
			message = append(message, fmt.Sprintf("%s must be one of %s", err.Namespace(), strings.Join(jsoncodec.Names(), ", ")))
		case "sqldriver":
			message = append(message, fmt.Sprintf("%s is not a registered sql driver", err.Namespace()))
		case "jsontype":
			message = append(message, fmt.Sprintf("%s must be json or jsonb", err.Namespace()))
		case "identifier":
			message = append(message, fmt.Sprintf("%s must be a plain sql identifier", err.Namespace()))
		default:
			message = append(message, fmt.Sprintf("%s failed %s validation", err.Namespace(), err.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(message, "; "))
}
