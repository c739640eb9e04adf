package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	factorPathPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)
	domainPattern     = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("factor_path", func(fl validator.FieldLevel) bool {
			return factorPathPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("domain", func(fl validator.FieldLevel) bool {
			return domainPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// convertValidationError normalizes validator errors into construct validation errors.
func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return constructerrors.NewValidationError(field, msg, err)
	}

	return constructerrors.NewValidationError("manifest", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		// Drop the root type name.
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, ".")
}

func fieldForFactor(index int, field string) string {
	return fmt.Sprintf("factors[%d].%s", index, field)
}
