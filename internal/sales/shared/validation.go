package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the process wide validator used for request DTOs.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs struct tag validation and converts the first failure
// into a ValidationError.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return &ValidationError{Field: field, Message: describeTag(fe)}
	}
	return &ValidationError{Message: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must contain at least " + fe.Param() + " entries"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// ValidateItems checks a line item list before any calculation runs.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Message: "at least one line item is required"}
	}
	for i, item := range items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if strings.TrimSpace(item.ProductCode) == "" {
			return &ValidationError{Field: field("product_code"), Message: "is required"}
		}
		if err := ValidateStruct(item); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = field(ve.Field)
			}
			return err
		}
		if !item.Quantity.IsPositive() {
			return &ValidationError{Field: field("quantity"), Message: "must be greater than zero"}
		}
		if item.UnitPrice.IsNegative() {
			return &ValidationError{Field: field("unit_price"), Message: "must not be negative"}
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(hundred) {
			return &ValidationError{Field: field("discount_percent"), Message: "must be between 0 and 100"}
		}
	}
	return nil
}
