package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// HoldingForm is the add-holding form. Symbol may be left blank to use the
// form's symbol input.
type HoldingForm struct {
	Symbol   string          `json:"symbol" validate:"omitempty,max=32"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	AvgCost  decimal.Decimal `json:"avg_cost" validate:"gte=0"`
}

// UpdateForm is the edit-holding form.
type UpdateForm struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	AvgCost  decimal.Decimal `json:"avg_cost" validate:"gte=0"`
}

type portfolioForm struct {
	Name string `validate:"required,max=100"`
}

// ValidationError describes one rejected form field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is returned when a form fails validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Decimals are compared by value; the float is only used for the bound check.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

func check(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}

// ParseDecimal reads a form amount, reporting field on failure.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ValidationErrors{{Field: field, Message: "is required"}}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ValidationErrors{{Field: field, Message: "must be a number"}}
	}
	return d, nil
}
