package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(taskInputRules, TaskInput{})
	return v
}

// taskInputRules checks the cross-field constraints of a task form.
func taskInputRules(sl validator.StructLevel) {
	input := sl.Current().Interface().(TaskInput)
	if input.Recurrence == nil {
		return
	}
	if input.DueDate == nil {
		sl.ReportError(input.DueDate, "DueDate", "DueDate", "required_with_recurrence", "")
		return
	}
	if end := input.Recurrence.EndDate; end != nil && end.Before(truncateDay(*input.DueDate)) {
		sl.ReportError(input.Recurrence.EndDate, "EndDate", "EndDate", "after_due", "")
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// check validates v and folds field errors into one ErrInvalidInput.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "hexcolor":
		return field + " must be a hex color"
	case "required_with_recurrence":
		return "a recurring task needs a due date"
	case "after_due":
		return "recurrence end date is before the due date"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
