package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// SlotStatusTag is the rule name accepting only known time slot states
const SlotStatusTag = "slotstatus"

// Validator evaluates validate struct tags and renders violations as
// messages fit for end users.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the clinic-specific rules registered
func New() *Validator {
	v := validator.New()

	// Report fields by their JSON name, which is what clients send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation(SlotStatusTag, func(fl validator.FieldLevel) bool {
		return types.SlotStatus(fl.Field().String()).Valid()
	})

	return &Validator{validate: v}
}

// Check validates s and returns one message per violated rule, or nil.
func (v *Validator) Check(s any) []string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"request is invalid"}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, message(fe))
	}
	return messages
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("%s must contain at most %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case SlotStatusTag:
		return fmt.Sprintf("%s must be one of: %s, %s", field, types.SlotFree, types.SlotBusy)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
