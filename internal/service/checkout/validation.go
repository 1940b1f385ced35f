package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"storefront/internal/i18n"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^(0|\+84)(3|5|7|8|9)[0-9]{8}$`)

// ValidationError carries per-field messages for one step.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

type welcomeInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ShippingInput struct {
	Method         string `json:"shipping_method" validate:"required,oneof=ship_to_address pick_up_at_store"`
	Name           string `json:"name"`
	PhoneNumber    string `json:"phone_number" validate:"required,vnphone"`
	Address        string `json:"address"`
	Ward           string `json:"ward"`
	City           string `json:"city"`
	StoreAddressID string `json:"store_address_id"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("vnphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(shippingStructValidation, ShippingInput{})
	return v
}

// shippingStructValidation enforces the fields of the active shipping mode.
func shippingStructValidation(sl validator.StructLevel) {
	in := sl.Current().Interface().(ShippingInput)
	switch in.Method {
	case ShipToAddress:
		for field, value := range map[string]string{"name": in.Name, "address": in.Address, "ward": in.Ward, "city": in.City} {
			if strings.TrimSpace(value) == "" {
				sl.ReportError(value, field, field, "required", "")
			}
		}
	case PickUpAtStore:
		if strings.TrimSpace(in.StoreAddressID) == "" {
			sl.ReportError(in.StoreAddressID, "store_address_id", "StoreAddressID", "store", "")
		}
	}
}

var jsonFieldNames = map[string]string{
	"Email":          "email",
	"Method":         "shipping_method",
	"PhoneNumber":    "phone_number",
	"StoreAddressID": "store_address_id",
}

// fieldErrors converts validator output into localized field messages.
func fieldErrors(err error, tr *i18n.Translator) *ValidationError {
	out := &ValidationError{Fields: map[string]string{}}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Fields["form"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.Field()
		if name, ok := jsonFieldNames[field]; ok {
			field = name
		}
		switch fe.Tag() {
		case "email":
			out.Fields[field] = tr.T(i18n.InvalidEmail)
		case "vnphone":
			out.Fields[field] = tr.T(i18n.PhoneInvalid)
		case "store":
			out.Fields[field] = tr.T(i18n.StoreRequired)
		default:
			out.Fields[field] = tr.T(i18n.FieldRequired, field)
		}
	}
	return out
}
