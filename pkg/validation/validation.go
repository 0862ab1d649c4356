package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"marketplace-ledger/pkg/errutil"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("validation", fx.Invoke(Register))

// Register configures the validator behind gin's binding package.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	Configure(v)
	return nil
}

// New returns a validator reading the same `binding` tags gin does, for
// services that validate input outside an HTTP request.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	Configure(v)
	return v
}

// Configure reports json field names and lets numeric tags (gt, lte, ...)
// apply to decimal.Decimal fields.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldName)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// Error wraps a binding or validation error as VALIDATION_FAILED with one
// detail per offending field.
func Error(msg string, err error) error {
	return errutil.ValidationFailed(msg, err, errutil.WithDetails(Details(err)...))
}

func Details(err error) []errutil.Detail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []errutil.Detail{{Field: "body", Message: err.Error()}}
	}

	out := make([]errutil.Detail, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, errutil.Detail{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "alpha":
		return "must contain letters only"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}
