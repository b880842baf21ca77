package http

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

var validate = newValidator()

// newValidator reports fields by their json name and knows the "symbol" tag:
// 3 to 20 alphanumerics, case-insensitive.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate applies defaults and struct tags outside of a request, e.g. to
// queued commands.
func Validate(ctx context.Context, v interface{}) []ValidationError {
	if err := defaults.Set(v); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(ctx, v); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

// ReadAndValidateRequest binds the request, fills defaults, then validates.
// The returned value is nil or a []ValidationError ready for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if errs := Validate(c.Request().Context(), req); errs != nil {
		return errs
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			})
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

var tagMessages = map[string]string{
	"required": "%s is required",
	"symbol":   "%s must be a trading pair such as BTCUSDT",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be at least %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be at most %s",
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s %s characters", field, bound, fe.Param())
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	if format, ok := tagMessages[fe.Tag()]; ok {
		if strings.Count(format, "%s") == 2 {
			return fmt.Sprintf(format, field, fe.Param())
		}
		return fmt.Sprintf(format, field)
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
}

func fieldParams(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "min", "gte":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		return map[string]interface{}{"max": fe.Param()}
	case "gt", "lt":
		return map[string]interface{}{"value": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Fields(fe.Param())}
	}
	return nil
}
