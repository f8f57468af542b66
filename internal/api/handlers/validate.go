package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field names from the `query` tag
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError describes one rejected query parameter
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// queryParser reads typed values from url.Values and collects parse errors
type queryParser struct {
	values url.Values
	errs   []ValidationError
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (p *queryParser) str(name string) string {
	return strings.TrimSpace(p.values.Get(name))
}

func (p *queryParser) intPtr(name string) *int {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, ValidationError{
			Code:    "ERR_INTEGER",
			Field:   name,
			Message: fmt.Sprintf("%s must be an integer", name),
		})
		return nil
	}
	return &v
}

func (p *queryParser) int64Ptr(name string) *int64 {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.errs = append(p.errs, ValidationError{
			Code:    "ERR_INTEGER",
			Field:   name,
			Message: fmt.Sprintf("%s must be an integer", name),
		})
		return nil
	}
	return &v
}

// validateQuery returns parse errors first, then struct validation errors
func validateQuery(p *queryParser, req interface{}) []ValidationError {
	if len(p.errs) > 0 {
		return p.errs
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		out = append(out, ValidationError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   field,
			Message: errorMessage(field, fe),
		})
	}
	return out
}

func errorMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "alphanumunicode":
		return fmt.Sprintf("%s must be alphanumeric", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
