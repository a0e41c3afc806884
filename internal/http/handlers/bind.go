package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError = registration.FieldError

var registerOnce sync.Once

// Validator returns gin's validator engine with the custom registration rules installed.
func Validator() *validator.Validate {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		panic("gin binding validator is not go-playground/validator")
	}

	registerOnce.Do(func() {
		if err := v.RegisterValidation("countrycode", registration.ValidCountryCode); err != nil {
			panic(err)
		}
	})

	return v
}

func BindJSON(ctx *gin.Context, out interface{}) bool {
	Validator()

	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out))

		return false
	}

	return true
}

// BindUpdate decodes a partial update and validates only the fields it carries.
func BindUpdate(ctx *gin.Context, out *registration.UpdateRequest) bool {
	if !BindJSON(ctx, out) {
		return false
	}

	fields := out.Validate(Validator())
	if len(fields) == 0 {
		return true
	}

	for i := range fields {
		if fields[i].Message == "" {
			fields[i].Message = validationMessage(fields[i].Rule, fields[i].Param)
		}
	}

	RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": fields})
	return false
}

func parseBindError(err error, out interface{}) interface{} {
	rootType := baseStructType(out)

	// validator errors (struct bind tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		fields := make([]FieldError, 0, len(validatorError))

		for _, fieldError := range validatorError {
			rule := fieldError.Tag()
			param := fieldError.Param()

			fields = append(fields, FieldError{
				Field:   jsonName(rootType, fieldError.StructField()),
				Rule:    rule,
				Param:   param,
				Message: validationMessage(rule, param),
			})
		}
		return gin.H{"fields": fields}
	}

	// in the event of bad json

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return gin.H{
			"json": "invalid_json_syntax",
		}
	}

	// in the event of a type mismatch; Field is already the JSON key for flat bodies

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		field := strings.TrimSpace(unmatchedTypeError.Field)

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", unmatchedTypeError.Type.String()),
				},
			},
		}
	}

	var maxBytesError *http.MaxBytesError

	if errors.As(err, &maxBytesError) {
		return gin.H{"json": "body_too_large", "limit": maxBytesError.Limit}
	}

	// empty body
	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	// final fallback if the error could not be deciphered
	return gin.H{"reason": err.Error()}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonName maps a Go field name to its JSON key, falling back to the Go name.
func jsonName(rootType reflect.Type, structField string) string {
	if rootType == nil {
		return structField
	}

	sf, ok := rootType.FieldByName(structField)
	if !ok {
		return structField
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "countrycode":
		return "must be two uppercase letters (ISO 3166-1 alpha-2)"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
