// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by configuration loading and the HTTP
// ingest handlers. Field names in errors are taken from koanf or json tags so
// they match the keys an operator or client actually wrote:
//
//	type TrackRequest struct {
//	    Event string `json:"event" validate:"required,max=256"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    // err.Fields()[0].Field() == "event"
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/tomtom215/beacon/internal/logging"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes a single failed rule.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the dotted key of the failing field, without the root type.
func (e *FieldError) Field() string {
	return e.field
}

// Tag returns the failing rule.
func (e *FieldError) Tag() string {
	return e.tag
}

// Param returns the rule parameter, e.g. "100" for "max=100".
func (e *FieldError) Param() string {
	return e.param
}

func (e *FieldError) Error() string {
	return e.message
}

// StructError collects every failed rule of one struct.
type StructError struct {
	fields []FieldError
}

// Fields returns the failed rules in declaration order.
func (e *StructError) Fields() []FieldError {
	return e.fields
}

func (e *StructError) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e.fields))
	for i := range e.fields {
		messages[i] = e.fields[i].message
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(tagName)
		if err := validate.RegisterValidation("loglevel", isLogLevel); err != nil {
			panic(fmt.Sprintf("validation: register loglevel: %v", err))
		}
	})
	return validate
}

// ValidateStruct validates s. It returns nil when every rule passes.
func ValidateStruct(s any) *StructError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &StructError{fields: []FieldError{{field: "unknown", tag: "unknown", message: err.Error()}}}
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		name := fieldPath(fe.Namespace())
		fields[i] = FieldError{
			field:   name,
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: translate(fe, name),
		}
	}
	return &StructError{fields: fields}
}

// tagName prefers koanf keys, then json keys, then the Go field name.
func tagName(f reflect.StructField) string {
	for _, key := range []string{"koanf", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func isLogLevel(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "silent":
		return true
	}
	return false
}

var messages = map[string]string{
	"required":      "%s is required",
	"url":           "%s must be a valid URL",
	"loglevel":      "%s must be a log level (trace, debug, info, warn, error, disabled)",
	"hostname_port": "%s must be host:port",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translate(fe validator.FieldError, field string) string {
	if template, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := messagesWithParam[fe.Tag()]; ok {
		msg := fmt.Sprintf(template, field, fe.Param())
		if fe.Kind() == reflect.String && (fe.Tag() == "min" || fe.Tag() == "max") {
			msg += " characters"
		}
		return msg
	}
	logging.Debug().Str("tag", fe.Tag()).Str("field", field).Msg("No message for validation tag")
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
