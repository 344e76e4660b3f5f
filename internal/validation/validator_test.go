// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

type section struct {
	Level string `koanf:"level" validate:"loglevel"`
	Limit int    `koanf:"limit" validate:"gte=0,lte=100"`
}

type settings struct {
	Name    string  `koanf:"name" validate:"required,max=8"`
	Section section `koanf:"section"`
	Event   string  `json:"event" validate:"omitempty,min=2"`
}

func TestValidateStruct_Valid(t *testing.T) {
	s := settings{Name: "beacon", Section: section{Level: "debug", Limit: 10}}
	if err := ValidateStruct(&s); err != nil {
		t.Fatalf("ValidateStruct: %v", err)
	}
}

func TestValidateStruct_FieldNamesFollowTags(t *testing.T) {
	tests := []struct {
		name    string
		input   settings
		field   string
		tag     string
		message string
	}{
		{
			name:    "required",
			input:   settings{Section: section{Level: "info"}},
			field:   "name",
			tag:     "required",
			message: "name is required",
		},
		{
			name:    "nested koanf key",
			input:   settings{Name: "x", Section: section{Level: "info", Limit: 101}},
			field:   "section.limit",
			tag:     "lte",
			message: "section.limit must be less than or equal to 100",
		},
		{
			name:    "custom log level",
			input:   settings{Name: "x", Section: section{Level: "loud"}},
			field:   "section.level",
			tag:     "loglevel",
			message: "section.level must be a log level",
		},
		{
			name:    "json key and string length",
			input:   settings{Name: "x", Section: section{Level: "info"}, Event: "a"},
			field:   "event",
			tag:     "min",
			message: "event must be at least 2 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			fields := err.Fields()
			if len(fields) != 1 {
				t.Fatalf("got %d field errors: %v", len(fields), err)
			}
			if fields[0].Field() != tt.field || fields[0].Tag() != tt.tag {
				t.Errorf("field/tag = %s/%s, want %s/%s", fields[0].Field(), fields[0].Tag(), tt.field, tt.tag)
			}
			if !strings.HasPrefix(fields[0].Error(), tt.message) {
				t.Errorf("message = %q, want prefix %q", fields[0].Error(), tt.message)
			}
		})
	}
}

func TestStructError_JoinsMessages(t *testing.T) {
	err := ValidateStruct(&settings{Section: section{Level: "nope", Limit: -1}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields()) != 3 {
		t.Fatalf("got %d field errors, want 3", len(err.Fields()))
	}
	if got := strings.Count(err.Error(), "; "); got != 2 {
		t.Errorf("Error() = %q, want three messages", err.Error())
	}
}
