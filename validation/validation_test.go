package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/medscribe/errors"
)

type record struct {
	DoctorName string `json:"doctorName" validate:"notblank"`
	Dosage     string `json:"dosage" validate:"notblank"`
	Endpoint   string `json:"endpoint" validate:"omitempty,url"`
}

func fieldsOf(t *testing.T, err error) []FieldError {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("code = %s", appErr.Code)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		t.Fatalf("expected field details, got %v", appErr.Details)
	}
	return fields
}

func TestValidateAcceptsCompleteRecord(t *testing.T) {
	if err := Validate(record{DoctorName: "Dr. Lee", Dosage: "5mg"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBlankFields(t *testing.T) {
	err := Validate(record{DoctorName: "   ", Dosage: ""})
	fields := fieldsOf(t, err)
	if len(fields) != 2 {
		t.Fatalf("expected 2 field errors, got %v", fields)
	}
	if fields[0].Field != "doctorName" || fields[0].Message != "is required" {
		t.Errorf("unexpected first error %+v", fields[0])
	}
	if !strings.Contains(err.Error(), "dosage: is required") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestValidateURL(t *testing.T) {
	fields := fieldsOf(t, Validate(record{DoctorName: "a", Dosage: "b", Endpoint: "not a url"}))
	if len(fields) != 1 || fields[0].Field != "endpoint" || fields[0].Message != "must be a valid URL" {
		t.Errorf("unexpected errors %v", fields)
	}
}

func TestValidatorCollectsErrors(t *testing.T) {
	v := New()
	v.Required("livekit.url", "").
		Required("livekit.api_key", "key").
		Positive("session.extract_interval", 0).
		Custom(false, "scribe.base_url", "must be absolute")

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %v", v.Errors())
	}
	if err := v.Err(); err == nil || !strings.Contains(err.Error(), "livekit.url: is required") {
		t.Errorf("unexpected error %v", err)
	}
	if New().Err() != nil {
		t.Error("expected nil error without failures")
	}
}
