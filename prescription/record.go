// Package prescription holds the editable prescription form, the records
// saved through the scribe service, and the rule that reconciles
// automatically extracted fields into the form.
package prescription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/validation"
)

// Field names as they appear on the wire.
const (
	FieldDoctorName   = "doctorName"
	FieldPatientName  = "patientName"
	FieldPatientID    = "patientId"
	FieldPharmacyName = "pharmacyName"
	FieldMedicine     = "medicine"
	FieldDosage       = "dosage"
)

// Fields lists every form field in display order.
var Fields = []string{
	FieldDoctorName,
	FieldPatientName,
	FieldPatientID,
	FieldPharmacyName,
	FieldMedicine,
	FieldDosage,
}

// Record is the in-progress prescription form.
type Record struct {
	DoctorName   string `json:"doctorName" validate:"notblank"`
	PatientName  string `json:"patientName" validate:"notblank"`
	PatientID    string `json:"patientId" validate:"notblank"`
	PharmacyName string `json:"pharmacyName" validate:"notblank"`
	Medicine     string `json:"medicine" validate:"notblank"`
	Dosage       string `json:"dosage" validate:"notblank"`
}

func (r *Record) field(name string) (*string, bool) {
	switch name {
	case FieldDoctorName:
		return &r.DoctorName, true
	case FieldPatientName:
		return &r.PatientName, true
	case FieldPatientID:
		return &r.PatientID, true
	case FieldPharmacyName:
		return &r.PharmacyName, true
	case FieldMedicine:
		return &r.Medicine, true
	case FieldDosage:
		return &r.Dosage, true
	}
	return nil, false
}

// Get returns the value of the named field.
func (r Record) Get(name string) (string, bool) {
	p, ok := r.field(name)
	if !ok {
		return "", false
	}
	return *p, true
}

// Set assigns the named field. Values are stored as given.
func (r *Record) Set(name, value string) error {
	p, ok := r.field(name)
	if !ok {
		return apperrors.InvalidInput(name, fmt.Sprintf("unknown field %q", name))
	}
	*p = value
	return nil
}

// IsEmpty reports whether every field is blank.
func (r Record) IsEmpty() bool {
	for _, name := range Fields {
		if v, _ := r.Get(name); strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Validate requires every field to be non-blank.
func (r Record) Validate() error {
	return validation.Validate(r)
}

// ID is a saved record identifier. The service may encode it as a JSON
// string or number; it is always held as a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("prescription: invalid id %s", data)
	}
	*id = ID(n.String())
	return nil
}

// Saved is a record persisted by the scribe service.
type Saved struct {
	ID ID `json:"id"`
	Record
	// Timestamp is when the record was saved, RFC 3339.
	Timestamp string `json:"timestamp"`
}

// NewSaved stamps r with id and the save time.
func NewSaved(id ID, r Record, at time.Time) Saved {
	return Saved{ID: id, Record: r, Timestamp: at.UTC().Format(time.RFC3339Nano)}
}
