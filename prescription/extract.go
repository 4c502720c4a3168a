package prescription

import "strings"

// Extracted is a partial overlay produced by conversation analysis. Empty
// fields carry no information.
type Extracted struct {
	DoctorName   string `json:"doctor_name,omitempty"`
	PatientName  string `json:"patient_name,omitempty"`
	PatientID    string `json:"patient_id,omitempty"`
	PharmacyName string `json:"pharmacy_name,omitempty"`
	Medicine     string `json:"medicine,omitempty"`
	Dosage       string `json:"dosage,omitempty"`
}

func (e Extracted) values() map[string]string {
	return map[string]string{
		FieldDoctorName:   e.DoctorName,
		FieldPatientName:  e.PatientName,
		FieldPatientID:    e.PatientID,
		FieldPharmacyName: e.PharmacyName,
		FieldMedicine:     e.Medicine,
		FieldDosage:       e.Dosage,
	}
}

// MergeExtracted fills blank fields of current from candidate and returns
// the result with the names of the fields it changed. A field is taken only
// when the current value is blank and the candidate is not, both after
// trimming; the trimmed candidate is stored. Non-blank fields are never
// replaced.
func MergeExtracted(current Record, candidate Extracted) (Record, []string) {
	merged := current
	values := candidate.values()
	var changed []string
	for _, name := range Fields {
		next := strings.TrimSpace(values[name])
		if next == "" {
			continue
		}
		p, _ := merged.field(name)
		if strings.TrimSpace(*p) != "" {
			continue
		}
		*p = next
		changed = append(changed, name)
	}
	return merged, changed
}
