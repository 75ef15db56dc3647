// Package domain defines the core data structures, error taxonomy, and
// capability interfaces shared across the diagnostic pipeline.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Gender is the patient's recorded gender.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// ParseGender normalizes free-form gender input to the enum. Anything
// unrecognized maps to GenderUnknown rather than failing validation.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	case "other":
		return GenderOther
	default:
		return GenderUnknown
	}
}

// Clinically plausible input ranges. Values outside these bounds are
// rejected as data-entry errors, not scored as extreme vitals.
const (
	MinAge             = 0.0
	MaxAge             = 120.0
	MinTemperature     = 35.0
	MaxTemperature     = 43.0
	MinHeartRate       = 40.0
	MaxHeartRate       = 200.0
	MinSystolicBP      = 70.0
	MaxSystolicBP      = 250.0
	MinDiastolicBP     = 40.0
	MaxDiastolicBP     = 150.0
	MinRespiratoryRate = 5.0
	MaxRespiratoryRate = 40.0
	MinOxygenSat       = 70.0
	MaxOxygenSat       = 100.0
	MinPainScore       = 0.0
	MaxPainScore       = 10.0
)

// Defaults applied to omitted vitals before validation.
const (
	DefaultTemperature     = 37.0
	DefaultHeartRate       = 75.0
	DefaultSystolicBP      = 120.0
	DefaultDiastolicBP     = 80.0
	DefaultRespiratoryRate = 16.0
	DefaultOxygenSat       = 98.0
)

// PatientRecord is the validated input to the diagnostic pipeline. It is
// treated as immutable once it enters the orchestrator.
type PatientRecord struct {
	Age              float64  `json:"age"`
	Gender           Gender   `json:"gender"`
	Temperature      float64  `json:"temperature"`       // Celsius
	HeartRate        float64  `json:"heart_rate"`        // bpm
	SystolicBP       float64  `json:"systolic_bp"`       // mmHg
	DiastolicBP      float64  `json:"diastolic_bp"`      // mmHg
	RespiratoryRate  float64  `json:"respiratory_rate"`  // breaths/min
	OxygenSaturation float64  `json:"oxygen_saturation"` // percent
	PainScore        float64  `json:"pain_score"`        // 0-10 self-reported
	Symptoms         []string `json:"symptoms,omitempty"`
	MedicalHistory   []string `json:"medical_history,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	Medications      []string `json:"medications,omitempty"`
}

// Normalize fills omitted vitals with clinically neutral defaults and
// canonicalizes the gender enum. Zero is out of range for every vital, so
// a zero value can only mean the field was absent from the payload.
func (r *PatientRecord) Normalize() {
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.HeartRate == 0 {
		r.HeartRate = DefaultHeartRate
	}
	if r.SystolicBP == 0 {
		r.SystolicBP = DefaultSystolicBP
	}
	if r.DiastolicBP == 0 {
		r.DiastolicBP = DefaultDiastolicBP
	}
	if r.RespiratoryRate == 0 {
		r.RespiratoryRate = DefaultRespiratoryRate
	}
	if r.OxygenSaturation == 0 {
		r.OxygenSaturation = DefaultOxygenSat
	}
	r.Gender = ParseGender(string(r.Gender))
}

// Validate checks every field against its clinical range and collects all
// violations. Returns nil when the record is valid.
func (r *PatientRecord) Validate() error {
	verr := &ValidationError{}

	checkRange := func(field string, value, min, max float64) {
		if value < min || value > max {
			verr.Add(field, rangeMessage(min, max), value)
		}
	}

	checkRange("age", r.Age, MinAge, MaxAge)
	checkRange("temperature", r.Temperature, MinTemperature, MaxTemperature)
	checkRange("heart_rate", r.HeartRate, MinHeartRate, MaxHeartRate)
	checkRange("systolic_bp", r.SystolicBP, MinSystolicBP, MaxSystolicBP)
	checkRange("diastolic_bp", r.DiastolicBP, MinDiastolicBP, MaxDiastolicBP)
	checkRange("respiratory_rate", r.RespiratoryRate, MinRespiratoryRate, MaxRespiratoryRate)
	checkRange("oxygen_saturation", r.OxygenSaturation, MinOxygenSat, MaxOxygenSat)
	checkRange("pain_score", r.PainScore, MinPainScore, MaxPainScore)

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func rangeMessage(min, max float64) string {
	return fmt.Sprintf("must be between %s and %s",
		strconv.FormatFloat(min, 'f', -1, 64),
		strconv.FormatFloat(max, 'f', -1, 64))
}
