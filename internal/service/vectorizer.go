// Package service implements the diagnostic pipeline: feature
// vectorization, statistical classification, reviewer arbitration,
// severity scoring, and treatment planning.
package service

import "github.com/medipatient-api-server/internal/domain"

// Derived-flag thresholds are part of the trained model's feature
// engineering. Changing them without retraining silently degrades
// predictions.
const (
	feverHighThreshold   = 38.5
	tachycardiaThreshold = 100.0
	hypotensionThreshold = 90.0
	hypoxiaThreshold     = 90.0
)

// Vectorize builds a feature vector aligned index-by-index with the
// trained schema. Schema names the record cannot supply resolve to 0.0;
// vectorization never fails.
func Vectorize(record *domain.PatientRecord, schema []string) domain.FeatureVector {
	values := map[string]float64{
		"temperature": record.Temperature,
		"heartrate":   record.HeartRate,
		"resprate":    record.RespiratoryRate,
		"sbp":         record.SystolicBP,
		"dbp":         record.DiastolicBP,
		"o2sat":       record.OxygenSaturation,
		"anchor_age":  record.Age,
		"pain_score":  record.PainScore,
		"fever_high":  boolToFloat(record.Temperature > feverHighThreshold),
		"tachycardia": boolToFloat(record.HeartRate > tachycardiaThreshold),
		"hypotension": boolToFloat(record.SystolicBP < hypotensionThreshold),
		"hypoxia":     boolToFloat(record.OxygenSaturation < hypoxiaThreshold),
	}

	vector := make(domain.FeatureVector, len(schema))
	for i, name := range schema {
		vector[i] = values[name]
	}
	return vector
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
