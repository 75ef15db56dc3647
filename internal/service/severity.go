package service

import (
	"math"

	"github.com/medipatient-api-server/internal/domain"
)

// severityDenominator is the theoretical maximum point sum across all
// vital tiers.
const severityDenominator = 14.0

// Urgency thresholds over the normalized severity score.
const (
	emergencyThreshold = 0.7
	urgentThreshold    = 0.4
)

// ScoreSeverity computes a deterministic severity score in [0,1] from
// vitals alone, plus the urgency tier it implies. Each vital contributes
// the highest tier it matches; symptoms and diagnosis text never enter
// the score.
func ScoreSeverity(record *domain.PatientRecord) (float64, domain.UrgencyLevel) {
	points := 0

	switch {
	case record.Temperature >= 39.0:
		points += 2
	case record.Temperature >= 38.5:
		points++
	case record.Temperature <= 35.0:
		points += 2
	}

	switch {
	case record.HeartRate >= 130 || record.HeartRate <= 40:
		points += 3
	case record.HeartRate >= 110 || record.HeartRate <= 50:
		points += 2
	case record.HeartRate >= 100:
		points++
	}

	switch {
	case record.SystolicBP < 90 || record.SystolicBP >= 180:
		points += 2
	case record.SystolicBP >= 160:
		points++
	}

	switch {
	case record.RespiratoryRate > 25 || record.RespiratoryRate < 10:
		points += 2
	case record.RespiratoryRate > 20:
		points++
	}

	switch {
	case record.OxygenSaturation < 92:
		points += 3
	case record.OxygenSaturation < 95:
		points++
	}

	switch {
	case record.PainScore >= 8:
		points += 2
	case record.PainScore >= 5:
		points++
	}

	score := float64(points) / severityDenominator
	if score > 1.0 {
		score = 1.0
	}
	score = math.Round(score*100) / 100

	return score, urgencyFor(score)
}

func urgencyFor(score float64) domain.UrgencyLevel {
	switch {
	case score >= emergencyThreshold:
		return domain.UrgencyEmergency
	case score >= urgentThreshold:
		return domain.UrgencyUrgent
	default:
		return domain.UrgencyRoutine
	}
}
