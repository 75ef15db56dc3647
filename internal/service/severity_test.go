package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medipatient-api-server/internal/domain"
)

func TestScoreSeverity_AllNormal(t *testing.T) {
	record := &domain.PatientRecord{
		Temperature:      37.0,
		HeartRate:        70,
		SystolicBP:       120,
		DiastolicBP:      80,
		RespiratoryRate:  16,
		OxygenSaturation: 99,
		PainScore:        0,
	}

	score, urgency := ScoreSeverity(record)
	assert.Equal(t, 0.00, score)
	assert.Equal(t, domain.UrgencyRoutine, urgency)
}

func TestScoreSeverity_SepticShock(t *testing.T) {
	// temp 2 + HR 2 + RR 2 + SBP 2 + SpO2 3 = 11 points.
	record := &domain.PatientRecord{
		Age:              65,
		Temperature:      39.5,
		HeartRate:        115,
		RespiratoryRate:  28,
		SystolicBP:       85,
		DiastolicBP:      50,
		OxygenSaturation: 88,
	}

	score, urgency := ScoreSeverity(record)
	assert.InDelta(t, 0.79, score, 1e-9)
	assert.Equal(t, domain.UrgencyEmergency, urgency)
}

func TestScoreSeverity_Tiers(t *testing.T) {
	normal := domain.PatientRecord{
		Temperature:      37.0,
		HeartRate:        70,
		SystolicBP:       120,
		DiastolicBP:      80,
		RespiratoryRate:  16,
		OxygenSaturation: 99,
	}

	tests := []struct {
		name       string
		modify     func(*domain.PatientRecord)
		wantPoints int
	}{
		{"high fever", func(r *domain.PatientRecord) { r.Temperature = 39.0 }, 2},
		{"moderate fever", func(r *domain.PatientRecord) { r.Temperature = 38.5 }, 1},
		{"hypothermia", func(r *domain.PatientRecord) { r.Temperature = 35.0 }, 2},
		{"extreme tachycardia", func(r *domain.PatientRecord) { r.HeartRate = 130 }, 3},
		{"extreme bradycardia", func(r *domain.PatientRecord) { r.HeartRate = 40 }, 3},
		{"moderate tachycardia", func(r *domain.PatientRecord) { r.HeartRate = 110 }, 2},
		{"moderate bradycardia", func(r *domain.PatientRecord) { r.HeartRate = 50 }, 2},
		{"mild tachycardia", func(r *domain.PatientRecord) { r.HeartRate = 100 }, 1},
		{"hypotension", func(r *domain.PatientRecord) { r.SystolicBP = 89 }, 2},
		{"hypertensive crisis", func(r *domain.PatientRecord) { r.SystolicBP = 180 }, 2},
		{"elevated bp", func(r *domain.PatientRecord) { r.SystolicBP = 160 }, 1},
		{"tachypnea severe", func(r *domain.PatientRecord) { r.RespiratoryRate = 26 }, 2},
		{"bradypnea", func(r *domain.PatientRecord) { r.RespiratoryRate = 9 }, 2},
		{"tachypnea mild", func(r *domain.PatientRecord) { r.RespiratoryRate = 21 }, 1},
		{"rr boundary not counted", func(r *domain.PatientRecord) { r.RespiratoryRate = 20 }, 0},
		{"severe hypoxia", func(r *domain.PatientRecord) { r.OxygenSaturation = 91 }, 3},
		{"mild hypoxia", func(r *domain.PatientRecord) { r.OxygenSaturation = 94 }, 1},
		{"severe pain", func(r *domain.PatientRecord) { r.PainScore = 8 }, 2},
		{"moderate pain", func(r *domain.PatientRecord) { r.PainScore = 5 }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := normal
			tt.modify(&record)

			score, _ := ScoreSeverity(&record)
			want := float64(tt.wantPoints) / severityDenominator
			assert.InDelta(t, want, score, 0.005, "expected %d points", tt.wantPoints)
		})
	}
}

func TestScoreSeverity_HighestTierWinsPerVital(t *testing.T) {
	// HR 135 matches the >=100, >=110 and >=130 tiers; only the highest
	// (3 points) counts.
	record := &domain.PatientRecord{
		Temperature:      37.0,
		HeartRate:        135,
		SystolicBP:       120,
		RespiratoryRate:  16,
		OxygenSaturation: 99,
	}

	score, _ := ScoreSeverity(record)
	assert.InDelta(t, 3.0/severityDenominator, score, 0.005)
}

func TestScoreSeverity_MaxDerangement(t *testing.T) {
	// Every vital at its highest tier: 2+3+2+2+3+2 = 14.
	record := &domain.PatientRecord{
		Temperature:      40.0,
		HeartRate:        140,
		SystolicBP:       80,
		RespiratoryRate:  30,
		OxygenSaturation: 85,
		PainScore:        9,
	}

	score, urgency := ScoreSeverity(record)
	assert.Equal(t, 1.00, score)
	assert.Equal(t, domain.UrgencyEmergency, urgency)
}

func TestScoreSeverity_UrgencyThresholds(t *testing.T) {
	assert.Equal(t, domain.UrgencyRoutine, urgencyFor(0.0))
	assert.Equal(t, domain.UrgencyRoutine, urgencyFor(0.39))
	assert.Equal(t, domain.UrgencyUrgent, urgencyFor(0.4))
	assert.Equal(t, domain.UrgencyUrgent, urgencyFor(0.69))
	assert.Equal(t, domain.UrgencyEmergency, urgencyFor(0.7))
	assert.Equal(t, domain.UrgencyEmergency, urgencyFor(1.0))
}

func TestScoreSeverity_RangeInvariant(t *testing.T) {
	records := []*domain.PatientRecord{
		{Temperature: 35.0, HeartRate: 40, SystolicBP: 70, RespiratoryRate: 5, OxygenSaturation: 70, PainScore: 10},
		{Temperature: 43.0, HeartRate: 200, SystolicBP: 250, RespiratoryRate: 40, OxygenSaturation: 100, PainScore: 0},
		{Temperature: 37.5, HeartRate: 88, SystolicBP: 130, RespiratoryRate: 18, OxygenSaturation: 96, PainScore: 3},
	}

	for _, record := range records {
		score, urgency := ScoreSeverity(record)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		assert.Contains(t, []domain.UrgencyLevel{
			domain.UrgencyRoutine, domain.UrgencyUrgent, domain.UrgencyEmergency,
		}, urgency)
	}
}
