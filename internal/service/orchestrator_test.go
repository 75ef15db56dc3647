package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medipatient-api-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func loadedAdapter(probs []float64) *ClassifierAdapter {
	return NewClassifierAdapter(
		testLogger(),
		&fakeModel{probs: probs},
		[]string{"temperature", "heartrate", "o2sat"},
		testLabels,
	)
}

func septicRecord() *domain.PatientRecord {
	return &domain.PatientRecord{
		Age:              65,
		Gender:           domain.GenderMale,
		Temperature:      39.5,
		HeartRate:        115,
		RespiratoryRate:  28,
		SystolicBP:       85,
		DiastolicBP:      50,
		OxygenSaturation: 88,
		Symptoms:         []string{"fever", "confusion"},
	}
}

func TestOrchestrator_ValidationFailure(t *testing.T) {
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{1, 0, 0}), nil)

	record := septicRecord()
	record.Age = 150
	record.PainScore = 12

	_, err := orch.Diagnose(context.Background(), record)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)
}

func TestOrchestrator_ClassifierOnly(t *testing.T) {
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{0.8, 0.15, 0.05}), nil)

	final, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)

	assert.Equal(t, "Sepsis", final.PrimaryDiagnosis)
	assert.Equal(t, 0.8, final.Confidence)
	assert.Equal(t, domain.SourceClassifierOnly, final.Source)
	assert.Empty(t, final.Differentials)
	assert.Empty(t, final.RedFlags)
	assert.InDelta(t, 0.79, final.SeverityScore, 1e-9)
	assert.Equal(t, domain.UrgencyEmergency, final.UrgencyLevel)
	assert.NotEmpty(t, final.ClinicalReasoning)
	require.NotNil(t, final.TreatmentPlan)
	assert.Equal(t, "protocol/sepsis", final.TreatmentPlan.Source)
}

func TestOrchestrator_ReviewerFailureDegrades(t *testing.T) {
	reviewer := &stubReviewer{available: true, reviewErr: errors.New("network timeout")}
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{0.8, 0.15, 0.05}), reviewer)

	final, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)

	assert.Equal(t, domain.SourceClassifierOnly, final.Source)
	assert.Equal(t, 0.8, final.Confidence)
	assert.Empty(t, final.Differentials)
	assert.Empty(t, final.RedFlags)
}

func TestOrchestrator_HybridValidated(t *testing.T) {
	reviewer := &stubReviewer{
		available: true,
		opinion: &domain.ReviewerOpinion{
			Diagnosis:         "Sepsis",
			ValidationVerdict: "correct",
			Certainty:         0.9,
			ClinicalReasoning: "Vitals consistent with septic physiology.",
			Differentials:     []string{"Pneumonia", "Urinary tract infection"},
			RedFlags:          []string{"hypotension", "hypoxia"},
		},
	}
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{0.8, 0.15, 0.05}), reviewer)

	final, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)

	assert.Equal(t, "Sepsis", final.PrimaryDiagnosis)
	assert.Equal(t, 0.8, final.Confidence)
	assert.Equal(t, domain.SourceHybridValidated, final.Source)
	assert.Equal(t, "Vitals consistent with septic physiology.", final.ClinicalReasoning)
	assert.Equal(t, []string{"Pneumonia", "Urinary tract infection"}, final.Differentials)
	assert.Len(t, final.RedFlags, 2)
}

func TestOrchestrator_HybridOverridden(t *testing.T) {
	reviewer := &stubReviewer{
		available: true,
		opinion: &domain.ReviewerOpinion{
			Diagnosis:         "Acute Myocardial Infarction",
			ValidationVerdict: "incorrect",
			Certainty:         0.85,
			ClinicalReasoning: "Presentation is cardiac, not migrainous.",
			NeedsOverride:     true,
		},
	}
	// Classifier picks Migraine with modest confidence.
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{0.1, 0.2, 0.7}), reviewer)

	final, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)

	assert.Equal(t, "Acute Myocardial Infarction", final.PrimaryDiagnosis)
	assert.Equal(t, domain.SourceHybridOverridden, final.Source)
	// max(classifier 0.7, reviewer 0.85)
	assert.Equal(t, 0.85, final.Confidence)
	require.NotNil(t, final.TreatmentPlan)
	assert.Equal(t, "protocol/cardiac", final.TreatmentPlan.Source)
}

func TestOrchestrator_ModelUnavailableDegrades(t *testing.T) {
	adapter := NewClassifierAdapter(testLogger(), nil, nil, nil)
	reviewer := &stubReviewer{available: true, opinion: &domain.ReviewerOpinion{Diagnosis: "Sepsis", Certainty: 0.9}}
	orch := NewOrchestrator(testLogger(), adapter, reviewer)

	assert.False(t, orch.ModelLoaded())

	final, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)

	assert.Equal(t, modelUnavailableLabel, final.PrimaryDiagnosis)
	assert.Equal(t, 0.0, final.Confidence)
	assert.Equal(t, domain.SourceClassifierOnly, final.Source)
	// Severity is still computable from vitals alone.
	assert.InDelta(t, 0.79, final.SeverityScore, 1e-9)
	assert.Equal(t, domain.UrgencyEmergency, final.UrgencyLevel)
	// The reviewer is not consulted without a trustworthy label.
	assert.Zero(t, reviewer.reviewCalls)
}

func TestOrchestrator_Idempotent(t *testing.T) {
	reviewer := &stubReviewer{
		available: true,
		opinion: &domain.ReviewerOpinion{
			Diagnosis:         "Sepsis",
			ValidationVerdict: "correct",
			Certainty:         0.9,
			ClinicalReasoning: "Consistent presentation.",
			Differentials:     []string{"Pneumonia"},
		},
	}
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{0.8, 0.15, 0.05}), reviewer)

	first, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)
	second, err := orch.Diagnose(context.Background(), septicRecord())
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestOrchestrator_ReviewerAvailable(t *testing.T) {
	orch := NewOrchestrator(testLogger(), loadedAdapter([]float64{1, 0, 0}), nil)
	assert.False(t, orch.ReviewerAvailable())

	orch = NewOrchestrator(testLogger(), loadedAdapter([]float64{1, 0, 0}), &stubReviewer{available: true})
	assert.True(t, orch.ReviewerAvailable())
}
