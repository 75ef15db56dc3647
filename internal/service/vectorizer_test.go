package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medipatient-api-server/internal/domain"
)

func TestVectorize_SchemaAlignment(t *testing.T) {
	record := &domain.PatientRecord{
		Age:              67,
		Temperature:      39.2,
		HeartRate:        135,
		SystolicBP:       85,
		DiastolicBP:      50,
		RespiratoryRate:  28,
		OxygenSaturation: 88,
		PainScore:        6,
	}

	schema := []string{"temperature", "heartrate", "resprate", "sbp", "dbp", "o2sat", "anchor_age"}
	vector := Vectorize(record, schema)

	require.Len(t, vector, len(schema))
	assert.Equal(t, domain.FeatureVector{39.2, 135, 28, 85, 50, 88, 67}, vector)
}

func TestVectorize_DerivedFlags(t *testing.T) {
	schema := []string{"fever_high", "tachycardia", "hypotension", "hypoxia"}

	tests := []struct {
		name   string
		record domain.PatientRecord
		want   domain.FeatureVector
	}{
		{
			name: "all flags set",
			record: domain.PatientRecord{
				Temperature: 39.0, HeartRate: 120, SystolicBP: 85, OxygenSaturation: 88,
			},
			want: domain.FeatureVector{1, 1, 1, 1},
		},
		{
			name: "all flags clear",
			record: domain.PatientRecord{
				Temperature: 37.0, HeartRate: 75, SystolicBP: 120, OxygenSaturation: 98,
			},
			want: domain.FeatureVector{0, 0, 0, 0},
		},
		{
			name: "thresholds are strict",
			record: domain.PatientRecord{
				Temperature: 38.5, HeartRate: 100, SystolicBP: 90, OxygenSaturation: 90,
			},
			want: domain.FeatureVector{0, 0, 0, 0},
		},
		{
			name: "just past thresholds",
			record: domain.PatientRecord{
				Temperature: 38.6, HeartRate: 101, SystolicBP: 89.9, OxygenSaturation: 89.9,
			},
			want: domain.FeatureVector{1, 1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Vectorize(&tt.record, schema))
		})
	}
}

func TestVectorize_UnknownFeaturesZero(t *testing.T) {
	record := &domain.PatientRecord{Temperature: 38.0}
	schema := []string{"temperature", "acuity", "some_future_feature"}

	vector := Vectorize(record, schema)
	assert.Equal(t, domain.FeatureVector{38.0, 0, 0}, vector)
}

func TestVectorize_EmptySchema(t *testing.T) {
	vector := Vectorize(&domain.PatientRecord{}, nil)
	assert.Empty(t, vector)
}

func TestVectorize_Deterministic(t *testing.T) {
	record := &domain.PatientRecord{Temperature: 38.7, HeartRate: 110, SystolicBP: 100, OxygenSaturation: 93}
	schema := []string{"temperature", "fever_high", "tachycardia", "o2sat"}

	assert.Equal(t, Vectorize(record, schema), Vectorize(record, schema))
}
