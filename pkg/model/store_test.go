package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medipatient-api-server/internal/domain"
)

func writeArtifacts(t *testing.T, dir, weights, features, labels string) domain.ModelConfig {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte(weights), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature_names.csv"), []byte(features), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "label_mapping.csv"), []byte(labels), 0o644))
	return domain.ModelConfig{
		Dir:          dir,
		WeightsFile:  "model.json",
		FeaturesFile: "feature_names.csv",
		LabelsFile:   "label_mapping.csv",
	}
}

const testWeights = `{
	"intercepts": [0.1, -0.2],
	"coefficients": [[1.0, 0.0, 0.5], [-1.0, 0.5, 0.0]]
}`

const testFeatures = "temperature\nheartrate\nfever_high\n"

const testLabels = "class_id,class_name\n0,Sepsis\n1,Migraine\n"

func TestStore_Load(t *testing.T) {
	cfg := writeArtifacts(t, t.TempDir(), testWeights, testFeatures, testLabels)
	store := NewStore(cfg, logrus.New())

	artifacts, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"temperature", "heartrate", "fever_high"}, artifacts.Schema)
	assert.Equal(t, map[int]string{0: "Sepsis", 1: "Migraine"}, artifacts.Labels)
	assert.Equal(t, 2, artifacts.Classes)
	assert.Equal(t, 2, artifacts.Handle.Classes())
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		weights  string
		features string
		labels   string
		wantErr  string
	}{
		{
			name:     "coefficient row shorter than schema",
			weights:  `{"intercepts": [0.0], "coefficients": [[1.0]]}`,
			features: testFeatures,
			labels:   "class_id,class_name\n0,Sepsis\n",
			wantErr:  "coefficients",
		},
		{
			name:     "intercepts and coefficients disagree",
			weights:  `{"intercepts": [0.0, 0.1], "coefficients": [[1.0, 0.0, 0.0]]}`,
			features: testFeatures,
			labels:   testLabels,
			wantErr:  "do not match",
		},
		{
			name:     "label mapping missing a class",
			weights:  testWeights,
			features: testFeatures,
			labels:   "class_id,class_name\n0,Sepsis\n",
			wantErr:  "missing class id 1",
		},
		{
			name:     "empty schema",
			weights:  testWeights,
			features: "",
			labels:   testLabels,
			wantErr:  "empty",
		},
		{
			name:     "malformed weights json",
			weights:  "{not json",
			features: testFeatures,
			labels:   testLabels,
			wantErr:  "parsing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeArtifacts(t, t.TempDir(), tt.weights, tt.features, tt.labels)
			store := NewStore(cfg, logrus.New())

			_, err := store.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(domain.ModelConfig{
		Dir:          t.TempDir(),
		WeightsFile:  "model.json",
		FeaturesFile: "feature_names.csv",
		LabelsFile:   "label_mapping.csv",
	}, logrus.New())

	_, err := store.Load()
	require.Error(t, err)
}

func TestHandle_PredictProba(t *testing.T) {
	cfg := writeArtifacts(t, t.TempDir(), testWeights, testFeatures, testLabels)
	store := NewStore(cfg, logrus.New())
	artifacts, err := store.Load()
	require.NoError(t, err)

	probs, err := artifacts.Handle.PredictProba(domain.FeatureVector{38.0, 95.0, 0.0})
	require.NoError(t, err)
	require.Len(t, probs, 2)

	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// Class 0 has strongly positive weight on the first feature, so it
	// should dominate for this input.
	assert.Greater(t, probs[0], probs[1])
}

func TestHandle_PredictProbaDimensionMismatch(t *testing.T) {
	cfg := writeArtifacts(t, t.TempDir(), testWeights, testFeatures, testLabels)
	store := NewStore(cfg, logrus.New())
	artifacts, err := store.Load()
	require.NoError(t, err)

	_, err = artifacts.Handle.PredictProba(domain.FeatureVector{1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestHandle_PredictProbaDeterministic(t *testing.T) {
	cfg := writeArtifacts(t, t.TempDir(), testWeights, testFeatures, testLabels)
	store := NewStore(cfg, logrus.New())
	artifacts, err := store.Load()
	require.NoError(t, err)

	vec := domain.FeatureVector{37.2, 80.0, 1.0}
	first, err := artifacts.Handle.PredictProba(vec)
	require.NoError(t, err)
	second, err := artifacts.Handle.PredictProba(vec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
