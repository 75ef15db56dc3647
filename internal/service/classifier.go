package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/medipatient-api-server/internal/domain"
)

// degradedLabel is the sentinel diagnosis produced when the model call
// fails internally.
const degradedLabel = "prediction error"

// ClassifierAdapter wraps the loaded statistical model behind the
// pipeline's opinion contract. The model handle, schema and labels are
// read-only after construction and safe for concurrent requests.
type ClassifierAdapter struct {
	logger *logrus.Logger
	handle domain.ModelHandle
	schema []string
	labels map[int]string
}

// NewClassifierAdapter creates a classifier adapter. A nil handle puts
// the adapter in permanent model-unavailable mode.
func NewClassifierAdapter(logger *logrus.Logger, handle domain.ModelHandle, schema []string, labels map[int]string) *ClassifierAdapter {
	return &ClassifierAdapter{
		logger: logger,
		handle: handle,
		schema: schema,
		labels: labels,
	}
}

// Loaded reports whether a usable model artifact is present.
func (a *ClassifierAdapter) Loaded() bool {
	return a.handle != nil && len(a.schema) > 0
}

// Schema returns the trained feature schema, in order.
func (a *ClassifierAdapter) Schema() []string {
	return a.schema
}

// Predict runs the model on a feature vector. Internal model failures
// are logged and converted to a degraded zero-confidence opinion; the
// only error returned is ErrModelUnavailable. No retries: a loaded model
// either works or the process runs degraded for its lifetime.
func (a *ClassifierAdapter) Predict(vector domain.FeatureVector) (*domain.ClassifierOpinion, error) {
	if !a.Loaded() {
		return nil, domain.ErrModelUnavailable
	}

	probs, err := a.handle.PredictProba(vector)
	if err != nil {
		perr := &domain.PredictionError{Cause: err}
		a.logger.WithError(perr).Warn("Classifier prediction failed, degrading opinion")
		return &domain.ClassifierOpinion{
			Label:      degradedLabel,
			Confidence: 0.0,
		}, nil
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	distribution := make([]domain.ClassProbability, len(probs))
	for i, p := range probs {
		distribution[i] = domain.ClassProbability{
			Label:       a.labelFor(i),
			Probability: p,
		}
	}
	sort.SliceStable(distribution, func(i, j int) bool {
		return distribution[i].Probability > distribution[j].Probability
	})

	return &domain.ClassifierOpinion{
		Label:        a.labelFor(best),
		Confidence:   probs[best],
		Distribution: distribution,
	}, nil
}

func (a *ClassifierAdapter) labelFor(classID int) string {
	if label, ok := a.labels[classID]; ok {
		return label
	}
	return fmt.Sprintf("class_%d", classID)
}
