// Package model loads the trained classifier artifacts produced by the
// training pipeline: per-class linear weights (model.json), the ordered
// feature schema (feature_names.csv), and the class label mapping
// (label_mapping.csv). Artifacts are read once at startup and shared
// read-only by all requests.
package model

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/medipatient-api-server/internal/domain"
)

// Artifacts bundles everything the classifier adapter needs.
type Artifacts struct {
	Handle  *Handle
	Schema  []string
	Labels  map[int]string
	Classes int
}

// Store loads classifier artifacts from a directory on disk.
type Store struct {
	cfg    domain.ModelConfig
	logger *logrus.Logger
}

// NewStore creates a file-backed artifact store.
func NewStore(cfg domain.ModelConfig, logger *logrus.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// weightsFile is the on-disk layout of model.json.
type weightsFile struct {
	Intercepts   []float64   `json:"intercepts"`
	Coefficients [][]float64 `json:"coefficients"`
}

// Load reads and cross-validates the three artifacts.
func (s *Store) Load() (*Artifacts, error) {
	schema, err := s.loadSchema()
	if err != nil {
		return nil, fmt.Errorf("loading feature schema: %w", err)
	}

	labels, err := s.loadLabels()
	if err != nil {
		return nil, fmt.Errorf("loading label mapping: %w", err)
	}

	weights, err := s.loadWeights()
	if err != nil {
		return nil, fmt.Errorf("loading model weights: %w", err)
	}

	classes := len(weights.Intercepts)
	if classes == 0 {
		return nil, fmt.Errorf("model has no classes")
	}
	if len(weights.Coefficients) != classes {
		return nil, fmt.Errorf("coefficient rows (%d) do not match intercepts (%d)",
			len(weights.Coefficients), classes)
	}
	for i, row := range weights.Coefficients {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("class %d has %d coefficients, schema has %d features",
				i, len(row), len(schema))
		}
	}
	for i := 0; i < classes; i++ {
		if _, ok := labels[i]; !ok {
			return nil, fmt.Errorf("label mapping missing class id %d", i)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"classes":  classes,
		"features": len(schema),
		"dir":      s.cfg.Dir,
	}).Info("Classifier artifacts loaded")

	return &Artifacts{
		Handle:  &Handle{intercepts: weights.Intercepts, coefficients: weights.Coefficients},
		Schema:  schema,
		Labels:  labels,
		Classes: classes,
	}, nil
}

func (s *Store) loadWeights() (*weightsFile, error) {
	path := filepath.Join(s.cfg.Dir, s.cfg.WeightsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var w weightsFile
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &w, nil
}

// loadSchema reads the headerless, one-feature-per-line CSV.
func (s *Store) loadSchema() ([]string, error) {
	path := filepath.Join(s.cfg.Dir, s.cfg.FeaturesFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	schema := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		schema = append(schema, row[0])
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("feature schema %s is empty", path)
	}
	return schema, nil
}

// loadLabels reads the class_id,class_name CSV (header row expected).
func (s *Store) loadLabels() (map[int]string, error) {
	path := filepath.Join(s.cfg.Dir, s.cfg.LabelsFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("label mapping %s has no entries", path)
	}

	labels := make(map[int]string, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		if len(row) < 2 {
			return nil, fmt.Errorf("label mapping row has %d columns, want 2", len(row))
		}
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("invalid class id %q: %w", row[0], err)
		}
		labels[id] = row[1]
	}
	return labels, nil
}

// Handle is a loaded linear softmax classifier. It is safe for concurrent
// use because it is never mutated after Load.
type Handle struct {
	intercepts   []float64
	coefficients [][]float64
}

// PredictProba computes softmax probabilities over the class scores.
// The vector must match the trained feature schema length.
func (h *Handle) PredictProba(vector domain.FeatureVector) ([]float64, error) {
	if len(h.coefficients) == 0 {
		return nil, fmt.Errorf("empty model")
	}
	if len(vector) != len(h.coefficients[0]) {
		return nil, fmt.Errorf("vector length %d does not match feature count %d",
			len(vector), len(h.coefficients[0]))
	}

	scores := make([]float64, len(h.intercepts))
	for c := range h.intercepts {
		score := h.intercepts[c]
		for i, coef := range h.coefficients[c] {
			score += coef * vector[i]
		}
		scores[c] = score
	}

	// Softmax with max subtraction for numeric stability.
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

// Classes returns the number of output classes.
func (h *Handle) Classes() int {
	return len(h.intercepts)
}
