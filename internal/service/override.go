package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medipatient-api-server/internal/domain"
)

// Certainty thresholds for the override rules.
const (
	explicitOverrideCertainty = 0.8
	verdictOverrideCertainty  = 0.7
	categoryOverrideCertainty = 0.6
)

// vaguenessLexicon marks classifier labels that name a body system or a
// catch-all rather than an actual condition.
var vaguenessLexicon = []string{
	"cardiovascular",
	"respiratory",
	"gastrointestinal",
	"neurological",
	"other",
	"unknown",
	"unspecified",
	"general",
	"disease",
	"disorder",
}

// categoryBucket maps diagnosis text to a coarse clinical category.
// Buckets are evaluated in order; the first with a matching keyword wins,
// and anything unmatched falls through to "other".
type categoryBucket struct {
	name     string
	keywords []string
}

var categoryBuckets = []categoryBucket{
	{name: "cardio", keywords: []string{"heart", "cardiac", "cardio", "myocardial", "infarction", "angina", "arrhythmia"}},
	{name: "respiratory", keywords: []string{"pneumonia", "copd", "asthma", "bronchitis", "lung", "respiratory", "pulmonary"}},
	{name: "gi", keywords: []string{"gastritis", "colitis", "hepatitis", "abdominal", "stomach", "bowel", "gastro"}},
	{name: "neuro", keywords: []string{"stroke", "seizure", "migraine", "encephalopathy", "neuro", "brain", "meningitis"}},
}

// OverrideEngine decides whether the reviewer's diagnosis replaces the
// classifier's label.
type OverrideEngine struct {
	logger *logrus.Logger
}

// NewOverrideEngine creates an override decision engine.
func NewOverrideEngine(logger *logrus.Logger) *OverrideEngine {
	return &OverrideEngine{logger: logger}
}

// ShouldOverride evaluates the override rules in priority order and
// returns the decision plus the rule that fired, for logging. First
// match wins.
func (e *OverrideEngine) ShouldOverride(mlDiagnosis, reviewerDiagnosis string, opinion *domain.ReviewerOpinion) (bool, string) {
	if strings.TrimSpace(mlDiagnosis) == "" || strings.TrimSpace(reviewerDiagnosis) == "" {
		return false, ""
	}

	// Rule 1: vague classifier label, specific reviewer diagnosis.
	if isVague(mlDiagnosis) && !isVague(reviewerDiagnosis) {
		return true, "vague classifier diagnosis"
	}

	// Rule 2: explicit override signal with high certainty.
	if opinion.NeedsOverride && opinion.Certainty > explicitOverrideCertainty {
		return true, "reviewer requested override"
	}

	// Rule 3: reviewer judged the classifier incorrect.
	if strings.Contains(strings.ToLower(opinion.ValidationVerdict), "incorrect") &&
		opinion.Certainty > verdictOverrideCertainty {
		return true, "reviewer verdict incorrect"
	}

	// Rule 4: clinical category disagreement.
	if clinicalCategory(mlDiagnosis) != clinicalCategory(reviewerDiagnosis) &&
		opinion.Certainty > categoryOverrideCertainty {
		return true, "clinical category mismatch"
	}

	return false, ""
}

func isVague(diagnosis string) bool {
	lower := strings.ToLower(diagnosis)
	for _, term := range vaguenessLexicon {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func clinicalCategory(diagnosis string) string {
	lower := strings.ToLower(diagnosis)
	for _, bucket := range categoryBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.name
			}
		}
	}
	return "other"
}
