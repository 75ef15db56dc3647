package domain

import "context"

// ModelHandle is a loaded classifier artifact. PredictProba returns one
// probability per class, in class-index order, for a vector aligned with
// the trained feature schema.
type ModelHandle interface {
	PredictProba(vector FeatureVector) ([]float64, error)
}

// ClinicalReviewer is the generative second opinion. Implementations must
// bound latency via ctx and their own timeouts; the orchestrator treats
// any error as "reviewer unavailable" and degrades gracefully.
type ClinicalReviewer interface {
	// Review validates the classifier's opinion against the full
	// clinical picture and returns a structured second opinion.
	Review(ctx context.Context, opinion *ClassifierOpinion, record *PatientRecord) (*ReviewerOpinion, error)

	// SuggestTreatment generates a treatment plan for a finalized
	// diagnosis. Callers fall back to protocol tables on error.
	SuggestTreatment(ctx context.Context, diagnosis *FinalDiagnosis, record *PatientRecord) (*TreatmentPlan, error)

	// Available reports whether the reviewer is configured and usable.
	Available() bool
}

// ConfigManager provides access to validated service configuration.
type ConfigManager interface {
	GetConfig() *Config
	Validate() error
	IsProduction() bool
}
