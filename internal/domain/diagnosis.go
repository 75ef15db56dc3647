package domain

// DiagnosisSource records which parts of the pipeline produced the final
// diagnosis.
type DiagnosisSource string

const (
	// SourceClassifierOnly means the reviewer was unavailable or failed;
	// the result rests on the statistical classifier alone.
	SourceClassifierOnly DiagnosisSource = "classifier-only"

	// SourceHybridValidated means the reviewer examined the classifier's
	// opinion and no override rule fired.
	SourceHybridValidated DiagnosisSource = "hybrid-validated"

	// SourceHybridOverridden means an override rule replaced the
	// classifier's label with the reviewer's diagnosis.
	SourceHybridOverridden DiagnosisSource = "hybrid-overridden"
)

// UrgencyLevel buckets the severity score into care-pathway tiers.
type UrgencyLevel string

const (
	UrgencyRoutine   UrgencyLevel = "routine"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyEmergency UrgencyLevel = "emergency"
)

// FeatureVector is a dense numeric vector aligned, index by index, with
// the feature schema the classifier was trained on.
type FeatureVector []float64

// ClassProbability is one entry of the classifier's probability
// distribution.
type ClassProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// ClassifierOpinion is the statistical classifier's output: the argmax
// label, its probability, and the full distribution for differential
// reporting.
type ClassifierOpinion struct {
	Label        string             `json:"label"`
	Confidence   float64            `json:"confidence"`
	Distribution []ClassProbability `json:"distribution,omitempty"`
}

// ReviewerOpinion is the generative clinical reviewer's structured
// response. ValidationVerdict is free text by contract; downstream rules
// match on substrings rather than enforcing an enum.
type ReviewerOpinion struct {
	Diagnosis         string   `json:"diagnosis"`
	ValidationVerdict string   `json:"validation_verdict"`
	Certainty         float64  `json:"certainty"`
	ClinicalReasoning string   `json:"clinical_reasoning"`
	Differentials     []string `json:"differentials,omitempty"`
	RedFlags          []string `json:"red_flags,omitempty"`
	NeedsOverride     bool     `json:"needs_override"`
	OverrideReason    string   `json:"override_reason,omitempty"`
}

// TreatmentAction is one ordered step of a treatment plan.
type TreatmentAction struct {
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Treatment plan provenance values.
const (
	PlanSourceReviewer = "reviewer"
	PlanSourceProtocol = "protocol"
)

// TreatmentPlan is an ordered list of treatment actions, either generated
// by the reviewer or drawn from the static protocol table.
type TreatmentPlan struct {
	Source  string            `json:"source"`
	Actions []TreatmentAction `json:"actions"`
}

// FinalDiagnosis is the pipeline's complete output for one patient record.
type FinalDiagnosis struct {
	PrimaryDiagnosis  string          `json:"primary_diagnosis"`
	Confidence        float64         `json:"confidence"`
	Source            DiagnosisSource `json:"source"`
	SeverityScore     float64         `json:"severity_score"`
	UrgencyLevel      UrgencyLevel    `json:"urgency_level"`
	ClinicalReasoning string          `json:"clinical_reasoning"`
	Differentials     []string        `json:"differentials,omitempty"`
	RedFlags          []string        `json:"red_flags,omitempty"`
	TreatmentPlan     *TreatmentPlan  `json:"treatment_plan,omitempty"`
}
