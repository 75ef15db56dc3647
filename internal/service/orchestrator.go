package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medipatient-api-server/internal/domain"
)

// Pipeline states. Transitions are linear; failed is terminal and only
// reachable from validating. A missing model degrades the result but
// still completes the pipeline, since severity is computable from vitals
// alone.
type pipelineState string

const (
	stateValidating  pipelineState = "validating"
	stateClassifying pipelineState = "classifying"
	stateReviewing   pipelineState = "reviewing"
	stateReconciling pipelineState = "reconciling"
	stateScoring     pipelineState = "scoring"
	statePlanning    pipelineState = "planning"
	stateDone        pipelineState = "done"
	stateFailed      pipelineState = "failed"
)

// modelUnavailableLabel is the sentinel diagnosis when no classifier
// artifact is loaded.
const modelUnavailableLabel = "diagnostic model unavailable"

// Orchestrator runs the hybrid diagnostic pipeline: statistical
// classification, generative clinical review, rule-based arbitration,
// vitals-based severity scoring, and treatment planning.
type Orchestrator struct {
	logger     *logrus.Logger
	classifier *ClassifierAdapter
	reviewer   domain.ClinicalReviewer // nil means no reviewer configured
	overrides  *OverrideEngine
	planner    *TreatmentPlanner
}

// NewOrchestrator wires the pipeline components. The reviewer may be nil;
// every request then carries source=classifier-only.
func NewOrchestrator(logger *logrus.Logger, classifier *ClassifierAdapter, reviewer domain.ClinicalReviewer) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		classifier: classifier,
		reviewer:   reviewer,
		overrides:  NewOverrideEngine(logger),
		planner:    NewTreatmentPlanner(logger, reviewer),
	}
}

// ModelLoaded reports whether the classifier artifact is usable.
func (o *Orchestrator) ModelLoaded() bool {
	return o.classifier.Loaded()
}

// ReviewerAvailable reports whether the clinical reviewer is configured.
func (o *Orchestrator) ReviewerAvailable() bool {
	return o.reviewer != nil && o.reviewer.Available()
}

// Diagnose runs the full pipeline for one patient record. Only a
// ValidationError is returned to the caller; every other failure
// degrades the result and is reflected in its source field.
func (o *Orchestrator) Diagnose(ctx context.Context, record *domain.PatientRecord) (*domain.FinalDiagnosis, error) {
	startTime := time.Now()
	state := stateValidating

	// Step 1: defensive re-validation of the inbound record.
	if err := record.Validate(); err != nil {
		state = stateFailed
		o.logger.WithError(err).WithField("state", state).Warn("Patient record rejected")
		return nil, err
	}

	// Step 2: vectorize and classify.
	state = stateClassifying
	opinion, degraded := o.classify(record)

	// Step 3: clinical review. Any reviewer failure silently degrades to
	// classifier-only; it never fails the request.
	state = stateReviewing
	var review *domain.ReviewerOpinion
	if !degraded {
		review = o.review(ctx, opinion, record)
	}

	// Step 4: reconcile the two opinions.
	state = stateReconciling
	final := o.reconcile(opinion, review)

	// Step 5: severity and urgency from vitals alone.
	state = stateScoring
	final.SeverityScore, final.UrgencyLevel = ScoreSeverity(record)
	if final.ClinicalReasoning == "" {
		final.ClinicalReasoning = defaultReasoning(final)
	}

	// Step 6: treatment plan for the final (possibly overridden) label.
	state = statePlanning
	final.TreatmentPlan = o.planner.Assemble(ctx, final, record)

	state = stateDone
	o.logger.WithFields(logrus.Fields{
		"state":       state,
		"diagnosis":   final.PrimaryDiagnosis,
		"source":      final.Source,
		"severity":    final.SeverityScore,
		"urgency":     final.UrgencyLevel,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Diagnosis pipeline complete")

	return final, nil
}

// classify produces the classifier's opinion, or a sentinel opinion when
// the model is unavailable. The degraded flag suppresses the review
// stage, whose prompt would have no trustworthy label to validate.
func (o *Orchestrator) classify(record *domain.PatientRecord) (*domain.ClassifierOpinion, bool) {
	vector := Vectorize(record, o.classifier.Schema())

	opinion, err := o.classifier.Predict(vector)
	if err != nil {
		if !errors.Is(err, domain.ErrModelUnavailable) {
			o.logger.WithError(err).Error("Unexpected classifier error")
		}
		o.logger.WithField("state", stateClassifying).Warn("Classifier unavailable, degrading to vitals-only severity")
		return &domain.ClassifierOpinion{
			Label:      modelUnavailableLabel,
			Confidence: 0.0,
		}, true
	}
	return opinion, false
}

// review obtains the reviewer's second opinion, returning nil on any
// failure.
func (o *Orchestrator) review(ctx context.Context, opinion *domain.ClassifierOpinion, record *domain.PatientRecord) *domain.ReviewerOpinion {
	if o.reviewer == nil || !o.reviewer.Available() {
		return nil
	}

	review, err := o.reviewer.Review(ctx, opinion, record)
	if err != nil {
		o.logger.WithError(err).WithField("state", stateReviewing).
			Warn("Clinical review failed, degrading to classifier-only")
		return nil
	}
	return review
}

// reconcile applies the override rules and stamps provenance.
func (o *Orchestrator) reconcile(opinion *domain.ClassifierOpinion, review *domain.ReviewerOpinion) *domain.FinalDiagnosis {
	final := &domain.FinalDiagnosis{
		PrimaryDiagnosis: opinion.Label,
		Confidence:       opinion.Confidence,
		Source:           domain.SourceClassifierOnly,
	}
	if review == nil {
		return final
	}

	final.Source = domain.SourceHybridValidated
	final.ClinicalReasoning = review.ClinicalReasoning
	final.Differentials = review.Differentials
	final.RedFlags = review.RedFlags

	if override, reason := o.overrides.ShouldOverride(opinion.Label, review.Diagnosis, review); override {
		o.logger.WithFields(logrus.Fields{
			"classifier_diagnosis": opinion.Label,
			"reviewer_diagnosis":   review.Diagnosis,
			"reason":               reason,
			"certainty":            review.Certainty,
		}).Info("Reviewer overrode classifier diagnosis")

		final.PrimaryDiagnosis = review.Diagnosis
		final.Confidence = math.Max(opinion.Confidence, review.Certainty)
		final.Source = domain.SourceHybridOverridden
	}
	return final
}

// defaultReasoning fills the reasoning field when the reviewer supplied
// none, so report rendering never sees an empty explanation.
func defaultReasoning(final *domain.FinalDiagnosis) string {
	return fmt.Sprintf(
		"Clinical assessment indicates %s based on vital signs analysis (severity %.2f, %s priority).",
		final.PrimaryDiagnosis, final.SeverityScore, final.UrgencyLevel)
}
