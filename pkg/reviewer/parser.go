package reviewer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medipatient-api-server/internal/domain"
)

// extractJSON pulls a JSON object out of text that may wrap it in prose
// or markdown fences. Reasoning services do not reliably honor
// JSON-only instructions.
func extractJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("embedded JSON object is invalid")
	}
	return []byte(candidate), nil
}

// parseReviewerOpinion decodes and sanitizes the reviewer's structured
// opinion. A missing diagnosis makes the whole response unusable.
func parseReviewerOpinion(text string) (*domain.ReviewerOpinion, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var opinion domain.ReviewerOpinion
	if err := json.Unmarshal(raw, &opinion); err != nil {
		return nil, fmt.Errorf("decoding reviewer opinion: %w", err)
	}

	opinion.Diagnosis = strings.TrimSpace(opinion.Diagnosis)
	if opinion.Diagnosis == "" {
		return nil, fmt.Errorf("reviewer opinion has no diagnosis")
	}

	if opinion.Certainty < 0 {
		opinion.Certainty = 0
	}
	if opinion.Certainty > 1 {
		opinion.Certainty = 1
	}
	return &opinion, nil
}

// fallbackOpinion stands in when the reviewer replied but the reply was
// unusable: it echoes the classifier so no override rule can fire.
func fallbackOpinion(opinion *domain.ClassifierOpinion) *domain.ReviewerOpinion {
	return &domain.ReviewerOpinion{
		Diagnosis:         opinion.Label,
		ValidationVerdict: "unsure",
		Certainty:         0.5,
		ClinicalReasoning: "Clinical review unavailable; automated diagnosis not independently validated.",
		NeedsOverride:     false,
	}
}

// treatmentResponse is the wire shape of the reviewer's plan.
type treatmentResponse struct {
	ImmediateInterventions []string `json:"immediate_interventions"`
	Medications            []string `json:"medications"`
	Monitoring             []string `json:"monitoring"`
	FollowUp               []string `json:"follow_up"`
	PatientEducation       []string `json:"patient_education"`
}

// parseTreatmentPlan coerces the reviewer's field-per-category response
// into the ordered (category, action) plan shape.
func parseTreatmentPlan(text string) (*domain.TreatmentPlan, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var tr treatmentResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decoding treatment plan: %w", err)
	}

	plan := &domain.TreatmentPlan{Source: domain.PlanSourceReviewer}
	appendActions := func(category string, actions []string) {
		for _, action := range actions {
			action = strings.TrimSpace(action)
			if action == "" {
				continue
			}
			plan.Actions = append(plan.Actions, domain.TreatmentAction{Category: category, Action: action})
		}
	}
	appendActions("immediate", tr.ImmediateInterventions)
	appendActions("medication", tr.Medications)
	appendActions("monitoring", tr.Monitoring)
	appendActions("follow-up", tr.FollowUp)
	appendActions("patient-education", tr.PatientEducation)

	if len(plan.Actions) == 0 {
		return nil, fmt.Errorf("treatment plan has no actions")
	}
	return plan, nil
}
