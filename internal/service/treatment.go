package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medipatient-api-server/internal/domain"
)

// protocolBucket is one row of the static treatment protocol table. The
// table is ordered; the first bucket with a keyword match wins, and the
// final bucket has no keywords so it always matches.
type protocolBucket struct {
	name     string
	keywords []string
	actions  []domain.TreatmentAction
}

// The protocol table is configuration data, not behavior: extend it by
// adding rows, never by touching the assembler.
var protocolTable = []protocolBucket{
	{
		name:     "trauma",
		keywords: []string{"trauma", "shock", "hemorrhage", "bleeding", "injury", "fracture"},
		actions: []domain.TreatmentAction{
			{Category: "immediate", Action: "Stabilize airway, breathing, and circulation"},
			{Category: "immediate", Action: "Control active bleeding and establish two large-bore IV lines"},
			{Category: "medication", Action: "IV fluid resuscitation; type and crossmatch for transfusion"},
			{Category: "monitoring", Action: "Continuous vital signs and serial hemoglobin"},
			{Category: "follow-up", Action: "Surgical consultation"},
		},
	},
	{
		name:     "sepsis",
		keywords: []string{"sepsis", "septic", "infection", "fever", "bacteremia"},
		actions: []domain.TreatmentAction{
			{Category: "immediate", Action: "Obtain blood cultures before antibiotics"},
			{Category: "medication", Action: "Broad-spectrum IV antibiotics within one hour"},
			{Category: "medication", Action: "30 mL/kg crystalloid bolus for hypotension or lactate >= 4"},
			{Category: "monitoring", Action: "Serial lactate and urine output monitoring"},
			{Category: "follow-up", Action: "Reassess volume status and de-escalate antibiotics per cultures"},
		},
	},
	{
		name:     "cardiac",
		keywords: []string{"cardiac", "heart", "myocardial", "infarction", "angina", "acs", "arrhythmia"},
		actions: []domain.TreatmentAction{
			{Category: "immediate", Action: "12-lead ECG within 10 minutes; activate cath lab if STEMI"},
			{Category: "medication", Action: "Aspirin 325 mg chewed unless contraindicated"},
			{Category: "medication", Action: "Nitroglycerin for ongoing chest pain if SBP permits"},
			{Category: "monitoring", Action: "Continuous cardiac monitoring and serial troponins"},
			{Category: "follow-up", Action: "Cardiology consultation"},
		},
	},
	{
		name:     "respiratory",
		keywords: []string{"pneumonia", "respiratory", "asthma", "copd", "bronchitis", "lung", "pulmonary"},
		actions: []domain.TreatmentAction{
			{Category: "immediate", Action: "Supplemental oxygen to keep SpO2 >= 92%"},
			{Category: "medication", Action: "Bronchodilators for obstructive symptoms; antibiotics if bacterial pneumonia suspected"},
			{Category: "monitoring", Action: "Continuous pulse oximetry and respiratory rate"},
			{Category: "follow-up", Action: "Chest imaging and reassessment within 48-72 hours"},
		},
	},
	{
		name:     "neurological",
		keywords: []string{"stroke", "seizure", "neuro", "brain", "encephalopathy", "meningitis"},
		actions: []domain.TreatmentAction{
			{Category: "immediate", Action: "Neurological assessment and glucose check; non-contrast head CT if stroke suspected"},
			{Category: "medication", Action: "Per protocol for the specific syndrome (thrombolytics, anticonvulsants, antimicrobials)"},
			{Category: "monitoring", Action: "Frequent neuro checks and seizure precautions"},
			{Category: "follow-up", Action: "Neurology consultation"},
		},
	},
	{
		// General fallback: no keywords, always matches.
		name: "general",
		actions: []domain.TreatmentAction{
			{Category: "immediate", Action: "Symptomatic supportive care"},
			{Category: "monitoring", Action: "Routine vital signs monitoring"},
			{Category: "follow-up", Action: "Primary care follow-up within one week"},
			{Category: "patient-education", Action: "Return precautions for worsening symptoms"},
		},
	},
}

// TreatmentPlanner assembles the treatment plan for a finalized
// diagnosis: reviewer-generated when possible, static protocol otherwise.
type TreatmentPlanner struct {
	logger   *logrus.Logger
	reviewer domain.ClinicalReviewer // nil disables reviewer plans
}

// NewTreatmentPlanner creates a treatment planner.
func NewTreatmentPlanner(logger *logrus.Logger, reviewer domain.ClinicalReviewer) *TreatmentPlanner {
	return &TreatmentPlanner{logger: logger, reviewer: reviewer}
}

// Assemble returns a treatment plan for the final diagnosis. It never
// fails: reviewer errors fall back to the protocol table.
func (p *TreatmentPlanner) Assemble(ctx context.Context, diagnosis *domain.FinalDiagnosis, record *domain.PatientRecord) *domain.TreatmentPlan {
	if p.reviewer != nil && p.reviewer.Available() {
		plan, err := p.reviewer.SuggestTreatment(ctx, diagnosis, record)
		if err == nil && plan != nil && len(plan.Actions) > 0 {
			plan.Source = domain.PlanSourceReviewer
			return plan
		}
		if err != nil {
			p.logger.WithError(err).WithField("diagnosis", diagnosis.PrimaryDiagnosis).
				Warn("Reviewer treatment plan failed, using protocol table")
		}
	}
	return protocolPlan(diagnosis.PrimaryDiagnosis)
}

// protocolPlan selects the first matching protocol bucket for the
// diagnosis text.
func protocolPlan(diagnosis string) *domain.TreatmentPlan {
	lower := strings.ToLower(diagnosis)
	for _, bucket := range protocolTable {
		if len(bucket.keywords) == 0 || matchesAny(lower, bucket.keywords) {
			actions := make([]domain.TreatmentAction, len(bucket.actions))
			copy(actions, bucket.actions)
			return &domain.TreatmentPlan{
				Source:  domain.PlanSourceProtocol + "/" + bucket.name,
				Actions: actions,
			}
		}
	}
	// Unreachable: the general bucket always matches.
	return &domain.TreatmentPlan{Source: domain.PlanSourceProtocol}
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
