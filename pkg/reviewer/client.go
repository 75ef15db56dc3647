// Package reviewer implements the generative clinical reviewer: an HTTP
// client for a Gemini-style generateContent API, defensive response
// parsing, and a resilient wrapper adding a circuit breaker and caching.
package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/medipatient-api-server/internal/domain"
)

// Client calls the external reasoning service. It applies client-side
// rate limiting and a bounded retry policy for transient failures only.
type Client struct {
	config     domain.ReviewerConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	available  bool
}

// NewClient creates a reviewer client. Without an API key the client is
// permanently unavailable and every call returns ErrReviewerUnavailable.
func NewClient(config domain.ReviewerConfig, logger *logrus.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
		available: config.APIKey != "",
	}
}

// Available reports whether the client has credentials to call the
// service.
func (c *Client) Available() bool {
	return c.available
}

// Review asks the reviewer to validate the classifier's opinion against
// the full clinical picture. Malformed responses yield a fallback
// opinion rather than an error; transport failures after retries return
// an error wrapping ErrReviewerUnavailable.
func (c *Client) Review(ctx context.Context, opinion *domain.ClassifierOpinion, record *domain.PatientRecord) (*domain.ReviewerOpinion, error) {
	if !c.available {
		return nil, domain.ErrReviewerUnavailable
	}

	text, err := c.generate(ctx, buildReviewPrompt(opinion, record))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReviewerUnavailable, err)
	}

	parsed, err := parseReviewerOpinion(text)
	if err != nil {
		// Malformed structured response: fall back immediately, no retry.
		c.logger.WithError(err).Warn("Malformed reviewer response, using fallback opinion")
		return fallbackOpinion(opinion), nil
	}
	return parsed, nil
}

// SuggestTreatment asks the reviewer for a structured treatment plan for
// the finalized diagnosis.
func (c *Client) SuggestTreatment(ctx context.Context, diagnosis *domain.FinalDiagnosis, record *domain.PatientRecord) (*domain.TreatmentPlan, error) {
	if !c.available {
		return nil, domain.ErrReviewerUnavailable
	}

	text, err := c.generate(ctx, buildTreatmentPrompt(diagnosis, record))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReviewerUnavailable, err)
	}

	plan, err := parseTreatmentPlan(text)
	if err != nil {
		return nil, fmt.Errorf("parsing treatment plan: %w", err)
	}
	return plan, nil
}

// Wire format of the generateContent API.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate issues the model call with retry on transient failures:
// up to MaxRetries attempts, exponential backoff doubling from
// InitialBackoff. Non-2xx responses other than 429/5xx fail immediately.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 1 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff.String(),
			}).Debug("Retrying reviewer call")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}

		text, retryable, err := c.doGenerate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", fmt.Errorf("all %d attempts failed: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) doGenerate(ctx context.Context, prompt string) (text string, retryable bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.config.Temperature,
			MaxOutputTokens:  c.config.MaxTokens,
			ResponseMimeType: "application/json",
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Model, c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return "", true, fmt.Errorf("reviewer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("reviewer returned status %d", resp.StatusCode)
	default:
		return "", false, fmt.Errorf("reviewer returned status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", false, fmt.Errorf("decoding response envelope: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("reviewer returned no candidates")
	}
	return gr.Candidates[0].Content.Parts[0].Text, false, nil
}

// buildReviewPrompt renders the structured clinical context the reviewer
// validates against.
func buildReviewPrompt(opinion *domain.ClassifierOpinion, record *domain.PatientRecord) string {
	var b strings.Builder
	b.WriteString("You are a senior clinician reviewing an automated diagnosis.\n\n")
	fmt.Fprintf(&b, "Patient: age %.0f, gender %s\n", record.Age, record.Gender)
	fmt.Fprintf(&b, "Vitals: temp %.1fC, HR %.0f, BP %.0f/%.0f, RR %.0f, SpO2 %.0f%%, pain %.0f/10\n",
		record.Temperature, record.HeartRate, record.SystolicBP, record.DiastolicBP,
		record.RespiratoryRate, record.OxygenSaturation, record.PainScore)
	if len(record.Symptoms) > 0 {
		fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(record.Symptoms, ", "))
	}
	if len(record.MedicalHistory) > 0 {
		fmt.Fprintf(&b, "History: %s\n", strings.Join(record.MedicalHistory, ", "))
	}
	fmt.Fprintf(&b, "\nStatistical model diagnosis: %s (confidence %.2f)\n\n", opinion.Label, opinion.Confidence)
	b.WriteString(`Respond with JSON only, using exactly these fields:
{"diagnosis": string, "validation_verdict": "correct"|"partially-correct"|"incorrect"|"unsure", "certainty": number 0-1, "clinical_reasoning": string, "differentials": [string], "red_flags": [string], "needs_override": bool, "override_reason": string}`)
	return b.String()
}

// buildTreatmentPrompt requests a structured plan for the final
// diagnosis.
func buildTreatmentPrompt(diagnosis *domain.FinalDiagnosis, record *domain.PatientRecord) string {
	var b strings.Builder
	b.WriteString("You are a senior clinician writing a treatment plan.\n\n")
	fmt.Fprintf(&b, "Diagnosis: %s (severity %.2f, urgency %s)\n", diagnosis.PrimaryDiagnosis, diagnosis.SeverityScore, diagnosis.UrgencyLevel)
	fmt.Fprintf(&b, "Patient: age %.0f, gender %s\n", record.Age, record.Gender)
	if len(record.Allergies) > 0 {
		fmt.Fprintf(&b, "Allergies: %s\n", strings.Join(record.Allergies, ", "))
	}
	if len(record.Medications) > 0 {
		fmt.Fprintf(&b, "Current medications: %s\n", strings.Join(record.Medications, ", "))
	}
	b.WriteString(`
Respond with JSON only, using exactly these fields:
{"immediate_interventions": [string], "medications": [string], "monitoring": [string], "follow_up": [string], "patient_education": [string]}`)
	return b.String()
}
