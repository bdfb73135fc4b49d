package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/contractdesk/config"
	"github.com/AnTengye/contractdesk/model"
)

// ErrSummarizerDisabled is returned when no AI endpoint is configured
var ErrSummarizerDisabled = errors.New("summarizer is not configured")

// maxResponseBytes caps how much of a provider response is read
const maxResponseBytes = 1 << 20

// SummaryInput describes the contract to summarize
type SummaryInput struct {
	ContractName string
	DocumentURL  string
	Content      string
}

// Summarizer produces structured summaries of contracts
type Summarizer interface {
	Summarize(ctx context.Context, input SummaryInput) (*model.StructuredSummary, error)
}

// summarySchema is sent with every request so the model answers in this shape
const summarySchema = `{
  "type": "object",
  "required": ["summary", "key_clauses", "parties"],
  "additionalProperties": false,
  "properties": {
    "summary": {"type": "string"},
    "key_clauses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "text", "risk_level"],
        "additionalProperties": false,
        "properties": {
          "title": {"type": "string"},
          "text": {"type": "string"},
          "risk_level": {"type": "string", "enum": ["high", "medium", "low"]}
        }
      }
    },
    "parties": {"type": "array", "items": {"type": "string"}},
    "effective_date": {"type": "string"},
    "expiration_date": {"type": "string"},
    "contract_value": {"type": "string"},
    "governing_law": {"type": "string"}
  }
}`

// GenerateRequest is the body sent to the generative model endpoint
type GenerateRequest struct {
	Model  string          `json:"model,omitempty"`
	Prompt string          `json:"prompt"`
	Schema json.RawMessage `json:"schema"`
}

// GenerateResponse is the body returned by the endpoint. Output is either the
// summary object itself or a string holding it.
type GenerateResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// AISummarizer calls a hosted generative model over HTTP
type AISummarizer struct {
	config     *config.AIConfig
	httpClient *http.Client
}

func NewAISummarizer(cfg *config.AIConfig) *AISummarizer {
	return &AISummarizer{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Summarize asks the model for a structured summary. Every failure, including
// an answer that does not match the schema, is an ExternalServiceError.
// There is no retry.
func (s *AISummarizer) Summarize(ctx context.Context, input SummaryInput) (*model.StructuredSummary, error) {
	summary, err := s.summarize(ctx, input)
	if err != nil {
		return nil, &model.ExternalServiceError{Service: "ai", Err: err}
	}
	return summary, nil
}

func (s *AISummarizer) summarize(ctx context.Context, input SummaryInput) (*model.StructuredSummary, error) {
	reqBody := GenerateRequest{
		Model:  s.config.Model,
		Prompt: buildPrompt(input),
		Schema: json.RawMessage(summarySchema),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("model error: %s", result.Error)
	}

	return decodeSummary(result.Output)
}

// decodeSummary strictly decodes model output. Unknown fields and missing
// required fields are rejected rather than patched up.
func decodeSummary(raw json.RawMessage) (*model.StructuredSummary, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("empty output")
	}

	// models often return the object as a JSON string
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("failed to parse output: %w", err)
		}
		raw = json.RawMessage(strings.TrimSpace(text))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var summary model.StructuredSummary
	if err := dec.Decode(&summary); err != nil {
		return nil, fmt.Errorf("output does not match schema: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after summary")
	}
	if err := summary.Validate(); err != nil {
		return nil, fmt.Errorf("incomplete summary: %w", err)
	}
	return &summary, nil
}

func buildPrompt(input SummaryInput) string {
	var b strings.Builder
	b.WriteString("Summarize the following contract for a legal reviewer. ")
	b.WriteString("List the parties and the key clauses, grading each clause's risk as high, medium or low. ")
	b.WriteString("Include effective and expiration dates, contract value and governing law when stated.\n\n")
	fmt.Fprintf(&b, "Contract: %s\n", input.ContractName)
	if input.DocumentURL != "" {
		fmt.Fprintf(&b, "Document: %s\n", input.DocumentURL)
	}
	if input.Content != "" {
		b.WriteString("\n")
		b.WriteString(input.Content)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
