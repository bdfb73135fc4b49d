package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SummaryKind discriminates the variants of Summary
type SummaryKind string

const (
	SummaryText       SummaryKind = "text"
	SummaryStructured SummaryKind = "structured"
)

// RiskLevel grades a key clause
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// KeyClause is one clause called out by a structured summary
type KeyClause struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// StructuredSummary is the detailed breakdown of a contract
type StructuredSummary struct {
	Overview       string      `json:"summary"`
	KeyClauses     []KeyClause `json:"key_clauses"`
	Parties        []string    `json:"parties"`
	EffectiveDate  string      `json:"effective_date,omitempty"`
	ExpirationDate string      `json:"expiration_date,omitempty"`
	ContractValue  string      `json:"contract_value,omitempty"`
	GoverningLaw   string      `json:"governing_law,omitempty"`
}

// Validate checks the fields a structured summary must carry
func (s *StructuredSummary) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(s.Overview) == "" {
		verr.Add("summary", "is required")
	}
	if s.KeyClauses == nil {
		verr.Add("key_clauses", "is required")
	}
	if s.Parties == nil {
		verr.Add("parties", "is required")
	}
	for i, kc := range s.KeyClauses {
		switch kc.RiskLevel {
		case RiskHigh, RiskMedium, RiskLow:
		default:
			verr.Add(fmt.Sprintf("key_clauses[%d].risk_level", i), "must be one of high, medium, low")
		}
		if strings.TrimSpace(kc.Title) == "" {
			verr.Add(fmt.Sprintf("key_clauses[%d].title", i), "is required")
		}
	}
	return verr.OrNil()
}

// Summary is either a plain text summary or a structured breakdown
type Summary struct {
	Kind       SummaryKind
	Text       string
	Structured *StructuredSummary
}

// NewTextSummary builds the plain text variant
func NewTextSummary(text string) Summary {
	return Summary{Kind: SummaryText, Text: text}
}

// NewStructuredSummary builds the structured variant
func NewStructuredSummary(s StructuredSummary) Summary {
	return Summary{Kind: SummaryStructured, Structured: &s}
}

// Clone returns a deep copy
func (s Summary) Clone() Summary {
	out := s
	if s.Structured != nil {
		st := *s.Structured
		st.KeyClauses = append([]KeyClause(nil), s.Structured.KeyClauses...)
		st.Parties = append([]string(nil), s.Structured.Parties...)
		out.Structured = &st
	}
	return out
}

// Headline returns a one-line description of the summary
func (s Summary) Headline() string {
	switch s.Kind {
	case SummaryText:
		return s.Text
	case SummaryStructured:
		if s.Structured == nil {
			return ""
		}
		return s.Structured.Overview
	default:
		return ""
	}
}

type textSummaryJSON struct {
	Kind SummaryKind `json:"kind"`
	Text string      `json:"text"`
}

type structuredSummaryJSON struct {
	Kind SummaryKind `json:"kind"`
	StructuredSummary
}

func (s Summary) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SummaryText:
		return json.Marshal(textSummaryJSON{Kind: SummaryText, Text: s.Text})
	case SummaryStructured:
		if s.Structured == nil {
			return nil, fmt.Errorf("structured summary without body")
		}
		return json.Marshal(structuredSummaryJSON{Kind: SummaryStructured, StructuredSummary: *s.Structured})
	default:
		return nil, fmt.Errorf("unknown summary kind %q", s.Kind)
	}
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind SummaryKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Kind {
	case SummaryText:
		var t textSummaryJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*s = NewTextSummary(t.Text)
	case SummaryStructured:
		var st structuredSummaryJSON
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		*s = NewStructuredSummary(st.StructuredSummary)
	default:
		return fmt.Errorf("unknown summary kind %q", head.Kind)
	}
	return nil
}
