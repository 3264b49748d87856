// Package models provides data model definitions for the DoneDex sync core.
package models

import (
	"encoding/json"
	"fmt"
)

// ResponsePayload is the payload carried by a KindResponse item.
// The remote row is keyed by (reportId, templateItemId).
type ResponsePayload struct {
	ReportID       string `json:"reportId"`
	TemplateItemID string `json:"templateItemId"`
	ResponseValue  string `json:"responseValue"`
	Notes          string `json:"notes,omitempty"`
	Severity       string `json:"severity,omitempty"`
	FieldUpdatedAt int64  `json:"fieldUpdatedAt,omitempty"`
}

// Validate checks the payload carries the keys the remote upsert needs.
func (p *ResponsePayload) Validate() error {
	if p.ReportID == "" {
		return fmt.Errorf("response payload missing reportId")
	}
	if p.TemplateItemID == "" {
		return fmt.Errorf("response payload missing templateItemId")
	}
	return nil
}

// PhotoPayload is the payload carried by a KindPhoto item.
// LocalPath references a file on this device; CapturedAt is epoch millis
// and becomes part of the remote blob path.
type PhotoPayload struct {
	ReportID   string `json:"reportId"`
	ResponseID string `json:"responseId"`
	LocalPath  string `json:"localPath"`
	CapturedAt int64  `json:"capturedAt"`
}

// Validate checks the payload carries everything the upload needs.
func (p *PhotoPayload) Validate() error {
	if p.ReportID == "" {
		return fmt.Errorf("photo payload missing reportId")
	}
	if p.ResponseID == "" {
		return fmt.Errorf("photo payload missing responseId")
	}
	if p.LocalPath == "" {
		return fmt.Errorf("photo payload missing localPath")
	}
	return nil
}

// ReportSubmitPayload is the payload carried by a KindReportSubmit item.
type ReportSubmitPayload struct {
	ReportID    string `json:"reportId"`
	SubmittedAt int64  `json:"submittedAt,omitempty"`
}

// Validate checks the payload names the report to submit.
func (p *ReportSubmitPayload) Validate() error {
	if p.ReportID == "" {
		return fmt.Errorf("report submit payload missing reportId")
	}
	return nil
}

// DecodePayload unmarshals a raw item payload into the typed payload struct
// for its kind and validates it.
func DecodePayload(kind SyncKind, raw json.RawMessage) (interface{}, error) {
	switch kind {
	case KindResponse:
		var p ResponsePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode response payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case KindPhoto:
		var p PhotoPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode photo payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case KindReportSubmit:
		var p ReportSubmitPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode report submit payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, fmt.Errorf("unknown sync kind: %q", kind)
}
