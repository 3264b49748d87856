// Package models provides data model definitions for the DoneDex sync core.
package models

import (
	"encoding/json"
	"time"
)

// SyncKind identifies the dispatch handler for a queued sync item.
type SyncKind string

const (
	// KindResponse upserts a single checklist response on the remote store.
	KindResponse SyncKind = "Response"
	// KindPhoto uploads a local photo file and creates its remote record.
	KindPhoto SyncKind = "Photo"
	// KindReportSubmit marks a report as submitted on the remote store.
	KindReportSubmit SyncKind = "ReportSubmit"
)

// Valid reports whether the kind is a known sync kind.
func (k SyncKind) Valid() bool {
	switch k {
	case KindResponse, KindPhoto, KindReportSubmit:
		return true
	}
	return false
}

// MaxRetryCount is the retry ceiling for a queued item. An item that fails
// this many times stays in the queue for manual retry; it is never dropped.
const MaxRetryCount = 3

// MaxRetriesMessage is the lastError sentinel recorded at the retry ceiling.
const MaxRetriesMessage = "Max retries exceeded"

// SyncItem represents one pending sync operation in the durable queue.
type SyncItem struct {
	ID         string          `json:"id"`
	Kind       SyncKind        `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  int64           `json:"createdAt"`
	RetryCount int             `json:"retryCount"`
	LastError  string          `json:"lastError,omitempty"`
}

// CreatedAtTime returns the CreatedAt as time.Time.
// Timestamps are epoch milliseconds as produced by the mobile clients.
func (s *SyncItem) CreatedAtTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// CanRetry reports whether the item is below the retry ceiling.
func (s *SyncItem) CanRetry() bool {
	return s.RetryCount < MaxRetryCount
}

// Exhausted reports whether the item has reached the retry ceiling.
func (s *SyncItem) Exhausted() bool {
	return s.RetryCount >= MaxRetryCount
}

// RecordFailure increments the retry count and records the failure reason.
// Once the ceiling is reached the sentinel message replaces the reason.
func (s *SyncItem) RecordFailure(reason string) {
	s.RetryCount++
	if s.RetryCount >= MaxRetryCount {
		s.LastError = MaxRetriesMessage
	} else {
		s.LastError = reason
	}
}

// ResetRetries clears the retry state so the item is attempted again as if
// fresh. Used by the manual force-retry affordance.
func (s *SyncItem) ResetRetries() {
	s.RetryCount = 0
	s.LastError = ""
}
