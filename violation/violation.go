// Package violation owns the violation ledger: findings produced by sync
// checks, their open → resolved/acknowledged lifecycle, and the audit trail.
//
// The ledger is append-only. Rows are transitioned, never deleted or
// reopened; a condition that comes back after being closed gets a new row.
package violation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/teranos/relset/entity"
)

// Kind is what sort of check produced a violation.
type Kind string

const (
	KindExistence     Kind = "existence"
	KindLinkIntegrity Kind = "link_integrity"
	KindMetadata      Kind = "metadata"
)

// Status is a violation's lifecycle state. Resolved and acknowledged are terminal.
type Status string

const (
	StatusOpen         Status = "open"
	StatusResolved     Status = "resolved"
	StatusAcknowledged Status = "acknowledged"
)

// IsValid returns true if s is a known status
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusResolved || s == StatusAcknowledged
}

// Source records who caused a transition.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

// AutoResolveNote is the resolution note of violations closed by a sync check.
const AutoResolveNote = "auto-resolved: condition no longer detected"

// Violation is one row of the ledger.
type Violation struct {
	ID             string     `json:"id"`
	SetID          string     `json:"set_id"`
	RunID          string     `json:"run_id"`
	Kind           Kind       `json:"kind"`
	RuleID         string     `json:"rule_id,omitempty"`
	Field          string     `json:"field,omitempty"`
	Severity       string     `json:"severity"`
	Subject        entity.Ref `json:"subject"`
	Secondary      entity.Ref `json:"secondary,omitempty"`
	Message        string     `json:"message"`
	Status         Status     `json:"status"`
	Fingerprint    string     `json:"fingerprint"`
	DetectedAt     time.Time  `json:"detected_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
}

// Finding is an issue detected by one sync check, before reconciliation.
type Finding struct {
	Kind      Kind
	RuleID    string
	Field     string
	Severity  string
	Subject   entity.Ref
	Secondary entity.Ref
	Message   string
}

// Fingerprint identifies the finding's condition within setID.
func (f Finding) Fingerprint(setID string) string {
	return Fingerprint(setID, f.Kind, f.Subject, f.RuleID, f.Field, f.Secondary)
}

// Fingerprint hashes the identity of a condition. Equal inputs always give
// the same value, across runs and processes.
func Fingerprint(setID string, kind Kind, subject entity.Ref, ruleID, field string, secondary entity.Ref) string {
	parts := []string{setID, string(kind), subject.String(), ruleID, field}
	if !secondary.IsZero() {
		parts = append(parts, secondary.String())
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Event is one audit trail entry. From is empty for the creation event.
type Event struct {
	ID          int64     `json:"id"`
	ViolationID string    `json:"violation_id"`
	From        Status    `json:"from,omitempty"`
	To          Status    `json:"to"`
	Source      Source    `json:"source"`
	Actor       string    `json:"actor,omitempty"`
	Note        string    `json:"note,omitempty"`
	At          time.Time `json:"at"`
}

// Delta is what one reconciliation changed.
type Delta struct {
	New          []Violation `json:"new_violations"`
	AutoResolved []Violation `json:"auto_resolved_violations"`
}
