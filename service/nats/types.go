package nats

import (
	"fmt"
	"time"
)

// Step status values carried by StepEvent.Status.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StepEvent is published once per completed (or failed) flow step.
// It is published to the subject "splflow.{run_id}.{step}" in JetStream.
type StepEvent struct {
	RunID  string `json:"run_id"`
	Step   string `json:"step"`
	Status string `json:"status"`

	// Ledger details; empty when the step produced none.
	Signature string `json:"signature,omitempty"`
	Account   string `json:"account,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Detail    string `json:"detail,omitempty"`

	OccurredAt  time.Time `json:"occurred_at"`
	PublishedAt time.Time `json:"published_at"`
}

// StepSubject returns the subject a step event is published on.
func StepSubject(runID, step string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, runID, step)
}

// RunFilterSubject returns a filter matching every step of one run, or every
// run when runID is empty.
func RunFilterSubject(runID string) string {
	if runID == "" {
		return StreamSubjects
	}
	return fmt.Sprintf("%s.%s.*", SubjectPrefix, runID)
}
