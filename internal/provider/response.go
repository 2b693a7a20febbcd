// Package provider defines the print provider's response contract: the
// shapes deposited in the outbound directory and the mapping from reported
// outcomes onto print request statuses.
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/electoral-digital/print-engine/internal/domain"
)

// Outcome is the provider's verdict for a batch or a processing step.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure:
		return true
	}
	return false
}

// Step is the provider-side processing stage a per-request outcome refers to.
type Step string

const (
	StepProcessed    Step = "PROCESSED"
	StepInProduction Step = "IN_PRODUCTION"
	StepDispatched   Step = "DISPATCHED"
	StepNotDelivered Step = "NOT_DELIVERED"
)

func (s Step) String() string { return string(s) }

func (s Step) IsValid() bool {
	switch s {
	case StepProcessed, StepInProduction, StepDispatched, StepNotDelivered:
		return true
	}
	return false
}

// BatchResponse reports the provider's acceptance or rejection of a whole
// batch archive.
type BatchResponse struct {
	BatchID   string    `json:"batchId"`
	Outcome   Outcome   `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   *string   `json:"message,omitempty"`
}

func (r BatchResponse) Validate() error {
	if strings.TrimSpace(r.BatchID) == "" {
		return fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if !r.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid outcome %q", domain.ErrValidation, r.Outcome)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", domain.ErrValidation)
	}
	return nil
}

// PrintResponse reports the outcome of one processing step for a single
// print request.
type PrintResponse struct {
	RequestID string    `json:"requestId"`
	Step      Step      `json:"statusStep"`
	Outcome   Outcome   `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   *string   `json:"message,omitempty"`
}

func (r PrintResponse) Validate() error {
	if strings.TrimSpace(r.RequestID) == "" {
		return fmt.Errorf("%w: request id is required", domain.ErrValidation)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", domain.ErrValidation)
	}
	return nil
}

// ResponseFile is the payload of one file the provider deposits in the
// outbound directory.
type ResponseFile struct {
	BatchResponses []BatchResponse `json:"batchResponses"`
	PrintResponses []PrintResponse `json:"printResponses"`
}

// StatusFor maps a (step, outcome) pair to the print request status it
// implies. Any pair outside the table is a protocol violation: the error
// names both values and the response must not be mapped to a guessed status.
func StatusFor(step Step, outcome Outcome) (domain.Status, error) {
	switch {
	case step == StepProcessed && outcome == OutcomeSuccess:
		return domain.StatusValidatedByPrintProvider, nil
	case step == StepProcessed && outcome == OutcomeFailure:
		return domain.StatusValidationFailed, nil
	case step == StepInProduction && outcome == OutcomeSuccess:
		return domain.StatusInProduction, nil
	case step == StepInProduction && outcome == OutcomeFailure:
		return domain.StatusProductionFailed, nil
	case step == StepDispatched && outcome == OutcomeSuccess:
		return domain.StatusDispatched, nil
	case step == StepDispatched && outcome == OutcomeFailure:
		return domain.StatusDispatchFailed, nil
	case step == StepNotDelivered && outcome == OutcomeFailure:
		return domain.StatusNotDelivered, nil
	default:
		return "", fmt.Errorf("%w: no status for step %q with outcome %q",
			domain.ErrProtocolViolation, step, outcome)
	}
}
