package queue

import (
	"fmt"
	"strings"

	"github.com/electoral-digital/print-engine/internal/domain"
)

// ProcessBatchMessage asks a worker to assemble and send one batch.
type ProcessBatchMessage struct {
	BatchID string `json:"batchId"`
}

func (m ProcessBatchMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	return nil
}

func (m ProcessBatchMessage) Key() string { return m.BatchID }

// ProcessResponseFileMessage asks a worker to parse and apply one claimed
// provider response file.
type ProcessResponseFileMessage struct {
	Filename string `json:"filename"`
}

func (m ProcessResponseFileMessage) Validate() error {
	if strings.TrimSpace(m.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}

func (m ProcessResponseFileMessage) Key() string { return m.Filename }

// StatisticsUpdateMessage tells the statistics service that a source
// application's certificate state changed.
type StatisticsUpdateMessage struct {
	SourceType      domain.SourceType `json:"sourceType"`
	SourceReference string            `json:"sourceReference"`
	GssCode         string            `json:"gssCode"`
}

func (m StatisticsUpdateMessage) Validate() error {
	if !m.SourceType.IsValid() {
		return fmt.Errorf("invalid source type %q", m.SourceType)
	}
	if strings.TrimSpace(m.SourceReference) == "" {
		return fmt.Errorf("sourceReference is required")
	}
	if strings.TrimSpace(m.GssCode) == "" {
		return fmt.Errorf("gssCode is required")
	}
	return nil
}

func (m StatisticsUpdateMessage) Key() string { return m.SourceReference }
