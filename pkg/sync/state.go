package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sdejongh/contentsync/pkg/models"
)

const statusFileVersion = 1

// StatusDocument is the operator-facing summary of the last sync run.
// It is overwritten after every run and never read back by the engine.
type StatusDocument struct {
	// Version for status file format compatibility
	Version int `json:"version"`

	RunID    string            `json:"run_id"`
	Mode     models.SyncMode   `json:"mode"`
	LastSync time.Time         `json:"last_sync"`
	Duration string            `json:"duration"`
	Status   models.SyncStatus `json:"status"`

	Counts models.Statistics `json:"counts"`

	Unreachable []models.StoreID `json:"unreachable,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`

	// Errors lists every failed record of the run
	Errors []RecordError `json:"per_record_errors"`
}

// RecordError is one failed write in the status document
type RecordError struct {
	Identity string         `json:"identity"`
	Title    string         `json:"title"`
	Target   models.StoreID `json:"target"`
	Op       models.OpKind  `json:"op"`
	Outcome  models.Outcome `json:"outcome"`
	Error    string         `json:"error"`
	At       time.Time      `json:"at"`
}

// NewStatusDocument summarizes report
func NewStatusDocument(report *models.SyncReport) *StatusDocument {
	doc := &StatusDocument{
		Version:     statusFileVersion,
		RunID:       report.RunID,
		Mode:        report.Mode,
		LastSync:    report.EndTime,
		Duration:    report.Duration.String(),
		Status:      report.Status,
		Counts:      report.Stats,
		Unreachable: report.Unreachable,
		Warnings:    report.Warnings,
		Errors:      []RecordError{},
	}
	for _, res := range report.Failures() {
		doc.Errors = append(doc.Errors, RecordError{
			Identity: res.Record.Identity(),
			Title:    res.Record.Title,
			Target:   res.Target,
			Op:       res.Op,
			Outcome:  res.Outcome,
			Error:    res.Error,
			At:       res.At,
		})
	}
	return doc
}

// StatusStore persists the status document at a fixed path
type StatusStore struct {
	path string
}

// NewStatusStore creates a store writing to path
func NewStatusStore(path string) *StatusStore {
	return &StatusStore{path: path}
}

// Path returns the status file path
func (s *StatusStore) Path() string {
	return s.path
}

// Save overwrites the status file with a summary of report
func (s *StatusStore) Save(report *models.SyncReport) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(NewStatusDocument(report), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	// Write atomically using temp file
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize status file: %w", err)
	}
	return nil
}

// Load reads the last status document. It returns nil without error when
// no run has been recorded yet.
func (s *StatusStore) Load() (*StatusDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var doc StatusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse status file: %w", err)
	}
	if doc.Version > statusFileVersion {
		return nil, fmt.Errorf("status file version %d is newer than supported version %d", doc.Version, statusFileVersion)
	}
	return &doc, nil
}

// ObserveRun saves the report unless it was a dry run
func (s *StatusStore) ObserveRun(_ context.Context, report *models.SyncReport) error {
	if report.DryRun {
		return nil
	}
	return s.Save(report)
}
