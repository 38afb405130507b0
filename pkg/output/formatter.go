package output

import (
	"io"

	"github.com/sdejongh/contentsync/pkg/models"
)

// Progress update types
const (
	UpdatePhase       = "phase"        // the run entered Phase
	UpdateWriteStart  = "write_start"  // a write plan of Total operations starts against Target
	UpdateRecordDone  = "record_done"  // one operation finished (Current of Total)
	UpdateRecordError = "record_error" // one operation failed
	UpdateWriteEnd    = "write_end"    // the write plan against Target is finished
)

// ProgressUpdate represents a progress notification during a run
type ProgressUpdate struct {
	Type     string
	Phase    models.Phase
	Target   models.StoreID
	Identity string
	Current  int
	Total    int
	Error    error
}

// Formatter defines the interface for output formatting
// Implementations include human-readable, JSON and progress bar formatters
type Formatter interface {
	// Start initializes the formatter for a new run
	Start(writer io.Writer, mode models.SyncMode, dryRun bool) error

	// Progress reports progress during the run
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays the run summary
	Complete(report *models.SyncReport) error

	// Error reports an error that stopped the run
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// Null discards all output
type Null struct{}

func (Null) Start(io.Writer, models.SyncMode, bool) error { return nil }
func (Null) Progress(ProgressUpdate) error                { return nil }
func (Null) Complete(*models.SyncReport) error            { return nil }
func (Null) Error(error) error                            { return nil }
func (Null) Name() string                                 { return "null" }
