package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sdejongh/contentsync/pkg/models"
)

// JSONFormatter writes the full run report as a single JSON document,
// for automation and scripting
type JSONFormatter struct {
	writer io.Writer
	now    func() time.Time
	events []JSONEvent
}

// JSONEvent represents a notable event recorded during the run
type JSONEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
}

// JSONRecordErrorData is the data of a record_error event
type JSONRecordErrorData struct {
	Identity string         `json:"identity"`
	Target   models.StoreID `json:"target"`
	Error    string         `json:"error"`
}

// JSONReport is the document written on completion
type JSONReport struct {
	*models.SyncReport
	Summary    string      `json:"summary"`
	DurationMs int64       `json:"duration_ms"`
	Events     []JSONEvent `json:"events,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		now:    time.Now,
		events: make([]JSONEvent, 0),
	}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, mode models.SyncMode, dryRun bool) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.events = append(f.events, JSONEvent{
		Timestamp: f.now(),
		Type:      "start",
		Data:      map[string]any{"mode": mode, "dry_run": dryRun},
	})
	return nil
}

// Progress keeps phase changes and record errors; the output stays a single
// parseable document written by Complete
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	switch update.Type {
	case UpdatePhase:
		f.events = append(f.events, JSONEvent{Timestamp: f.now(), Type: "phase", Data: update.Phase})
	case UpdateRecordError:
		data := JSONRecordErrorData{Identity: update.Identity, Target: update.Target}
		if update.Error != nil {
			data.Error = update.Error.Error()
		}
		f.events = append(f.events, JSONEvent{Timestamp: f.now(), Type: "record_error", Data: data})
	}
	return nil
}

// Complete writes the report as JSON
func (f *JSONFormatter) Complete(report *models.SyncReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}

	f.events = append(f.events, JSONEvent{Timestamp: f.now(), Type: "complete", Data: report.Status})

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(JSONReport{
		SyncReport: report,
		Summary:    SummaryLine(report),
		DurationMs: report.Duration.Milliseconds(),
		Events:     f.events,
	})
}

// Error writes a JSON error document
func (f *JSONFormatter) Error(err error) error {
	if f.writer == nil {
		f.writer = os.Stdout
	}
	f.events = append(f.events, JSONEvent{
		Timestamp: f.now(),
		Type:      "error",
		Data:      map[string]string{"error": err.Error()},
	})
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{"error": err.Error(), "events": f.events})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
