package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/contentsync/pkg/models"
)

// barTemplate renders one write plan: target, counters, bar, percent
const barTemplate = `{{string . "prefix"}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{string . "suffix"}}`

// ProgressFormatter shows a progress bar per write plan and the human
// summary on completion
type ProgressFormatter struct {
	mu        sync.Mutex
	writer    io.Writer
	human     *HumanFormatter
	bar       *pb.ProgressBar
	failed    int
	termWidth int
	startTime time.Time
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{human: NewHumanFormatter()}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// Start initializes the formatter
func (f *ProgressFormatter) Start(writer io.Writer, mode models.SyncMode, dryRun bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.startTime = time.Now()

	// Detect terminal width to keep the bar on one line
	if file, ok := writer.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			f.termWidth = width
		}
	}
	if f.termWidth == 0 {
		f.termWidth = 100
	}

	return f.human.Start(writer, mode, dryRun)
}

// Progress advances the bar of the current write plan
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch update.Type {
	case UpdateWriteStart:
		f.finishBar()
		if update.Total == 0 {
			return nil
		}
		f.failed = 0
		f.bar = pb.ProgressBarTemplate(barTemplate).New(update.Total)
		f.bar.SetWriter(f.writer)
		f.bar.SetMaxWidth(f.termWidth)
		f.bar.Set("prefix", fmt.Sprintf("store %s", update.Target))
		f.bar.Start()

	case UpdateRecordDone, UpdateRecordError:
		if f.bar == nil {
			return nil
		}
		if update.Type == UpdateRecordError {
			f.failed++
			f.bar.Set("suffix", fmt.Sprintf("%d failed", f.failed))
		}
		f.bar.SetCurrent(int64(update.Current))

	case UpdateWriteEnd:
		f.finishBar()
	}
	return nil
}

func (f *ProgressFormatter) finishBar() {
	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
}

// Complete displays the final summary
func (f *ProgressFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	f.finishBar()
	elapsed := formatDuration(time.Since(f.startTime))
	f.mu.Unlock()

	if err := f.human.Complete(report); err != nil {
		return err
	}
	fmt.Fprintf(f.writer, "Elapsed: %s\n", elapsed)
	return nil
}

// Error reports an error
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	f.finishBar()
	f.mu.Unlock()
	return f.human.Error(err)
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

// New returns the formatter for an output format. Progress bars are used
// for human output when progress is requested and w is a terminal.
func New(format string, progress bool, w io.Writer) (Formatter, error) {
	switch format {
	case "", "human":
		if progress && IsTerminal(w) {
			return NewProgressFormatter(), nil
		}
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, &models.ValidationError{Field: "output.format", Message: "unknown output format: " + format}
	}
}
