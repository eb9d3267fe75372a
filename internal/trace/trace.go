// Package trace records sweep progress as JSON lines, one line per
// temperature step, so long sweeps can be followed and inspected afterwards.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/gbseg/internal/segregation"
)

// Entry is one finished temperature step.
type Entry struct {
	Index       int     `json:"index"`
	Temperature float64 `json:"temperature"`
	Status      string  `json:"status"`

	// Score is nil when every candidate failed to evaluate.
	Score       *float64 `json:"score,omitempty"`
	Seed        string   `json:"seed"`
	Evaluations int      `json:"evaluations"`

	// Composition is the full composition, nil for undetermined steps.
	Composition []float64 `json:"composition,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FromEvent builds the trace entry of a step event.
func FromEvent(ev segregation.StepEvent) Entry {
	o := ev.Outcome
	e := Entry{
		Index:       ev.Index,
		Temperature: o.Temperature,
		Status:      o.Status.String(),
		Seed:        o.Seed.String(),
		Evaluations: o.Evaluations,
		Timestamp:   time.Now(),
	}
	if !math.IsInf(o.Score, 0) && !math.IsNaN(o.Score) {
		score := o.Score
		e.Score = &score
	}
	if ev.Series != nil {
		if full, ok := ev.Series.Full(ev.Index); ok {
			e.Composition = full
		}
	}
	return e
}

// Writer writes trace entries to a JSONL file.
// It buffers output and is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewWriter creates the trace file at path, creating parent directories.
// If append is true, new entries are appended to an existing file.
func NewWriter(path string, append bool) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends an entry. It reaches the file on Flush or Close.
func (w *Writer) Write(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Observer returns a step observer writing and flushing one entry per step.
// Write failures are logged; they never interrupt the sweep.
func (w *Writer) Observer() segregation.Observer {
	return func(ev segregation.StepEvent) {
		if err := w.Write(FromEvent(ev)); err != nil {
			slog.Warn("Failed to trace step", "path", w.path, "error", err)
			return
		}
		if err := w.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "path", w.path, "error", err)
		}
	}
}

// Flush writes buffered entries to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the trace file.
func (w *Writer) Path() string {
	return w.path
}

// Reader reads trace entries from a JSONL stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Read returns the next entry, or io.EOF when the stream is exhausted.
func (r *Reader) Read() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads every remaining entry.
func (r *Reader) ReadAll() ([]Entry, error) {
	var entries []Entry
	for {
		entry, err := r.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

// ReadFile reads every entry of the trace file at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}
