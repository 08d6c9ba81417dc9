// Package runlog writes a per-run audit log for pipeline executions.
//
// Each run appends JSON lines to a file keyed by "<userID>-<slug>" under the
// data directory. The logger is a side channel: every method is safe to call
// on a nil *Logger, and logging failures never affect pipeline control flow.
package runlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger appends events for one pipeline run to a log file.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	runID string
}

type event struct {
	Time    string `json:"time"`
	RunID   string `json:"run_id"`
	Event   string `json:"event"`
	Step    int    `json:"step,omitempty"`
	Name    string `json:"name,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// New opens (or creates) the append-only log file for the given user and slug.
func New(dataDir, userID, slug string) (*Logger, error) {
	dir := filepath.Join(dataDir, "runlogs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating runlog directory: %w", err)
	}

	path := filepath.Join(dir, sanitize(userID)+"-"+sanitize(slug)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening runlog: %w", err)
	}

	return &Logger{file: f, path: path, runID: uuid.New().String()}, nil
}

// Path returns the log file location, or "" for a nil logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// LogInitialRequest records the request that started the run.
func (l *Logger) LogInitialRequest(request any) {
	l.write(event{Event: "pipeline_start", Payload: request})
}

// LogStepRequest records the outgoing payload of one step.
func (l *Logger) LogStepRequest(step int, name string, request any) {
	l.write(event{Event: "step_request", Step: step, Name: name, Payload: request})
}

// LogStepResponse records the response payload of one step.
func (l *Logger) LogStepResponse(step int, name string, response any) {
	l.write(event{Event: "step_response", Step: step, Name: name, Payload: response})
}

// LogStepComplete records that a step finished, with a short note.
func (l *Logger) LogStepComplete(step int, name, detail string) {
	l.write(event{Event: "step_complete", Step: step, Name: name, Detail: detail})
}

// LogError records a failure.
func (l *Logger) LogError(detail string) {
	l.write(event{Event: "error", Detail: detail})
}

// LogPipelineComplete records the terminal outcome of the run.
func (l *Logger) LogPipelineComplete(success bool, detail string) {
	l.write(event{Event: "pipeline_complete", Detail: fmt.Sprintf("success=%v %s", success, detail)})
}

// Close flushes and closes the log file.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) write(e event) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	e.Time = time.Now().UTC().Format(time.RFC3339)
	e.RunID = l.runID

	data, err := json.Marshal(e)
	if err != nil {
		// A payload that cannot marshal still deserves a trace line.
		data, _ = json.Marshal(event{Time: e.Time, RunID: e.RunID, Event: e.Event, Detail: "unmarshalable payload"})
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		log.Printf("runlog write failed: %v", err)
	}
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
