// Package session records pipeline runs as JSONL transcripts, one file per
// session, one line per event. The transcript doubles as the command audit
// sink for the shell runner.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deskfix/internal/types"
)

// entry is one transcript line.
type entry struct {
	Timestamp string               `json:"ts"`
	SessionID string               `json:"session_id"`
	Kind      string               `json:"kind"`
	Issue     string               `json:"issue,omitempty"`
	Stage     int                  `json:"stage,omitempty"`
	Status    string               `json:"status,omitempty"`
	Message   string               `json:"message,omitempty"`
	Command   *types.CommandResult `json:"command,omitempty"`
}

// Transcript appends session events to a JSONL file. It is safe for use from
// the pipeline goroutine and the shell runner concurrently.
type Transcript struct {
	mu     sync.Mutex
	id     string
	file   *os.File
	enc    *json.Encoder
	logger *zap.Logger
}

// NewTranscript opens a transcript file named by a fresh session ID under
// dir, creating the directory if needed.
func NewTranscript(dir string, logger *zap.Logger) (*Transcript, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}

	logger.Info("transcript opened", zap.String("session_id", id), zap.String("path", path))
	return &Transcript{id: id, file: file, enc: json.NewEncoder(file), logger: logger}, nil
}

// SessionID returns the session's unique ID.
func (t *Transcript) SessionID() string {
	return t.id
}

// RecordCommand implements the shell audit sink.
func (t *Transcript) RecordCommand(result types.CommandResult) {
	t.write(entry{Kind: "command", Command: &result})
}

// RecordIssue marks the start of a pipeline run.
func (t *Transcript) RecordIssue(issueText string, stage int) {
	t.write(entry{Kind: "issue", Issue: issueText, Stage: stage})
}

// RecordOutcome marks the end of a pipeline run.
func (t *Transcript) RecordOutcome(status, message string, stage int) {
	t.write(entry{Kind: "outcome", Status: status, Message: message, Stage: stage})
}

func (t *Transcript) write(e entry) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	e.SessionID = t.id

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	if err := t.enc.Encode(e); err != nil {
		t.logger.Warn("transcript write failed", zap.Error(err))
	}
}

// Close flushes and closes the transcript file. Writes after Close are
// dropped.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
