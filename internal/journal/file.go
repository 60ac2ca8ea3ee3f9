package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileJournal appends events as JSON lines. It is safe for concurrent use.
type FileJournal struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	enc  *json.Encoder
	path string
}

// NewFileJournal opens (or creates) path in append mode.
func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	return &FileJournal{f: f, w: w, enc: json.NewEncoder(w), path: path}, nil
}

// Record writes the event and flushes it to the file.
func (j *FileJournal) Record(ctx context.Context, event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.enc.Encode(&event); err != nil {
		return fmt.Errorf("failed to encode journal event: %w", err)
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("failed to write journal %s: %w", j.path, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.w.Flush()
	return j.f.Close()
}

// ReadFile reads every event from a journal file. Lines that fail to decode
// are skipped.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			out = append(out, e)
		}
	}
	return out, scanner.Err()
}
