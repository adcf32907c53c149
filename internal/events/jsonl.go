// jsonl.go - Append-only JSONL audit sink.
//
// One event per line. The file is opened in append mode and never rewritten.

package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// JSONLSink appends every event to a JSONL file.
type JSONLSink struct {
	mu  sync.Mutex
	f   *os.File
	log zerolog.Logger
}

// NewJSONLSink creates or opens path; missing parent directories are created.
func NewJSONLSink(path string, log zerolog.Logger) (*JSONLSink, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{f: f, log: log.With().Str("component", "audit").Logger()}, nil
}

// Emit appends one line. Write failures are logged, never propagated: the
// triggering call has already committed.
func (s *JSONLSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(e.Kind)).Msg("could not encode audit event")
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return
	}
	if _, err := s.f.Write(data); err != nil {
		s.log.Error().Err(err).Str("kind", string(e.Kind)).Msg("could not append audit event")
	}
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
