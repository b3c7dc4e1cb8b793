package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Sink records append-only flow audit entries. Recording never blocks or
// fails the caller: a broken sink degrades to process logs.
type Sink interface {
	Record(flowID string, event string, data map[string]any, level string)
}

type entry struct {
	FlowID string         `json:"flow_id"`
	Event  string         `json:"event"`
	Level  string         `json:"level"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

// LogSink writes audit entries to the process log.
type LogSink struct{}

func (LogSink) Record(flowID string, event string, data map[string]any, level string) {
	logger.Info().
		Str("flow_id", flowID).
		Str("event", event).
		Str("level", level).
		Interface("data", data).
		Msg("audit")
}

// FileSink appends JSON-lines audit entries to a file. Write errors fall back
// to the log.
type FileSink struct {
	mu   sync.Mutex
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Record(flowID string, event string, data map[string]any, level string) {
	line, err := json.Marshal(entry{
		FlowID: flowID,
		Event:  event,
		Level:  level,
		Data:   data,
		At:     time.Now().UTC(),
	})
	if err != nil {
		logger.Warn().Err(err).Str("flow_id", flowID).Msg("audit entry not serializable")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("audit file unavailable")
		LogSink{}.Record(flowID, event, data, level)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("audit append failed")
	}
}
