package emit

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogEmitter implements Emitter on top of zerolog, writing one structured
// log line per event.
//
// Text mode uses zerolog's ConsoleWriter for human-readable output during
// development; JSON mode writes zerolog's native line-delimited JSON,
// suitable for log aggregation.
type LogEmitter struct {
	logger zerolog.Logger
}

// NewLogEmitter creates a LogEmitter writing to writer. If writer is nil,
// os.Stdout is used. jsonMode selects JSON-lines output; otherwise events
// are rendered through zerolog's console writer.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	var out io.Writer = writer
	if !jsonMode {
		out = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}
	return &LogEmitter{logger: zerolog.New(out).With().Timestamp().Logger()}
}

func (l *LogEmitter) Emit(event Event) {
	l.log(event)
}

func (l *LogEmitter) log(event Event) {
	level := zerolog.InfoLevel
	if _, hasErr := event.Meta["error"]; hasErr {
		level = zerolog.ErrorLevel
	}

	ev := l.logger.WithLevel(level).
		Str("flow_id", event.RunID).
		Int("depth", event.Step).
		Str("path", event.NodeID)

	for k, v := range event.Meta {
		ev = ev.Interface(k, v)
	}
	ev.Msg(event.Msg)
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.log(event)
	}
	return nil
}

// Flush is a no-op: zerolog writes synchronously unless wrapped in a
// buffered writer the caller manages directly.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
