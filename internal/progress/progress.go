// Package progress delivers pipeline events to logs, terminals, channels and NATS.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/nats-io/nats.go"
)

const (
	logFmtEvent        = "[%s] %s: %s"
	lineFmtTask        = "[%d/%d] %s\n"
	lineFmtPlain       = "%s\n"
	logFmtPublishError = "Failed to publish progress event to %s: %v"
	logFmtMarshalError = "Failed to marshal progress event: %v"
)

// LogReporter writes events to a logger.
type LogReporter struct {
	log *logger.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log *logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

// Report logs event at a level matching its kind.
func (r *LogReporter) Report(event core.Event) {
	switch event.Kind {
	case core.EventTaskFailed:
		r.log.Error(logFmtEvent, event.Stage, event.Kind, event.Message)
	case core.EventRunFinished:
		r.log.System(logFmtEvent, event.Stage, event.Kind, event.Message)
	default:
		r.log.Info(logFmtEvent, event.Stage, event.Kind, event.Message)
	}
}

// WriterReporter prints one human-readable line per event.
type WriterReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterReporter creates a WriterReporter printing to out.
func NewWriterReporter(out io.Writer) *WriterReporter {
	return &WriterReporter{out: out}
}

// Report prints event. Write errors are ignored.
func (r *WriterReporter) Report(event core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Index > 0 && event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, lineFmtTask, event.Index, event.Total, event.Message)

		return
	}

	_, _ = fmt.Fprintf(r.out, lineFmtPlain, event.Message)
}

// ChannelReporter forwards events to a buffered channel for an embedding
// caller. Report blocks while the buffer is full, until Close.
type ChannelReporter struct {
	mu        sync.RWMutex
	events    chan core.Event
	done      chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewChannelReporter creates a ChannelReporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{events: make(chan core.Event, buffer), done: make(chan struct{})}
}

// Events returns the channel events are delivered on.
func (r *ChannelReporter) Events() <-chan core.Event {
	return r.events
}

// Report sends event. Events reported after Close, or blocked on a full buffer
// when Close is called, are dropped.
func (r *ChannelReporter) Report(event core.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.events <- event:
	case <-r.done:
	}
}

// Close closes the events channel. It is safe to call more than once.
func (r *ChannelReporter) Close() {
	// Releases blocked senders so the write lock can be taken.
	r.closeOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.events)
	}
}

// NatsReporter publishes events as JSON on a NATS subject.
type NatsReporter struct {
	natsConnection *nats.Conn
	subject        string
	log            *logger.Logger
}

// NewNatsReporter creates a NatsReporter.
func NewNatsReporter(natsConnection *nats.Conn, subject string, log *logger.Logger) *NatsReporter {
	return &NatsReporter{natsConnection: natsConnection, subject: subject, log: log}
}

// Report publishes event. Failures are logged; progress is best effort.
func (r *NatsReporter) Report(event core.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		r.log.Error(logFmtMarshalError, err)

		return
	}

	err = r.natsConnection.Publish(r.subject, data)
	if err != nil {
		r.log.Error(logFmtPublishError, r.subject, err)
	}
}

// Multi fans events out to several reporters in order. Nil entries are skipped.
type Multi []core.Reporter

// Report forwards event to every reporter.
func (m Multi) Report(event core.Event) {
	for _, reporter := range m {
		if reporter != nil {
			reporter.Report(event)
		}
	}
}
