// Package worker runs batch tasks: a bounded pool for synthesis and encoding
// jobs, and a NATS worker that turns batch requests into pipeline runs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/table"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	// ErrInvalidRequest indicates a batch request with a missing or bad field.
	ErrInvalidRequest = errors.New("invalid batch request")
	// ErrNoRows indicates a source table without data rows.
	ErrNoRows = errors.New("source table has no rows")
)

const (
	errFmtSubscribe   = "failed to subscribe to subject %s: %w"
	errFmtDrain       = "failed to drain subscription: %w"
	errFmtUnmarshal   = "failed to unmarshal batch request: %w"
	errFmtMissing     = "%w: %s is required"
	errFmtFormat      = "%w: unsupported format %q"
	errFmtDownload    = "failed to download table for key '%s': %w"
	errFmtReadOutput  = "failed to read encoded file %s: %w"
	errFmtUpload      = "failed to upload audio data for key '%s': %w"
	errFmtMarshal     = "failed to marshal %s: %w"
	errFmtPublish     = "failed to publish to %s: %w"
	errFmtRespond     = "failed to publish reply: %w"
	logFmtReceived    = "Received batch request %s for %s (%d rows)"
	logFmtRejected    = "Rejected batch request: %v"
	logFmtFailed      = "Batch %s failed: %v"
	logFmtCompleted   = "Batch %s completed: %d files uploaded, %d failed"
	logFmtReplyFailed = "Failed to reply to batch %s: %v"
)

// BatchRequest asks the service to synthesize one table stored in the object store.
type BatchRequest struct {
	Header       events.EventHeader `json:"header"`
	CSVKey       string             `json:"csvKey"`
	TextTemplate string             `json:"textTemplate"`
	NameTemplate string             `json:"nameTemplate"`
	// Voice, Format and Delimiter fall back to the service configuration when empty.
	Voice     string `json:"voice,omitempty"`
	Format    string `json:"format,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
	Pooled    bool   `json:"pooled,omitempty"`
}

// Validate checks the required fields and the optional overrides.
func (r BatchRequest) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"csvKey", r.CSVKey},
		{"textTemplate", r.TextTemplate},
		{"nameTemplate", r.NameTemplate},
	}

	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf(errFmtMissing, ErrInvalidRequest, field.name)
		}
	}

	if r.Format != "" && !ttsutils.IsValidAudioFile("x."+r.Format) {
		return fmt.Errorf(errFmtFormat, ErrInvalidRequest, r.Format)
	}

	_, err := table.ParseDelimiter(r.Delimiter)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return nil
}

// BatchReply is the response to a BatchRequest.
type BatchReply struct {
	Header    events.EventHeader `json:"header"`
	RunID     string             `json:"runId"`
	AudioKeys []string           `json:"audioKeys"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Error     string             `json:"error,omitempty"`
}

// BatchJob is a decoded request ready to run.
type BatchJob struct {
	RunID        string
	Rows         []core.Row
	TextTemplate string
	NameTemplate string
	Voice        string
	Format       string
	Pooled       bool
}

// BatchOutcome is what a finished batch produced.
type BatchOutcome struct {
	// Outputs are the paths of the encoded files.
	Outputs   []string
	Succeeded int
	Failed    int
}

// BatchRunner runs one batch to completion.
type BatchRunner interface {
	RunBatch(ctx context.Context, job BatchJob) (BatchOutcome, error)
}

// NatsWorker listens for batch requests on a NATS subject and processes them
// one at a time.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	audioSubject   string
	store          core.ObjectStore
	runner         BatchRunner
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Every uploaded file is
// announced on audioSubject.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject, audioSubject string,
	store core.ObjectStore,
	runner BatchRunner,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		audioSubject:   audioSubject,
		store:          store,
		runner:         runner,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf(errFmtSubscribe, w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf(errFmtDrain, drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(ctx context.Context, msg *nats.Msg) {
	request, err := parseRequest(msg.Data)
	if err != nil {
		w.log.Error(logFmtRejected, err)
		w.reply(msg, BatchReply{Header: request.Header, Error: err.Error()})

		return
	}

	reply, processErr := w.processBatch(ctx, request)
	if processErr != nil {
		w.log.Error(logFmtFailed, reply.RunID, processErr)
		reply.Error = processErr.Error()
	} else {
		w.log.System(logFmtCompleted, reply.RunID, len(reply.AudioKeys), reply.Failed)
	}

	w.reply(msg, reply)
}

func parseRequest(data []byte) (BatchRequest, error) {
	var request BatchRequest

	err := json.Unmarshal(data, &request)
	if err != nil {
		return request, fmt.Errorf(errFmtUnmarshal, err)
	}

	return request, request.Validate()
}

// processBatch downloads the table, runs it and uploads what was encoded.
func (w *NatsWorker) processBatch(ctx context.Context, request BatchRequest) (BatchReply, error) {
	reply := BatchReply{Header: request.Header, RunID: request.Header.WorkflowID}
	if reply.RunID == "" {
		reply.RunID = uuid.NewString()
	}

	data, err := w.store.Download(ctx, request.CSVKey)
	if err != nil {
		return reply, fmt.Errorf(errFmtDownload, request.CSVKey, err)
	}

	delimiter, _ := table.ParseDelimiter(request.Delimiter)

	source, err := table.Parse(data, delimiter)
	if err != nil {
		return reply, err
	}

	if source.Len() == 0 {
		return reply, ErrNoRows
	}

	w.log.Info(logFmtReceived, reply.RunID, request.CSVKey, source.Len())

	outcome, err := w.runner.RunBatch(ctx, BatchJob{
		RunID:        reply.RunID,
		Rows:         source.Rows,
		TextTemplate: request.TextTemplate,
		NameTemplate: request.NameTemplate,
		Voice:        request.Voice,
		Format:       request.Format,
		Pooled:       request.Pooled,
	})
	reply.Succeeded = outcome.Succeeded
	reply.Failed = outcome.Failed

	if err != nil {
		return reply, err
	}

	for i, output := range outcome.Outputs {
		audioKey, uploadErr := w.uploadOutput(ctx, reply.RunID, output)
		if uploadErr != nil {
			return reply, uploadErr
		}

		reply.AudioKeys = append(reply.AudioKeys, audioKey)

		publishErr := w.publishAudioCreated(request.Header, audioKey, i+1, len(outcome.Outputs))
		if publishErr != nil {
			return reply, publishErr
		}
	}

	return reply, nil
}

func (w *NatsWorker) uploadOutput(ctx context.Context, runID, output string) (string, error) {
	audioData, err := os.ReadFile(output)
	if err != nil {
		return "", fmt.Errorf(errFmtReadOutput, output, err)
	}

	audioKey := path.Join(runID, filepath.Base(output))

	err = w.store.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", fmt.Errorf(errFmtUpload, audioKey, err)
	}

	return audioKey, nil
}

func (w *NatsWorker) publishAudioCreated(header events.EventHeader, audioKey string, page, total int) error {
	header.EventID = uuid.NewString()
	header.Timestamp = time.Now()

	data, err := json.Marshal(&events.AudioChunkCreatedEvent{
		Header:     header,
		AudioKey:   audioKey,
		PageNumber: page,
		TotalPages: total,
	})
	if err != nil {
		return fmt.Errorf(errFmtMarshal, "audio created event", err)
	}

	err = w.natsConnection.Publish(w.audioSubject, data)
	if err != nil {
		return fmt.Errorf(errFmtPublish, w.audioSubject, err)
	}

	return nil
}

func (w *NatsWorker) reply(msg *nats.Msg, reply BatchReply) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err == nil {
		err = msg.Respond(data)
	}

	if err != nil {
		w.log.Error(logFmtReplyFailed, reply.RunID, fmt.Errorf(errFmtRespond, err))
	}
}
