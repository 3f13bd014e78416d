package core

// EventKind classifies a progress event.
type EventKind string

const (
	EventTaskStart   EventKind = "task_start"
	EventTaskDone    EventKind = "task_done"
	EventTaskFailed  EventKind = "task_failed"
	EventDiscard     EventKind = "discard"
	EventStageEmpty  EventKind = "stage_empty"
	EventStageDone   EventKind = "stage_done"
	EventRunFinished EventKind = "run_finished"
)

// Stage names used in events and results.
const (
	StageStaging   = "staging"
	StageSynthesis = "synthesis"
	StageEncoding  = "encoding"
	StageRun       = "run"
)

// Event is one discrete progress notification. Index and Total are set for task
// events; Finished is only true on the last event of a run.
type Event struct {
	RunID    string    `json:"run_id"`
	Stage    string    `json:"stage"`
	Kind     EventKind `json:"kind"`
	Message  string    `json:"message"`
	Index    int       `json:"index,omitempty"`
	Total    int       `json:"total,omitempty"`
	Finished bool      `json:"finished"`
}

// Reporter receives progress events. Implementations must be safe for
// concurrent use since pooled stages report from several goroutines.
type Reporter interface {
	Report(event Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(event Event)

// Report calls f(event).
func (f ReporterFunc) Report(event Event) {
	f(event)
}
