package driver

import "time"

// Stage describes a phase of checking a file.
type Stage string

const (
	// StageParse is fixture loading.
	StageParse Stage = "parse"
	// StageCache is the disk cache lookup.
	StageCache Stage = "cache"
	// StageAnalyze is the borrow analysis proper.
	StageAnalyze Stage = "analyze"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a function (or for the whole module when
// Func is empty).
type Event struct {
	Module      string
	Func        string
	Stage       Stage
	Status      Status
	Err         error
	Elapsed     time.Duration
	Diagnostics int
	Cached      bool
}

// Key identifies the function an event is about.
func (e Event) Key() string {
	if e.Func == "" {
		return ""
	}
	return e.Module + "::" + e.Func
}

// ProgressSink consumes progress events. Events of different functions
// arrive from different goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
