package observability

import (
	"sync"
	"time"
)

// Scheduler-level categories. Step-level messages use the step's environment
// tag as their category.
const (
	CategorySystem = "system"
	CategoryError  = "error"
)

// Sink is an append-only channel of (message, category) pairs. Entries must
// be recorded in emission order.
type Sink interface {
	Emit(message, category string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(message, category string)

func (f SinkFunc) Emit(message, category string) { f(message, category) }

// Discarding is a Sink that drops every message.
var Discarding Sink = SinkFunc(func(string, string) {})

// Entry is one recorded sink message.
type Entry struct {
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Category string    `json:"category"`
}

// Recorder keeps every emitted message in order.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(message, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Time: time.Now(), Message: message, Category: category})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the recorded messages without metadata.
func (r *Recorder) Messages() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// Tee fans every message out to each sink in order. Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(message, category string) {
		for _, s := range live {
			s.Emit(message, category)
		}
	})
}
