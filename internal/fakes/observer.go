package fakes

import (
	"sync"

	"github.com/imamik/stackzner/internal/deploy"
)

// RecordingObserver captures emitted events for test assertions.
type RecordingObserver struct {
	mu     sync.Mutex
	events []deploy.Event
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) Printf(string, ...interface{}) {}

func (o *RecordingObserver) Event(event deploy.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *RecordingObserver) Progress(string, int, int) {}

// Events returns a copy of everything recorded so far.
func (o *RecordingObserver) Events() []deploy.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]deploy.Event(nil), o.events...)
}

// EventsOf returns the recorded events of one type, in emission order.
func (o *RecordingObserver) EventsOf(t deploy.EventType) []deploy.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []deploy.Event
	for _, e := range o.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
