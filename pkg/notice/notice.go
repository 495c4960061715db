// Package notice carries recoverable, user-facing notifications out of the
// core (failed background writes, expired authorization, rejected gestures).
package notice

import (
	"sync"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/logger"
)

type Notice struct {
	// Kind is errs.Kind of Err.
	Kind    string
	Message string
	Err     error
}

type Sink interface {
	Notify(Notice)
}

// From builds a notice for err.
func From(message string, err error) Notice {
	return Notice{Kind: errs.Kind(err), Message: message, Err: err}
}

// Log writes notices to the application log; transient ones at debug level.
type Log struct{}

func (Log) Notify(n Notice) {
	if n.Kind == "transient" {
		logger.Debug(n.Message, "error", n.Err)
		return
	}
	logger.Warn(n.Message, "kind", n.Kind, "error", n.Err)
}

// Recorder keeps every notice in memory, for UIs that poll and for tests.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Drain returns and clears the recorded notices.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Tee forwards every notice to each sink.
type Tee []Sink

func (t Tee) Notify(n Notice) {
	for _, s := range t {
		if s != nil {
			s.Notify(n)
		}
	}
}
