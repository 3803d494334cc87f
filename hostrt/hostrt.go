// Package hostrt stands in for the hosting runtime the controller core
// is embedded in: it hands out named loggers, broadcasts the
// "going up" signal new components wait on before they start serving
// traffic, and exposes the "running" flag ListenerLoop polls to decide
// when to exit. A real deployment has exactly one hostrt.Runtime,
// constructed by cmd/ofcored and threaded through the rest of the
// process.
package hostrt

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface the core depends on. *logrus.Entry
// satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	rootOnce sync.Once
	root     *logrus.Logger
)

func rootLogger() *logrus.Logger {
	rootOnce.Do(func() {
		root = logrus.New()
	})
	return root
}

// SetOutput sets the level of the shared root logger, as chosen by
// cmd/ofcored's --log-level flag. The logger's output writer is left
// unchanged.
func SetOutput(level logrus.Level) {
	rootLogger().SetLevel(level)
}

// GetLogger returns a Logger scoped to name, for components that want
// their own log field without holding onto a shared root logger.
func GetLogger(name string) Logger {
	return rootLogger().WithField("component", name)
}

// GoingUpEvent is raised on Runtime exactly once, when the runtime
// transitions from not-yet-running to running.
type GoingUpEvent struct{}

// Runtime is the minimal "hosting core" surface the controller depends
// on: a running flag pollable by the ListenerLoop, and a one-shot
// GoingUp broadcast that lets components delay startup work (e.g.
// opening the listening socket) until the runtime says it's ready.
type Runtime struct {
	mu        sync.Mutex
	listeners []func(GoingUpEvent)
	running   atomic.Bool
}

// NewRuntime returns a Runtime that is not yet running.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// AddListener registers h to run when GoingUp is signaled. If the
// runtime is already up, h runs synchronously before AddListener
// returns, so late subscribers never miss the transition.
func (r *Runtime) AddListener(h func(GoingUpEvent)) {
	r.mu.Lock()
	if r.running.Load() {
		r.mu.Unlock()
		h(GoingUpEvent{})
		return
	}
	r.listeners = append(r.listeners, h)
	r.mu.Unlock()
}

// GoingUp flips the running flag and fires every registered listener,
// in registration order. Calling it more than once is a no-op after
// the first call.
func (r *Runtime) GoingUp() {
	r.mu.Lock()
	if r.running.Load() {
		r.mu.Unlock()
		return
	}
	r.running.Store(true)
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	for _, h := range listeners {
		h(GoingUpEvent{})
	}
}

// Running reports whether GoingUp has been called and GoingDown has
// not since.
func (r *Runtime) Running() bool {
	return r.running.Load()
}

// GoingDown flips the running flag off; ListenerLoop treats this as a
// signal to exit at its next iteration.
func (r *Runtime) GoingDown() {
	r.running.Store(false)
}
