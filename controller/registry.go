package controller

import (
	"fmt"
	"sync"

	"github.com/flowbridge/ofcore/hostrt"
)

// Registry tracks the names of Server instances launched within one
// process, implementing the launch(port, address, name) naming rule: a
// caller-supplied name that's already taken is rejected (warn and
// return nothing), while an auto-generated name is disambiguated with
// a "-2", "-3", ... suffix so that launching several unnamed
// controllers in one process just works.
type Registry struct {
	mu    sync.Mutex
	taken map[string]int
	log   hostrt.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{taken: make(map[string]int), log: hostrt.GetLogger("controller.registry")}
}

// reserve claims name for a new Server. If explicit is true, the
// caller asked for this exact name and a collision is refused
// outright. Otherwise name is a base the registry may suffix to make
// unique.
func (r *Registry) reserve(name string, explicit bool) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if explicit {
		if _, ok := r.taken[name]; ok {
			r.log.Warnf("launch: name %q already in use", name)
			return "", false
		}
		r.taken[name] = 1
		return name, true
	}

	n := r.taken[name]
	r.taken[name] = n + 1
	if n == 0 {
		r.taken[name] = 1
		return name, true
	}

	candidate := fmt.Sprintf("%s-%d", name, n+1)
	for {
		if _, ok := r.taken[candidate]; !ok {
			r.taken[candidate] = 1
			return candidate, true
		}
		n++
		candidate = fmt.Sprintf("%s-%d", name, n+1)
	}
}

// DefaultName is the base name Launch uses when a caller doesn't
// supply one.
const DefaultName = "ofcore"

// Launch resolves a unique component name (see reserve) and, on
// success, constructs and returns a not-yet-listening Server bound to
// that name. A name collision on an explicitly requested name yields
// (nil, nil) — warn and return null — not an error, treating it as a
// caller mistake to log and move past rather than a fatal condition.
func (r *Registry) Launch(cfg Config, arbiter Arbiter, rt *hostrt.Runtime, metrics *Metrics) (*Server, error) {
	explicit := cfg.Name != ""
	base := cfg.Name
	if base == "" {
		base = DefaultName
	}

	name, ok := r.reserve(base, explicit)
	if !ok {
		return nil, nil
	}

	cfg.Name = name
	return NewServer(cfg, arbiter, rt, metrics), nil
}
