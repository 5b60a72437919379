package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/workflow"
)

var errSessionNotFound = common.NewAppError("SESSION_NOT_FOUND", "session not found", common.ErrNotFound)

type entry struct {
	session  *workflow.Session
	lastSeen time.Time
}

// Registry holds the live dashboard sessions by id.
type Registry struct {
	deps workflow.Deps
	now  func() time.Time

	// newExtractor, when set, gives every session its own extractor so one
	// session's pending extraction does not block another's.
	newExtractor func() (extract.Extractor, error)

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(deps workflow.Deps) *Registry {
	return &Registry{deps: deps, now: time.Now, sessions: make(map[string]*entry)}
}

// Create starts a new session in Idle.
func (r *Registry) Create() (*workflow.Session, error) {
	deps := r.deps
	if r.newExtractor != nil {
		x, err := r.newExtractor()
		if err != nil {
			return nil, err
		}
		deps.Extractor = x
	}
	id := uuid.NewString()
	sess := workflow.NewSession(id, deps)

	r.mu.Lock()
	r.sessions[id] = &entry{session: sess, lastSeen: r.now()}
	r.mu.Unlock()
	return sess, nil
}

// Get returns the session with id and marks it as seen.
func (r *Registry) Get(id string) (*workflow.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	e.lastSeen = r.now()
	return e.session, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle. Sessions with an upload
// or extraction in flight are kept. It returns the number removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.lastSeen.After(cutoff) {
			continue
		}
		switch e.session.State() {
		case workflow.Uploading, workflow.Generating:
			continue
		}
		delete(r.sessions, id)
		n++
	}
	return n
}
