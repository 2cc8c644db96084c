package repl

import (
	"log/slog"
	"sync"
	"time"

	"github.com/asheshgoplani/repl-deck/internal/logging"
)

var registryLog = logging.ForComponent(logging.CompRegistry)

// Registry tracks the set of live sessions, the default (oldest live)
// session, and name-collision suffixing. Mutation goes through the
// Controller only; the mutex protects concurrent reads from front-end
// goroutines. Tests construct isolated registries rather than sharing
// ambient process-wide state.
type Registry struct {
	mu      sync.Mutex
	byName  map[string][]*Session
	all     []*Session // creation order
	def     *Session
	counter uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string][]*Session),
	}
}

// FindOrCreate returns the live session with the given display name, or
// spawns a new one via the spawn callback when none is alive. The bool
// reports whether a session was created. The new session takes the bare
// display name unless a dead-but-unreclaimed entry still holds it, in
// which case the next free "<n>" suffix is used.
//
// Invariant: at most one live session per (name, suffix) pair; the
// registry never holds two entries for the same running process.
func (r *Registry) FindOrCreate(name string, spawn func() (*Process, error)) (*Session, bool, error) {
	r.mu.Lock()

	for _, s := range r.byName[name] {
		if s.Alive() {
			r.mu.Unlock()
			return s, false, nil
		}
	}

	sess, err := r.createLocked(name, spawn)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Create always spawns a new session under name, suffixing past any
// existing entry (live or dead) so identifiers stay unique.
func (r *Registry) Create(name string, spawn func() (*Process, error)) (*Session, error) {
	r.mu.Lock()
	return r.createLocked(name, spawn)
}

// createLocked spawns and links a new session. Caller holds the mutex;
// it is released before the exit callback is registered.
func (r *Registry) createLocked(name string, spawn func() (*Process, error)) (*Session, error) {
	proc, err := spawn()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	seq := 1
	for _, s := range r.byName[name] {
		if s.Seq >= seq {
			seq = s.Seq + 1
		}
	}

	r.counter++
	sess := &Session{
		Name:      name,
		Seq:       seq,
		CreatedAt: time.Now(),
		order:     r.counter,
		proc:      proc,
	}
	r.byName[name] = append(r.byName[name], sess)
	r.all = append(r.all, sess)

	if r.def == nil || !r.def.Alive() {
		r.def = sess
	}
	r.mu.Unlock()

	// Unlink automatically when the process dies. Registered outside the
	// lock: the callback fires immediately if the process already exited,
	// and it takes the registry lock itself.
	proc.setOnExit(func() {
		r.Remove(sess)
	})

	registryLog.Info("session_created",
		slog.String("id", sess.Identifier()),
		slog.Int("pid", proc.Pid()))

	return sess, nil
}

// Remove unlinks a session whose process has transitioned to Exited or
// Killed. If it was the default, the next-oldest surviving session takes
// over, or the default becomes empty.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byName[sess.Name]
	for i, s := range list {
		if s == sess {
			r.byName[sess.Name] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.byName[sess.Name]) == 0 {
		delete(r.byName, sess.Name)
	}
	for i, s := range r.all {
		if s == sess {
			r.all = append(r.all[:i], r.all[i+1:]...)
			break
		}
	}

	if r.def == sess || (r.def != nil && !r.def.Alive()) {
		r.def = r.oldestAliveLocked()
	}

	registryLog.Info("session_removed", slog.String("id", sess.Identifier()))
}

// oldestAliveLocked returns the live session with the lowest creation
// order, or nil. Caller holds the mutex.
func (r *Registry) oldestAliveLocked() *Session {
	var oldest *Session
	for _, s := range r.all {
		if !s.Alive() {
			continue
		}
		if oldest == nil || s.order < oldest.order {
			oldest = s
		}
	}
	return oldest
}

// Default returns the designated default session: the oldest still-live
// one, or nil when none remain.
func (r *Registry) Default() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.def != nil && !r.def.Alive() {
		r.def = r.oldestAliveLocked()
	}
	return r.def
}

// Get looks a session up by its unique identifier ("name" or "name<2>").
func (r *Registry) Get(identifier string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.all {
		if s.Identifier() == identifier {
			return s
		}
	}
	return nil
}

// List returns all tracked sessions in creation order.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.all))
	copy(out, r.all)
	return out
}

// Reap sweeps dead sessions out of the registry and returns how many
// were removed. Dead sessions normally unlink themselves on exit; Reap
// covers entries whose callback never fired (e.g. spawned before a
// crashed front end handed the registry over).
func (r *Registry) Reap() int {
	r.mu.Lock()
	var dead []*Session
	for _, s := range r.all {
		if !s.Alive() {
			dead = append(dead, s)
		}
	}
	r.mu.Unlock()

	for _, s := range dead {
		r.Remove(s)
	}
	return len(dead)
}
