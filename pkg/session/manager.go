package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/strixops/strix/internal/observability"
	"github.com/strixops/strix/pkg/process"
)

var (
	// ErrUnknownSession indicates the session id is not registered.
	ErrUnknownSession = errors.New("unknown session")

	// ErrSessionClosed indicates the session's process no longer accepts input.
	ErrSessionClosed = errors.New("session input is closed")
)

const (
	// DefaultRetention is how long exited sessions stay queryable before
	// eviction, leaving room for a final output poll.
	DefaultRetention = 5 * time.Minute

	// DefaultSweepInterval is how often the janitor evicts expired sessions.
	DefaultSweepInterval = 30 * time.Second

	sessionIDLength = 12
)

// State describes the lifecycle of a session's process.
type State string

// Sessions begin in StateStarting and move to StateRunning once the
// process produces its first output byte.
const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateExited   State = "exited"
)

// Info is a point-in-time snapshot of one session.
type Info struct {
	ID       string `json:"id"`
	Command  string `json:"command"`
	State    State  `json:"state"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// OutputChunk carries an incremental output read.
type OutputChunk struct {
	Data  string `json:"data"`
	Next  int64  `json:"next"`
	State State  `json:"state"`
}

type entry struct {
	mu       sync.Mutex
	id       string
	command  string
	handle   *process.Handle
	state    State
	exitCode *int
	endedAt  time.Time
	killed   bool
}

// refresh folds the process's exit status into the session state and
// promotes a starting session once output has arrived. Caller holds e.mu.
func (e *entry) refresh() {
	if e.state == StateExited {
		return
	}
	if code, exited := e.handle.PollExit(); exited {
		c := code
		e.exitCode = &c
		e.state = StateExited
		e.endedAt = time.Now()
		return
	}
	if e.state == StateStarting && e.handle.OutputSize() > 0 {
		e.state = StateRunning
	}
}

func (e *entry) info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresh()
	return Info{ID: e.id, Command: e.command, State: e.state, ExitCode: e.exitCode}
}

// Config holds manager configuration.
type Config struct {
	// Retention is how long exited sessions remain queryable.
	Retention time.Duration

	// SweepInterval is how often expired sessions are evicted.
	SweepInterval time.Duration

	// BufferLimit caps per-session retained output in bytes.
	BufferLimit int

	// WorkDir is the working directory for session processes.
	WorkDir string
}

// Manager owns the registry of running sessions. Create/Output/Input/Kill
// are safe to call concurrently; state is synchronized per session so
// unrelated sessions never block each other.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager creates a session manager and starts its eviction janitor.
func NewManager(cfg Config) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]*entry),
		stopCh:   make(chan struct{}),
	}

	go m.janitor()

	log.Info().
		Dur("retention", cfg.Retention).
		Int("buffer_limit", cfg.BufferLimit).
		Msg("Session manager initialized")

	return m
}

// Create starts a process for command and registers it. It returns the new
// session id immediately without waiting for the process to produce output.
func (m *Manager) Create(command string) (string, error) {
	id, err := gonanoid.New(sessionIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	handle, err := process.Start(command, process.Options{
		BufferLimit: m.cfg.BufferLimit,
		Dir:         m.cfg.WorkDir,
	})
	if err != nil {
		return "", err
	}

	e := &entry{
		id:      id,
		command: command,
		handle:  handle,
		state:   StateStarting,
	}

	m.mu.Lock()
	m.sessions[id] = e
	count := len(m.sessions)
	m.mu.Unlock()

	observability.SetActiveSessions(count)

	log.Info().Str("session_id", id).Str("command", command).Msg("Session created")

	return id, nil
}

// List returns a snapshot of all registered sessions, ordered by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Output returns output accumulated since offset from, plus the offset to
// resume from, so repeated polling never re-delivers old data.
func (m *Manager) Output(id string, from int64) (OutputChunk, error) {
	e, err := m.lookup(id)
	if err != nil {
		return OutputChunk{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresh()

	data, next := e.handle.Output(from)
	return OutputChunk{Data: string(data), Next: next, State: e.state}, nil
}

// Input writes text to the session's stdin.
func (m *Manager) Input(id, text string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.refresh()
	if e.state == StateExited {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	handle := e.handle
	e.mu.Unlock()

	if err := handle.WriteInput([]byte(text)); err != nil {
		if errors.Is(err, process.ErrClosed) {
			return fmt.Errorf("%w: %s", ErrSessionClosed, id)
		}
		return err
	}
	return nil
}

// Kill terminates the session's process and marks it exited. Killing an
// already exited session is a no-op, not an error.
func (m *Manager) Kill(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.refresh()
	if e.state == StateExited {
		e.mu.Unlock()
		return nil
	}
	e.killed = true
	handle := e.handle
	e.mu.Unlock()

	handle.Terminate()

	e.mu.Lock()
	e.refresh()
	e.mu.Unlock()

	log.Info().Str("session_id", id).Msg("Session killed")
	return nil
}

// Close stops the janitor and terminates every live session. Used on
// daemon shutdown; a run finishing never calls this.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		e.refresh()
		live := e.state != StateExited
		handle := e.handle
		e.mu.Unlock()
		if live {
			handle.Terminate()
		}
	}

	observability.SetActiveSessions(0)
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return e, nil
}

// janitor periodically evicts sessions that exited longer than the
// retention window ago. A caller holding a session pointer from lookup can
// still finish its in-flight read; eviction only unregisters the id.
func (m *Manager) janitor() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.sessions {
		e.mu.Lock()
		e.refresh()
		expired := e.state == StateExited && now.Sub(e.endedAt) > m.cfg.Retention
		e.mu.Unlock()

		if expired {
			delete(m.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		observability.SetActiveSessions(len(m.sessions))
		log.Debug().Int("evicted", evicted).Msg("Expired sessions evicted")
	}
}
