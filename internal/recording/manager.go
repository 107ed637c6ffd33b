package recording

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/agentsea/agentd/internal/clock"
)

// Options configures a Manager.
type Options struct {
	MaxActiveSessions   int
	MaxEventsPerSession int
	// ActionFilter defaults to DefaultActionFilter.
	ActionFilter ActionFilter
	// ArchiveDir, when set, holds per-session directories removed on delete.
	ArchiveDir    string
	ArchiveOnStop bool
}

// Manager is the recording facade used by every transport.
type Manager struct {
	registry *Registry
	hook     *Hook
	archive  *Archive
	opts     Options
	isAction ActionFilter
	log      *slog.Logger

	// orders archive writes on stop against removal on delete
	archiveMu sync.Mutex
}

// Detail is a session record with its event summary and events. Archived
// is set when the session is only known from its session.json.
type Detail struct {
	Info     SessionInfo
	Summary  Summary
	Events   []Event
	Archived bool
}

func NewManager(c clock.Clock, opts Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	reg := NewRegistry(c, RegistryOptions{
		MaxActiveSessions:   opts.MaxActiveSessions,
		MaxEventsPerSession: opts.MaxEventsPerSession,
	})
	m := &Manager{
		registry: reg,
		hook:     NewHook(reg, c, log),
		opts:     opts,
		isAction: opts.ActionFilter,
		log:      log,
	}
	if m.isAction == nil {
		m.isAction = DefaultActionFilter
	}
	if opts.ArchiveDir != "" {
		m.archive = NewArchive(opts.ArchiveDir)
	}
	return m
}

// Hook returns the capture hook fed by the input surface.
func (m *Manager) Hook() *Hook { return m.hook }

func (m *Manager) Subscribe(l Listener) { m.hook.Subscribe(l) }

func (m *Manager) IsAction(k Kind) bool { return m.isAction(k) }

// Start opens a new active session.
func (m *Manager) Start(description string) (SessionInfo, error) {
	sess, err := m.registry.Create(description)
	if err != nil {
		m.log.Warn("session start refused", "error", err)
		return SessionInfo{}, err
	}
	metricSessionsCreated.Inc()
	gaugeSessionsActive.Inc()
	m.log.Info("session started", "session_id", sess.ID(), "description", description)
	return sess.Info(), nil
}

// Sessions lists every session, active and stopped, by start time.
func (m *Manager) Sessions() []SessionInfo {
	return infos(m.registry.List())
}

// ActiveSessions lists sessions currently accepting events, by start time.
func (m *Manager) ActiveSessions() []SessionInfo {
	list := m.registry.ListActive()
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		// may have stopped since ListActive
		if info := s.Info(); info.State == StateActive {
			out = append(out, info)
		}
	}
	return out
}

func (m *Manager) Session(id string) (SessionInfo, error) {
	sess, err := m.registry.Get(id)
	if err != nil {
		return SessionInfo{}, err
	}
	return sess.Info(), nil
}

// Stop ends a session. Stopping an already stopped session returns its
// record unchanged.
func (m *Manager) Stop(id string) (SessionInfo, error) {
	sess, stopped, err := m.registry.Stop(id)
	if err != nil {
		return SessionInfo{}, err
	}
	info := sess.Info()
	if !stopped {
		return info, nil
	}
	gaugeSessionsActive.Dec()
	m.hook.finish(id)
	m.log.Info("session stopped", "session_id", id, "events", sess.events.Len())
	if m.archive != nil && m.opts.ArchiveOnStop {
		m.save(info, sess)
	}
	return info, nil
}

func (m *Manager) save(info SessionInfo, sess *Session) {
	m.archiveMu.Lock()
	defer m.archiveMu.Unlock()
	// a concurrent Delete may already have removed it
	if _, err := m.registry.Get(info.ID); err != nil {
		m.log.Debug("session gone before archive", "session_id", info.ID)
		return
	}
	path, err := m.archive.Save(info, sess.events.List())
	if err != nil {
		m.log.Warn("session archive failed", "session_id", info.ID, "error", err)
		return
	}
	m.log.Debug("session archived", "session_id", info.ID, "path", path)
}

// Delete removes a session and all of its events, stopping it if active.
// A session known only from its archive has the archive removed.
func (m *Manager) Delete(id string) error {
	_, stopped, err := m.registry.Delete(id)
	if errors.Is(err, ErrNotFound) && m.archive != nil && m.archive.Has(id) {
		m.removeArchive(id)
		m.log.Info("archived session deleted", "session_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if stopped {
		gaugeSessionsActive.Dec()
	}
	m.hook.finish(id)
	if m.archive != nil {
		m.removeArchive(id)
	}
	m.log.Info("session deleted", "session_id", id)
	return nil
}

func (m *Manager) removeArchive(id string) {
	m.archiveMu.Lock()
	defer m.archiveMu.Unlock()
	if err := m.archive.Remove(id); err != nil {
		m.log.Warn("session directory cleanup failed", "session_id", id, "error", err)
	}
}

// Detail returns the session record, its summary and its events. Sessions
// from an earlier run are served from their archive.
func (m *Manager) Detail(id string) (Detail, error) {
	sess, err := m.registry.Get(id)
	if err == nil {
		return Detail{
			Info:    sess.Info(),
			Summary: sess.events.Summary(m.isAction),
			Events:  sess.events.List(),
		}, nil
	}
	if !errors.Is(err, ErrNotFound) || m.archive == nil {
		return Detail{}, err
	}
	m.archiveMu.Lock()
	info, events, aerr := m.archive.Load(id)
	m.archiveMu.Unlock()
	if aerr != nil {
		if !errors.Is(aerr, ErrNotFound) {
			m.log.Warn("archived session unreadable", "session_id", id, "error", aerr)
		}
		return Detail{}, err
	}
	return Detail{
		Info:     info,
		Summary:  summarize(events, m.isAction),
		Events:   events,
		Archived: true,
	}, nil
}

func (m *Manager) Events(id string) ([]Event, error) {
	sess, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.events.List(), nil
}

// Actions returns the session's events that count as actions.
func (m *Manager) Actions(id string) ([]Event, error) {
	sess, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.events.ListActions(m.isAction), nil
}

// Event looks up an event. An id from another session is not found.
func (m *Manager) Event(sessionID string, eventID EventID) (Event, error) {
	sess, err := m.registry.Get(sessionID)
	if err != nil {
		return Event{}, err
	}
	return sess.events.Get(eventID)
}

func (m *Manager) DeleteEvent(sessionID string, eventID EventID) error {
	sess, err := m.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if err := sess.events.Delete(eventID); err != nil {
		return err
	}
	metricEventsDeleted.Inc()
	return nil
}

// Append stores an event in one session directly. Unlike the hook it
// surfaces ErrInvalidState for stopped sessions.
func (m *Manager) Append(sessionID string, kind Kind, payload map[string]any) (Event, error) {
	sess, err := m.registry.Get(sessionID)
	if err != nil {
		return Event{}, err
	}
	return m.hook.deliver(sess, kind, payload)
}

func infos(sessions []*Session) []SessionInfo {
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}
