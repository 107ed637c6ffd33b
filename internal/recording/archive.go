package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const archiveFile = "session.json"

// Archive keeps per-session directories under a root: the session.json
// written on stop and anything else filed under the session id.
type Archive struct {
	root string
}

func NewArchive(root string) *Archive { return &Archive{root: root} }

func (a *Archive) Dir(sessionID string) string { return filepath.Join(a.root, sessionID) }

type archivedEvent struct {
	ID        EventID        `json:"id"`
	Type      Kind           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type archivedSession struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Status      State           `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	Events      []archivedEvent `json:"events"`
}

// Save writes <root>/<id>/session.json and returns its path.
func (a *Archive) Save(info SessionInfo, events []Event) (string, error) {
	dir := a.Dir(info.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive %s: %w", info.ID, err)
	}
	rec := archivedSession{
		ID:          info.ID,
		Description: info.Description,
		Status:      info.State,
		StartTime:   info.StartTime,
		EndTime:     info.EndTime,
		Events:      make([]archivedEvent, 0, len(events)),
	}
	for _, e := range events {
		rec.Events = append(rec.Events, archivedEvent{ID: e.ID, Type: e.Kind, Timestamp: e.Timestamp, Payload: e.Payload})
	}
	b, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", info.ID, err)
	}
	path := filepath.Join(dir, archiveFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", fmt.Errorf("archive %s: %w", info.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("archive %s: %w", info.ID, err)
	}
	return path, nil
}

// Has reports whether a session.json exists for the session.
func (a *Archive) Has(sessionID string) bool {
	if !safeName(sessionID) {
		return false
	}
	_, err := os.Stat(filepath.Join(a.Dir(sessionID), archiveFile))
	return err == nil
}

// Load reads back a saved session.
func (a *Archive) Load(sessionID string) (SessionInfo, []Event, error) {
	if !safeName(sessionID) {
		return SessionInfo{}, nil, fmt.Errorf("archive %q: %w", sessionID, ErrNotFound)
	}
	b, err := os.ReadFile(filepath.Join(a.Dir(sessionID), archiveFile))
	if os.IsNotExist(err) {
		return SessionInfo{}, nil, fmt.Errorf("archive %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return SessionInfo{}, nil, fmt.Errorf("archive %s: %w", sessionID, err)
	}
	var rec archivedSession
	if err := json.Unmarshal(b, &rec); err != nil {
		return SessionInfo{}, nil, fmt.Errorf("archive %s: %w", sessionID, err)
	}
	info := SessionInfo{
		ID:          rec.ID,
		Description: rec.Description,
		State:       rec.Status,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
	}
	events := make([]Event, 0, len(rec.Events))
	for _, e := range rec.Events {
		events = append(events, Event{ID: e.ID, Kind: e.Type, Timestamp: e.Timestamp, Payload: e.Payload})
	}
	return info, events, nil
}

// Remove deletes the session directory. A missing directory is not an error.
func (a *Archive) Remove(sessionID string) error {
	if !safeName(sessionID) {
		return fmt.Errorf("archive %q: bad session id: %w", sessionID, ErrInvalidState)
	}
	if err := os.RemoveAll(a.Dir(sessionID)); err != nil {
		return fmt.Errorf("archive %s: %w", sessionID, err)
	}
	return nil
}

func safeName(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}
