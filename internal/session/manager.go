package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vuchat/vuchat/internal/models"
)

const (
	DefaultMaxHistory = 10
	DefaultTimeout    = 30 * time.Minute
)

// Session is one conversation: its transcript, the analysis of the
// video it is about, and free-form context the chat layer maintains.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	History      []models.Message
	Analysis     *models.VideoAnalysis
	Context      map[string]string
}

// Metadata is the projection of a session returned by the API; the
// transcript itself stays server-side.
type Metadata struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivity     time.Time `json:"last_activity"`
	MessageCount     int       `json:"message_count"`
	HasVideoAnalysis bool      `json:"has_video_analysis"`
}

// Manager owns all live sessions. Sessions are in-memory only and
// expire after the idle timeout; any access to a live session renews
// it.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxHistory int
	timeout    time.Duration
}

func NewManager(maxHistory int, timeout time.Duration) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Manager{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
		timeout:    timeout,
	}
}

// Create starts a new session and returns its id.
func (m *Manager) Create() string {
	id := uuid.New().String()
	now := time.Now()

	m.mu.Lock()
	m.sessions[id] = &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		History:      []models.Message{},
		Context:      make(map[string]string),
	}
	m.mu.Unlock()

	log.Printf("Created new session: %s", id)
	return id
}

// GetOrCreate returns id when it names a live session, otherwise a
// fresh one. This backs both upload and chat: a stale client id simply
// rotates to a new session.
func (m *Manager) GetOrCreate(id string) string {
	if id != "" && m.Touch(id) {
		return id
	}
	return m.Create()
}

// get returns the live session, expiring it if idle too long. Caller
// must hold the write lock.
func (m *Manager) get(id string) *Session {
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}

	if time.Since(s.LastActivity) > m.timeout {
		log.Printf("Session %s has expired", id)
		delete(m.sessions, id)
		return nil
	}

	s.LastActivity = time.Now()
	return s
}

// Touch renews a session's idle timer, reporting whether it is live.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id) != nil
}

// AddMessage appends a message to the session transcript. The
// transcript is capped: once it exceeds twice the history window,
// system messages are kept and the rest trimmed to the most recent.
func (m *Manager) AddMessage(id, role, content string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(id)
	if s == nil {
		return fmt.Errorf("session not found: %s", id)
	}

	s.History = append(s.History, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})

	limit := m.maxHistory * 2
	if len(s.History) > limit {
		var system []models.Message
		for _, msg := range s.History[:len(s.History)-limit] {
			if msg.Role == models.RoleSystem {
				system = append(system, msg)
			}
		}
		s.History = append(system, s.History[len(s.History)-limit:]...)
	}

	return nil
}

// History returns up to limit of the most recent messages; limit <= 0
// means all of them.
func (m *Manager) History(id string, limit int) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(id)
	if s == nil {
		return nil
	}

	history := s.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]models.Message, len(history))
	copy(out, history)
	return out
}

// StoreVideoAnalysis attaches an analysis result to the session and
// records a system message so the chat layer knows a video is loaded.
func (m *Manager) StoreVideoAnalysis(id string, analysis *models.VideoAnalysis) error {
	m.mu.Lock()

	s := m.get(id)
	if s == nil {
		m.mu.Unlock()
		return fmt.Errorf("session not found: %s", id)
	}
	s.Analysis = analysis
	m.mu.Unlock()

	summary := analysis.Summary
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}

	if err := m.AddMessage(id, models.RoleSystem,
		fmt.Sprintf("Video analyzed. Found %d events. Summary: %s", len(analysis.Events), summary),
		map[string]string{"type": "video_analysis"},
	); err != nil {
		return err
	}

	log.Printf("Stored video analysis for session %s", id)
	return nil
}

func (m *Manager) VideoAnalysis(id string) *models.VideoAnalysis {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(id)
	if s == nil {
		return nil
	}
	return s.Analysis
}

func (m *Manager) SetContext(id, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.get(id); s != nil {
		s.Context[key] = value
	}
}

func (m *Manager) ContextOf(id string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(id)
	if s == nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(s.Context))
	for k, v := range s.Context {
		out[k] = v
	}
	return out
}

// Metadata returns the API projection of a session without renewing
// its idle timer.
func (m *Manager) Metadata(id string) (*Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || time.Since(s.LastActivity) > m.timeout {
		return nil, false
	}

	return &Metadata{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt,
		LastActivity:     s.LastActivity,
		MessageCount:     len(s.History),
		HasVideoAnalysis: s.Analysis != nil,
	}, true
}

// Clear removes a session, reporting whether it existed.
func (m *Manager) Clear(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}

	delete(m.sessions, id)
	log.Printf("Cleared session %s", id)
	return true
}

// SweepExpired drops every idle session and returns how many were
// removed. cmd/server runs this from a ticker.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	for id, s := range m.sessions {
		if time.Since(s.LastActivity) > m.timeout {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		log.Printf("Cleared %d expired sessions", removed)
	}
	return removed
}

func (m *Manager) ActiveCount() int {
	m.SweepExpired()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Export serializes a session to JSON for debugging and the analyze
// CLI.
func (m *Manager) Export(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(id)
	if s == nil {
		return "", fmt.Errorf("session not found: %s", id)
	}

	data, err := json.MarshalIndent(struct {
		ID           string                `json:"id"`
		CreatedAt    time.Time             `json:"created_at"`
		LastActivity time.Time             `json:"last_activity"`
		History      []models.Message      `json:"conversation_history"`
		Analysis     *models.VideoAnalysis `json:"video_analysis,omitempty"`
		Context      map[string]string     `json:"context"`
	}{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		History:      s.History,
		Analysis:     s.Analysis,
		Context:      s.Context,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to export session: %w", err)
	}

	return string(data), nil
}
