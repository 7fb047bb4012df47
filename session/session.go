// Package session tracks one open stream connection per subscriber.
package session

import (
	"sync"
	"time"

	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/network"
)

// Session is one long-lived stream subscription, bound to an
// {event, game} pair and optionally to a participant. Participant-bound
// sessions trigger participant removal when the connection drops.
type Session struct {
	ID            string
	Conn          network.Connection
	EventID       string
	GameType      game.Type
	ParticipantID string
	Admin         bool
	CreatedAt     time.Time
	LastActive    time.Time
	mutex         sync.RWMutex
}

func NewSession(id string, conn network.Connection, eventID string, gameType game.Type) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		EventID:    eventID,
		GameType:   gameType,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager indexes every open session by id.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// GetByParticipant returns every session bound to a participant. A guest
// may hold more than one (phone plus big screen pairing).
func (m *Manager) GetByParticipant(participantID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.ParticipantID == participantID {
			result = append(result, session)
		}
	}
	return result
}
