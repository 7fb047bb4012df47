// Package confessions runs the anonymous message wall: an on/off gate on
// message acceptance in front of a capped ring buffer.
package confessions

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/media"
	"github.com/festivo/gamehub/monitor"
)

const (
	StatusActive  game.Status = "active"
	StatusStopped game.Status = "stopped"
)

const (
	// MaxMessageLength is the hard truncation ceiling per message.
	MaxMessageLength = 280
	// MaxMessages caps the wall; the oldest entries are silently dropped.
	MaxMessages = 200
)

// displayColors is the palette a new message is randomly styled from.
var displayColors = []string{
	"#f94144", "#f3722c", "#f8961e", "#f9c74f",
	"#90be6d", "#43aa8b", "#577590", "#9b5de5",
}

type Message struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Author   string    `json:"author,omitempty"`
	Color    string    `json:"color"`
	Rotation int       `json:"rotation"` // degrees, -3..3, presentation variety
	PostedAt time.Time `json:"postedAt"`
}

type Session struct {
	Status        game.Status
	BackgroundURL string
	Messages      []Message
}

func newSession() *Session {
	return &Session{
		Status:        StatusActive,
		BackgroundURL: media.DefaultBackground,
	}
}

type Machine struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	plans       admission.PlanSource
	broadcaster game.Broadcaster
	monitor     *monitor.Monitor
	resolver    media.Resolver
}

func NewMachine(plans admission.PlanSource, broadcaster game.Broadcaster, mon *monitor.Monitor, resolver media.Resolver) *Machine {
	return &Machine{
		sessions:    make(map[string]*Session),
		plans:       plans,
		broadcaster: broadcaster,
		monitor:     mon,
		resolver:    resolver,
	}
}

func (m *Machine) session(eventID string) *Session {
	s, ok := m.sessions[eventID]
	if !ok {
		s = newSession()
		m.sessions[eventID] = s
	}
	return s
}

func (m *Machine) publish(eventID string) {
	if m.monitor != nil {
		m.monitor.IncMutations(string(game.TypeConfessions))
		m.monitor.SetLiveSessions(string(game.TypeConfessions), len(m.sessions))
	}
	m.broadcaster.Publish(eventID, game.TypeConfessions)
}

// Configure points the wall background at an album; resolution failure
// falls back to the default background instead of failing the call.
func (m *Machine) Configure(ctx context.Context, eventID, albumURL string) error {
	items := media.ResolveOrFallback(ctx, m.resolver, albumURL)

	m.mu.Lock()
	s := m.session(eventID)
	s.BackgroundURL = items[0]
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// AddMessage posts to the wall. Rejected while STOPPED; text is hard
// truncated; the message count is gated by the plan's message quota and
// the wall itself by the ring cap.
func (m *Machine) AddMessage(ctx context.Context, eventID, text, author string, admin bool) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, game.Invalidf("message text must not be empty")
	}
	if runes := []rune(text); len(runes) > MaxMessageLength {
		text = string(runes[:MaxMessageLength])
	}

	tier, err := m.plans.Tier(ctx, eventID)
	if err != nil {
		tier = admission.TierFree
	}

	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "addMessage", StatusActive); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := game.CheckAdmission(tier, admission.ResourceMessages, len(s.Messages), admin); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	msg := Message{
		ID:       uuid.New().String(),
		Text:     text,
		Author:   author,
		Color:    displayColors[rand.Intn(len(displayColors))],
		Rotation: rand.Intn(7) - 3,
		PostedAt: time.Now(),
	}
	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > MaxMessages {
		s.Messages = s.Messages[len(s.Messages)-MaxMessages:]
	}
	m.mu.Unlock()

	m.publish(eventID)
	return &msg, nil
}

func (m *Machine) Start(eventID string) error {
	return m.setStatus(eventID, StatusActive)
}

func (m *Machine) Stop(eventID string) error {
	return m.setStatus(eventID, StatusStopped)
}

func (m *Machine) setStatus(eventID string, status game.Status) error {
	m.mu.Lock()
	s := m.session(eventID)
	s.Status = status
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Reset clears the wall; the background survives.
func (m *Machine) Reset(eventID string) {
	m.mu.Lock()
	old := m.session(eventID)
	fresh := newSession()
	fresh.BackgroundURL = old.BackgroundURL
	m.sessions[eventID] = fresh
	m.mu.Unlock()

	m.publish(eventID)
}

// RemoveParticipant is a no-op: the wall is anonymous and keeps messages
// after their author disconnects.
func (m *Machine) RemoveParticipant(string, string) bool {
	return false
}

// ParticipantCount reports the message count; the wall has no registered
// participants.
func (m *Machine) ParticipantCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[eventID]; ok {
		return len(s.Messages)
	}
	return 0
}
