// Package trivia runs the quiz: one question live at a time, answers
// locked per participant per question, scores tallied on reveal.
package trivia

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/monitor"
)

const (
	StatusWaiting  game.Status = "waiting"
	StatusQuestion game.Status = "question"
	StatusReveal   game.Status = "reveal"
	StatusFinished game.Status = "finished"
)

type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type Participant struct {
	game.Participant
	Score int `json:"score"`
}

type Session struct {
	Status       game.Status
	Questions    []Question
	MediaURL     string
	Current      int
	Participants map[string]*Participant
	// answers[questionIndex][participantID] = chosen option
	answers map[int]map[string]int

	participantOrder []string
}

func newSession() *Session {
	return &Session{
		Status:       StatusWaiting,
		Current:      -1,
		Participants: make(map[string]*Participant),
		answers:      make(map[int]map[string]int),
	}
}

type Machine struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	plans       admission.PlanSource
	broadcaster game.Broadcaster
	monitor     *monitor.Monitor
}

func NewMachine(plans admission.PlanSource, broadcaster game.Broadcaster, mon *monitor.Monitor) *Machine {
	return &Machine{
		sessions:    make(map[string]*Session),
		plans:       plans,
		broadcaster: broadcaster,
		monitor:     mon,
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
		m.monitor.IncMutations(string(game.TypeTrivia))
		m.monitor.SetLiveSessions(string(game.TypeTrivia), len(m.sessions))
	}
	m.broadcaster.Publish(eventID, game.TypeTrivia)
}

// Configure replaces the question list. Only allowed before the quiz
// starts; swapping questions mid-round would orphan recorded answers.
func (m *Machine) Configure(eventID string, questions []Question, mediaURL string) error {
	for i := range questions {
		q := &questions[i]
		if strings.TrimSpace(q.Text) == "" {
			return game.Invalidf("question text must not be empty")
		}
		if len(q.Options) < 2 {
			return game.Invalidf("question needs at least two options")
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return game.Invalidf("correct index out of range")
		}
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
	}

	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "configure", StatusWaiting); err != nil {
		m.mu.Unlock()
		return err
	}
	if len(questions) > 0 {
		s.Questions = questions
	}
	if mediaURL != "" {
		s.MediaURL = mediaURL
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

func (m *Machine) Join(ctx context.Context, eventID, name string, admin bool) (*Participant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, game.Invalidf("name must not be empty")
	}

	tier, err := m.plans.Tier(ctx, eventID)
	if err != nil {
		tier = admission.TierFree
	}

	m.mu.Lock()
	s := m.session(eventID)
	if err := game.CheckAdmission(tier, admission.ResourceParticipants, len(s.Participants), admin); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	p := &Participant{
		Participant: game.Participant{ID: uuid.New().String(), Name: name, JoinedAt: time.Now()},
	}
	s.Participants[p.ID] = p
	s.participantOrder = append(s.participantOrder, p.ID)
	m.mu.Unlock()

	m.publish(eventID)
	return p, nil
}

func (m *Machine) Start(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "start", StatusWaiting); err != nil {
		m.mu.Unlock()
		return err
	}
	if len(s.Questions) == 0 {
		m.mu.Unlock()
		return game.Invalidf("cannot start without questions")
	}
	s.Status = StatusQuestion
	s.Current = 0
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Answer locks a participant's choice for the live question. A second
// answer to the same question is rejected rather than overwritten; a
// correct choice scores one point immediately.
func (m *Machine) Answer(eventID, participantID string, option int) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "answer", StatusQuestion); err != nil {
		m.mu.Unlock()
		return err
	}
	p, ok := s.Participants[participantID]
	if !ok {
		m.mu.Unlock()
		return &game.NotFoundError{Kind: "participant", ID: participantID}
	}
	q := s.Questions[s.Current]
	if option < 0 || option >= len(q.Options) {
		m.mu.Unlock()
		return game.Invalidf("option %d out of range", option)
	}
	if s.answers[s.Current] == nil {
		s.answers[s.Current] = make(map[string]int)
	}
	if _, answered := s.answers[s.Current][participantID]; answered {
		m.mu.Unlock()
		return &game.IllegalTransitionError{Op: "answer", Status: "answered"}
	}

	s.answers[s.Current][participantID] = option
	if option == q.CorrectIndex {
		p.Score++
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Reveal shows the tallies for the live question.
func (m *Machine) Reveal(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "reveal", StatusQuestion); err != nil {
		m.mu.Unlock()
		return err
	}
	s.Status = StatusReveal
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Next advances to the next question, or finishes the quiz after the
// last one.
func (m *Machine) Next(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "next", StatusReveal); err != nil {
		m.mu.Unlock()
		return err
	}
	if s.Current+1 < len(s.Questions) {
		s.Current++
		s.Status = StatusQuestion
	} else {
		s.Status = StatusFinished
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Reset clears participants, answers and scores; the configured questions
// and media link survive.
func (m *Machine) Reset(eventID string) {
	m.mu.Lock()
	old := m.session(eventID)
	fresh := newSession()
	fresh.Questions = old.Questions
	fresh.MediaURL = old.MediaURL
	m.sessions[eventID] = fresh
	m.mu.Unlock()

	m.publish(eventID)
}

func (m *Machine) ParticipantCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[eventID]; ok {
		return len(s.Participants)
	}
	return 0
}

func (m *Machine) RemoveParticipant(eventID, participantID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[eventID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if _, exists := s.Participants[participantID]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(s.Participants, participantID)
	for i, id := range s.participantOrder {
		if id == participantID {
			s.participantOrder = append(s.participantOrder[:i], s.participantOrder[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.publish(eventID)
	return true
}
