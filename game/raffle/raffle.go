// Package raffle runs the prize draw: the winner is chosen the moment the
// admin hits draw, but stays hidden behind a countdown for drama.
package raffle

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/media"
	"github.com/festivo/gamehub/monitor"
	"github.com/festivo/gamehub/timer"
)

const (
	StatusIdle      game.Status = "idle"
	StatusWaiting   game.Status = "waiting"
	StatusCountdown game.Status = "countdown"
	StatusWinner    game.Status = "winner"
)

// Mode selects the draw pool: registered participants or album photos.
type Mode string

const (
	ModeParticipants Mode = "participants"
	ModePhotos       Mode = "photos"
)

type Winner struct {
	ParticipantID string `json:"participantId,omitempty"`
	Name          string `json:"name,omitempty"`
	MediaURL      string `json:"mediaUrl,omitempty"`
}

type Session struct {
	Status       game.Status
	Mode         Mode
	AlbumURL     string
	MediaItems   []string
	Participants map[string]*game.Participant
	Winner       *Winner

	participantOrder []string

	// generation voids a scheduled reveal that outlived a reset or a
	// superseding draw. The deferred callback compares before applying.
	generation    uint64
	pendingWinner *Winner
	revealTask    int64
}

func newSession() *Session {
	return &Session{
		Status:       StatusIdle,
		Mode:         ModeParticipants,
		Participants: make(map[string]*game.Participant),
	}
}

type Machine struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	plans       admission.PlanSource
	broadcaster game.Broadcaster
	monitor     *monitor.Monitor
	resolver    media.Resolver
	scheduler   *timer.Manager
	countdown   time.Duration
}

func NewMachine(plans admission.PlanSource, broadcaster game.Broadcaster, mon *monitor.Monitor,
	resolver media.Resolver, scheduler *timer.Manager, countdown time.Duration) *Machine {
	return &Machine{
		sessions:    make(map[string]*Session),
		plans:       plans,
		broadcaster: broadcaster,
		monitor:     mon,
		resolver:    resolver,
		scheduler:   scheduler,
		countdown:   countdown,
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
		m.monitor.IncMutations(string(game.TypeRaffle))
		m.monitor.SetLiveSessions(string(game.TypeRaffle), len(m.sessions))
	}
	m.broadcaster.Publish(eventID, game.TypeRaffle)
}

// Configure sets the draw mode and album source without disturbing the
// current status. Album resolution happens before the lock is taken; the
// result is applied against whatever the session looks like afterwards.
// Resolution failure degrades to the default media set.
func (m *Machine) Configure(ctx context.Context, eventID string, mode Mode, albumURL string) error {
	switch mode {
	case ModeParticipants, ModePhotos, "":
	default:
		return game.Invalidf("unknown raffle mode %q", mode)
	}

	var items []string
	if mode == ModePhotos {
		items = media.ResolveOrFallback(ctx, m.resolver, albumURL)
	}

	m.mu.Lock()
	s := m.session(eventID)
	if mode != "" {
		s.Mode = mode
	}
	if albumURL != "" {
		s.AlbumURL = albumURL
	}
	if items != nil {
		s.MediaItems = items
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Join registers a guest for the draw, deduplicated by display name so a
// reconnecting phone does not enter twice.
func (m *Machine) Join(ctx context.Context, eventID, name string, admin bool) (*game.Participant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, game.Invalidf("name must not be empty")
	}

	tier, err := m.plans.Tier(ctx, eventID)
	if err != nil {
		tier = admission.TierFree
	}

	m.mu.Lock()
	s := m.session(eventID)
	for _, p := range s.Participants {
		if p.Name == name {
			m.mu.Unlock()
			return p, nil
		}
	}
	if err := game.CheckAdmission(tier, admission.ResourceParticipants, len(s.Participants), admin); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	p := &game.Participant{ID: uuid.New().String(), Name: name, JoinedAt: time.Now()}
	s.Participants[p.ID] = p
	s.participantOrder = append(s.participantOrder, p.ID)
	if s.Status == StatusIdle {
		s.Status = StatusWaiting
	}
	m.mu.Unlock()

	m.publish(eventID)
	return p, nil
}

// Draw commits the winner choice immediately and schedules the reveal
// after the countdown. A draw while one is already counting down is
// rejected; a reset during the delay voids the reveal.
func (m *Machine) Draw(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "draw", StatusIdle, StatusWaiting, StatusWinner); err != nil {
		m.mu.Unlock()
		return err
	}

	winner, err := m.pickWinner(s)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	s.generation++
	gen := s.generation
	s.pendingWinner = winner
	s.Winner = nil
	s.Status = StatusCountdown
	s.revealTask = m.scheduler.After(m.countdown, func() {
		m.finishReveal(eventID, gen)
	})
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

func (m *Machine) pickWinner(s *Session) (*Winner, error) {
	switch s.Mode {
	case ModePhotos:
		if len(s.MediaItems) == 0 {
			return nil, game.Invalidf("no media items to draw from")
		}
		return &Winner{MediaURL: s.MediaItems[rand.Intn(len(s.MediaItems))]}, nil
	default:
		if len(s.participantOrder) == 0 {
			return nil, game.Invalidf("no participants to draw from")
		}
		id := s.participantOrder[rand.Intn(len(s.participantOrder))]
		p := s.Participants[id]
		return &Winner{ParticipantID: p.ID, Name: p.Name}, nil
	}
}

// finishReveal flips the held-back winner to visible. It re-validates
// against current state instead of blindly committing: a reset or newer
// draw during the delay bumped the generation and this callback is void.
func (m *Machine) finishReveal(eventID string, gen uint64) {
	m.mu.Lock()
	s, ok := m.sessions[eventID]
	if !ok || s.generation != gen || s.Status != StatusCountdown {
		m.mu.Unlock()
		logger.Log.Infof("raffle reveal for event %s generation %d superseded, dropping", eventID, gen)
		return
	}
	s.Winner = s.pendingWinner
	s.pendingWinner = nil
	s.Status = StatusWinner
	m.mu.Unlock()

	m.publish(eventID)
}

// Reset returns the raffle to IDLE, clearing participants and any pending
// reveal. The mode, album link and resolved media survive.
func (m *Machine) Reset(eventID string) {
	m.mu.Lock()
	old := m.session(eventID)
	if old.revealTask != 0 {
		m.scheduler.Cancel(old.revealTask)
	}
	fresh := newSession()
	fresh.Mode = old.Mode
	fresh.AlbumURL = old.AlbumURL
	fresh.MediaItems = old.MediaItems
	fresh.generation = old.generation + 1
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

// RemoveParticipant drops a disconnected guest from the pool. A winner
// already committed stays committed; the countdown reveal does not depend
// on the winner still being connected.
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
