// Package bingo runs the photo bingo game: guests fill a 3x3 prompt grid
// with photos, submit completed cards, and admins moderate submissions.
package bingo

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
	StatusWaiting game.Status = "waiting"
	StatusPlaying game.Status = "playing"
	StatusReview  game.Status = "review"
	StatusWinner  game.Status = "winner"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Cell struct {
	PromptID   string    `json:"promptId"`
	PhotoURL   string    `json:"photoUrl"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Card tracks a participant's grid. CompletedLines and FullHouse are a
// pure function of Cells and the session's prompt list, recomputed on
// every cell mutation.
type Card struct {
	Cells          map[string]Cell `json:"cells"`
	CompletedLines int             `json:"completedLines"`
	FullHouse      bool            `json:"isFullHouse"`
	SubmittedAt    *time.Time      `json:"submittedAt,omitempty"`
}

type Participant struct {
	game.Participant
	Card *Card `json:"card"`
}

// Submission is an immutable snapshot of a participant and card at the
// moment of submission. Moderation flips its status only; the live card
// keeps playing no part in it.
type Submission struct {
	ID            string           `json:"id"`
	ParticipantID string           `json:"participantId"`
	Name          string           `json:"name"`
	Card          Card             `json:"card"`
	Status        SubmissionStatus `json:"status"`
	SubmittedAt   time.Time        `json:"submittedAt"`
}

type Session struct {
	Status       game.Status
	Theme        string
	Prompts      []Prompt
	MediaURL     string
	Participants map[string]*Participant
	Submissions  map[string]*Submission

	// join / submission encounter order for deterministic views
	participantOrder []string
	submissionOrder  []string
}

func newSession() *Session {
	return &Session{
		Status:       StatusWaiting,
		Participants: make(map[string]*Participant),
		Submissions:  make(map[string]*Submission),
	}
}

// Machine owns every bingo session, one per event, lazily created and
// exclusively mutated behind its own mutex.
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
		m.monitor.IncMutations(string(game.TypeBingo))
		m.monitor.SetLiveSessions(string(game.TypeBingo), len(m.sessions))
	}
	m.broadcaster.Publish(eventID, game.TypeBingo)
}

// Configure replaces the prompt list and theme. Allowed in any status;
// win detection is derived from the active prompt list, so a mid-game
// change is recomputed per card on the next cell mutation.
func (m *Machine) Configure(eventID, theme string, promptTexts []string, mediaURL string) error {
	if strings.TrimSpace(theme) == "" {
		return game.Invalidf("theme must not be empty")
	}
	prompts := make([]Prompt, 0, len(promptTexts))
	for _, text := range promptTexts {
		if strings.TrimSpace(text) == "" {
			return game.Invalidf("prompt text must not be empty")
		}
		prompts = append(prompts, Prompt{ID: uuid.New().String(), Text: text})
	}

	m.mu.Lock()
	s := m.session(eventID)
	s.Theme = theme
	if len(prompts) > 0 {
		s.Prompts = prompts
		for _, p := range s.Participants {
			recompute(p.Card, s.Prompts)
		}
	}
	if mediaURL != "" {
		s.MediaURL = mediaURL
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Join admits a new participant under the event's plan ceiling.
// Administrators bypass the check.
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
		Card:        &Card{Cells: make(map[string]Cell)},
	}
	s.Participants[p.ID] = p
	s.participantOrder = append(s.participantOrder, p.ID)
	m.mu.Unlock()

	m.publish(eventID)
	return p, nil
}

// Start moves the game to PLAYING. Re-entry from REVIEW resumes the same
// round; cards and submissions are untouched.
func (m *Machine) Start(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if len(s.Prompts) == 0 {
		m.mu.Unlock()
		return game.Invalidf("cannot start without configured prompts")
	}
	if err := game.Require(s.Status, "start", StatusWaiting, StatusReview); err != nil {
		m.mu.Unlock()
		return err
	}
	s.Status = StatusPlaying
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Stop pauses play for moderation. Play can resume via Start.
func (m *Machine) Stop(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "stop", StatusPlaying); err != nil {
		m.mu.Unlock()
		return err
	}
	s.Status = StatusReview
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Finish ends the round. Approvals never force this; the admin decides.
func (m *Machine) Finish(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "finish", StatusPlaying, StatusReview); err != nil {
		m.mu.Unlock()
		return err
	}
	s.Status = StatusWinner
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// UploadCell stores a photo in one grid cell and recomputes the card's
// win state from scratch.
func (m *Machine) UploadCell(eventID, participantID, promptID, photoURL string) error {
	if photoURL == "" {
		return game.Invalidf("photo url must not be empty")
	}

	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "uploadCell", StatusPlaying); err != nil {
		m.mu.Unlock()
		return err
	}
	p, ok := s.Participants[participantID]
	if !ok {
		m.mu.Unlock()
		return &game.NotFoundError{Kind: "participant", ID: participantID}
	}
	if p.Card.SubmittedAt != nil {
		m.mu.Unlock()
		return &game.IllegalTransitionError{Op: "uploadCell", Status: "submitted"}
	}
	if !hasPrompt(s.Prompts, promptID) {
		m.mu.Unlock()
		return &game.NotFoundError{Kind: "prompt", ID: promptID}
	}

	p.Card.Cells[promptID] = Cell{PromptID: promptID, PhotoURL: photoURL, UploadedAt: time.Now()}
	recompute(p.Card, s.Prompts)
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Submit freezes the participant's card as a PENDING submission. A second
// submit fails instead of duplicating. The game stays in PLAYING so other
// guests can still win the same round.
func (m *Machine) Submit(eventID, participantID string) (*Submission, error) {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "submit", StatusPlaying); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	p, ok := s.Participants[participantID]
	if !ok {
		m.mu.Unlock()
		return nil, &game.NotFoundError{Kind: "participant", ID: participantID}
	}
	if p.Card.SubmittedAt != nil {
		m.mu.Unlock()
		return nil, &game.IllegalTransitionError{Op: "submit", Status: "submitted"}
	}
	if p.Card.CompletedLines == 0 && !p.Card.FullHouse {
		m.mu.Unlock()
		return nil, game.Invalidf("card has no completed line or full house")
	}

	now := time.Now()
	p.Card.SubmittedAt = &now

	sub := &Submission{
		ID:            uuid.New().String(),
		ParticipantID: p.ID,
		Name:          p.Name,
		Card:          cloneCard(*p.Card),
		Status:        SubmissionPending,
		SubmittedAt:   now,
	}
	s.Submissions[sub.ID] = sub
	s.submissionOrder = append(s.submissionOrder, sub.ID)
	m.mu.Unlock()

	m.publish(eventID)
	return sub, nil
}

// Moderate approves or rejects one submission. Idempotent; approving
// never forces the game-level WINNER status.
func (m *Machine) Moderate(eventID, submissionID string, approve bool) error {
	m.mu.Lock()
	s := m.session(eventID)
	sub, ok := s.Submissions[submissionID]
	if !ok {
		m.mu.Unlock()
		return &game.NotFoundError{Kind: "submission", ID: submissionID}
	}
	if approve {
		sub.Status = SubmissionApproved
	} else {
		sub.Status = SubmissionRejected
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Reset discards all participants, cards and submissions. The theme,
// prompt list and media link survive so the admin can rerun the round.
func (m *Machine) Reset(eventID string) {
	m.mu.Lock()
	old := m.session(eventID)
	fresh := newSession()
	fresh.Theme = old.Theme
	fresh.Prompts = old.Prompts
	fresh.MediaURL = old.MediaURL
	m.sessions[eventID] = fresh
	m.mu.Unlock()

	m.publish(eventID)
}

// RemoveParticipant evicts a participant whose stream dropped. Frozen
// submissions survive the eviction. Returns whether anything changed;
// a change triggers exactly one broadcast.
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

func (m *Machine) ParticipantCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[eventID]; ok {
		return len(s.Participants)
	}
	return 0
}

func hasPrompt(prompts []Prompt, promptID string) bool {
	for _, p := range prompts {
		if p.ID == promptID {
			return true
		}
	}
	return false
}

func cloneCard(c Card) Card {
	cells := make(map[string]Cell, len(c.Cells))
	for k, v := range c.Cells {
		cells[k] = v
	}
	c.Cells = cells
	return c
}
