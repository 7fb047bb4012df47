// Package impostor runs the social-deduction game: a hidden subset of
// players gets the impostor prompt, everyone answers, then the group
// votes on who to expose.
package impostor

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/monitor"
)

const (
	StatusWaiting    game.Status = "waiting"
	StatusSubmitting game.Status = "submitting"
	StatusVoting     game.Status = "voting"
	StatusReveal     game.Status = "reveal"
)

type Role string

const (
	RoleImpostor Role = "impostor"
	RoleCivilian Role = "civilian"
)

type Side string

const (
	SidePublic   Side = "public"
	SideImpostor Side = "impostor"
)

// Candidate is a guest eligible for selection, supplied by the admin from
// the externally-owned guest list.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Player struct {
	game.Participant
	Role   Role   `json:"role"`
	Answer string `json:"answer"`
}

type Tally struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Votes    int    `json:"votes"`
}

type Result struct {
	TargetID   string  `json:"targetId"`
	TargetName string  `json:"targetName"`
	TargetRole Role    `json:"targetRole"`
	Winner     Side    `json:"winner"`
	Tallies    []Tally `json:"tallies"`
}

type Session struct {
	Status         game.Status
	PublicPrompt   string
	ImpostorPrompt string
	PlayerCount    int
	ImpostorCount  int
	Players        map[string]*Player
	Votes          map[string]string // voterID -> targetID, later votes overwrite
	Result         *Result

	playerOrder []string // selection order, also the documented tie-break order
}

func newSession() *Session {
	return &Session{
		Status:        StatusWaiting,
		PlayerCount:   6,
		ImpostorCount: 1,
		Players:       make(map[string]*Player),
		Votes:         make(map[string]string),
	}
}

type Machine struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	broadcaster game.Broadcaster
	monitor     *monitor.Monitor
}

func NewMachine(broadcaster game.Broadcaster, mon *monitor.Monitor) *Machine {
	return &Machine{
		sessions:    make(map[string]*Session),
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
		m.monitor.IncMutations(string(game.TypeImpostor))
		m.monitor.SetLiveSessions(string(game.TypeImpostor), len(m.sessions))
	}
	m.broadcaster.Publish(eventID, game.TypeImpostor)
}

func (m *Machine) Configure(eventID, publicPrompt, impostorPrompt string, playerCount, impostorCount int) error {
	if strings.TrimSpace(publicPrompt) == "" || strings.TrimSpace(impostorPrompt) == "" {
		return game.Invalidf("both prompts must be set")
	}
	if playerCount < 2 {
		return game.Invalidf("player count must be at least 2")
	}
	if impostorCount < 1 {
		return game.Invalidf("impostor count must be at least 1")
	}

	m.mu.Lock()
	s := m.session(eventID)
	s.PublicPrompt = publicPrompt
	s.ImpostorPrompt = impostorPrompt
	s.PlayerCount = playerCount
	s.ImpostorCount = impostorCount
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// SelectPlayers draws a uniform subset of the candidate pool and assigns
// roles, reshuffling both choices on every call. Any previous answers and
// votes are discarded with the previous cast.
func (m *Machine) SelectPlayers(eventID string, pool []Candidate) error {
	if len(pool) == 0 {
		return game.Invalidf("candidate pool must not be empty")
	}

	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "selectPlayers", StatusWaiting); err != nil {
		m.mu.Unlock()
		return err
	}

	selectCount := s.PlayerCount
	if selectCount > len(pool) {
		selectCount = len(pool)
	}
	impostors := s.ImpostorCount
	if impostors > selectCount {
		impostors = selectCount
	}

	s.Players = make(map[string]*Player, selectCount)
	s.playerOrder = s.playerOrder[:0]
	s.Votes = make(map[string]string)
	s.Result = nil

	perm := rand.Perm(len(pool))
	selected := make([]*Player, 0, selectCount)
	for _, idx := range perm[:selectCount] {
		c := pool[idx]
		p := &Player{
			Participant: game.Participant{ID: c.ID, Name: c.Name, JoinedAt: time.Now()},
			Role:        RoleCivilian,
		}
		selected = append(selected, p)
		s.Players[p.ID] = p
		s.playerOrder = append(s.playerOrder, p.ID)
	}
	for _, idx := range rand.Perm(selectCount)[:impostors] {
		selected[idx].Role = RoleImpostor
	}
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

func (m *Machine) Start(eventID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "start", StatusWaiting); err != nil {
		m.mu.Unlock()
		return err
	}
	if len(s.Players) == 0 {
		m.mu.Unlock()
		return game.Invalidf("no players selected")
	}
	s.Status = StatusSubmitting
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// SubmitAnswer records one player's answer. The returned flag reports
// whether this write completed the round: once every active player has a
// non-empty answer, allAnswersIn advances the session to VOTING.
func (m *Machine) SubmitAnswer(eventID, playerID, answer string) (advanced bool, err error) {
	if strings.TrimSpace(answer) == "" {
		return false, game.Invalidf("answer must not be empty")
	}

	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "submitAnswer", StatusSubmitting); err != nil {
		m.mu.Unlock()
		return false, err
	}
	p, ok := s.Players[playerID]
	if !ok {
		m.mu.Unlock()
		return false, &game.NotFoundError{Kind: "player", ID: playerID}
	}

	p.Answer = answer
	if allAnswersIn(s) {
		s.Status = StatusVoting
		advanced = true
	}
	m.mu.Unlock()

	m.publish(eventID)
	return advanced, nil
}

// allAnswersIn is the auto-advance rule, evaluated after every answer
// write and after a player removal.
func allAnswersIn(s *Session) bool {
	if len(s.Players) == 0 {
		return false
	}
	for _, p := range s.Players {
		if strings.TrimSpace(p.Answer) == "" {
			return false
		}
	}
	return true
}

// CastVote records voter's pick; a later vote from the same voter
// overwrites the earlier one.
func (m *Machine) CastVote(eventID, voterID, targetID string) error {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "castVote", StatusVoting); err != nil {
		m.mu.Unlock()
		return err
	}
	if _, ok := s.Players[voterID]; !ok {
		m.mu.Unlock()
		return &game.NotFoundError{Kind: "player", ID: voterID}
	}
	if _, ok := s.Players[targetID]; !ok {
		m.mu.Unlock()
		return &game.NotFoundError{Kind: "player", ID: targetID}
	}

	s.Votes[voterID] = targetID
	m.mu.Unlock()

	m.publish(eventID)
	return nil
}

// Reveal tallies the votes and decides the winning side. Ties break to
// the first player in selection order holding the maximum.
func (m *Machine) Reveal(eventID string) (*Result, error) {
	m.mu.Lock()
	s := m.session(eventID)
	if err := game.Require(s.Status, "reveal", StatusVoting); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	counts := make(map[string]int, len(s.Players))
	for _, targetID := range s.Votes {
		counts[targetID]++
	}

	result := &Result{Tallies: make([]Tally, 0, len(s.playerOrder))}
	best := -1
	for _, id := range s.playerOrder {
		p := s.Players[id]
		votes := counts[id]
		result.Tallies = append(result.Tallies, Tally{PlayerID: id, Name: p.Name, Votes: votes})
		if votes > best {
			best = votes
			result.TargetID = id
			result.TargetName = p.Name
			result.TargetRole = p.Role
		}
	}

	if result.TargetRole == RoleImpostor {
		result.Winner = SidePublic
	} else {
		result.Winner = SideImpostor
	}

	s.Result = result
	s.Status = StatusReveal
	m.mu.Unlock()

	m.publish(eventID)
	return result, nil
}

func (m *Machine) ParticipantCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[eventID]; ok {
		return len(s.Players)
	}
	return 0
}

// Reset returns to WAITING; the configured prompts and counts survive.
func (m *Machine) Reset(eventID string) {
	m.mu.Lock()
	old := m.session(eventID)
	fresh := newSession()
	fresh.PublicPrompt = old.PublicPrompt
	fresh.ImpostorPrompt = old.ImpostorPrompt
	fresh.PlayerCount = old.PlayerCount
	fresh.ImpostorCount = old.ImpostorCount
	m.sessions[eventID] = fresh
	m.mu.Unlock()

	m.publish(eventID)
}

// RemoveParticipant drops a disconnected player together with their vote
// and votes aimed at them, then re-evaluates the auto-advance rule.
func (m *Machine) RemoveParticipant(eventID, playerID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[eventID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if _, exists := s.Players[playerID]; !exists {
		m.mu.Unlock()
		return false
	}

	delete(s.Players, playerID)
	for i, id := range s.playerOrder {
		if id == playerID {
			s.playerOrder = append(s.playerOrder[:i], s.playerOrder[i+1:]...)
			break
		}
	}
	delete(s.Votes, playerID)
	for voter, target := range s.Votes {
		if target == playerID {
			delete(s.Votes, voter)
		}
	}
	if s.Status == StatusSubmitting && allAnswersIn(s) {
		s.Status = StatusVoting
	}
	m.mu.Unlock()

	m.publish(eventID)
	return true
}
