package impostor

import "github.com/festivo/gamehub/game"

type View struct {
	Status         game.Status  `json:"status"`
	PublicPrompt   string       `json:"publicPrompt"`
	ImpostorPrompt string       `json:"impostorPrompt,omitempty"`
	PlayerCount    int          `json:"playerCount"`
	ImpostorCount  int          `json:"impostorCount"`
	Players        []PlayerView `json:"players"`
	VotesCast      int          `json:"votesCast"`
	Result         *Result      `json:"result,omitempty"`
}

type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     Role   `json:"role,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Answered bool   `json:"answered"`
}

// FullView is for the admin console: roles, answers and the impostor
// prompt are visible at all times.
func (m *Machine) FullView(eventID string) any {
	return m.view(eventID, true)
}

// LightView hides roles until REVEAL and never carries the impostor
// prompt; a guest seeing it would give the game away. Answers become
// visible once voting starts, since players discuss them out loud.
func (m *Machine) LightView(eventID string) any {
	return m.view(eventID, false)
}

func (m *Machine) view(eventID string, full bool) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(eventID)
	revealed := s.Status == StatusReveal

	v := View{
		Status:        s.Status,
		PublicPrompt:  s.PublicPrompt,
		PlayerCount:   s.PlayerCount,
		ImpostorCount: s.ImpostorCount,
		Players:       make([]PlayerView, 0, len(s.Players)),
		VotesCast:     len(s.Votes),
		Result:        s.Result,
	}
	if full {
		v.ImpostorPrompt = s.ImpostorPrompt
	}

	for _, id := range s.playerOrder {
		p, ok := s.Players[id]
		if !ok {
			continue
		}
		pv := PlayerView{ID: p.ID, Name: p.Name, Answered: p.Answer != ""}
		if full || revealed {
			pv.Role = p.Role
		}
		if full || s.Status == StatusVoting || revealed {
			pv.Answer = p.Answer
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
