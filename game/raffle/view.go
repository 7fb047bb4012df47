package raffle

import (
	"time"

	"github.com/festivo/gamehub/game"
)

type View struct {
	Status       game.Status       `json:"status"`
	Mode         Mode              `json:"mode"`
	AlbumURL     string            `json:"albumUrl,omitempty"`
	MediaItems   []string          `json:"mediaItems,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Winner       *Winner           `json:"winner,omitempty"`
}

type ParticipantView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Both projections are identical except that the participant one drops the
// resolved media list; phones only need the countdown and the winner.
func (m *Machine) FullView(eventID string) any {
	return m.view(eventID, true)
}

func (m *Machine) LightView(eventID string) any {
	return m.view(eventID, false)
}

func (m *Machine) view(eventID string, includeMedia bool) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(eventID)
	v := View{
		Status:       s.Status,
		Mode:         s.Mode,
		AlbumURL:     s.AlbumURL,
		Participants: make([]ParticipantView, 0, len(s.Participants)),
		Winner:       s.Winner,
	}
	if includeMedia {
		v.MediaItems = s.MediaItems
	}
	for _, id := range s.participantOrder {
		p, ok := s.Participants[id]
		if !ok {
			continue
		}
		v.Participants = append(v.Participants, ParticipantView{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt})
	}
	return v
}
