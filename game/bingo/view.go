package bingo

import (
	"time"

	"github.com/festivo/gamehub/game"
)

// View is the broadcast projection of a session. Photo payloads dominate
// frame size by orders of magnitude, so the participant projection carries
// only a presence flag per cell; the admin projection keeps photo refs for
// moderation. Both are rebuilt on every broadcast.
type View struct {
	Status       game.Status       `json:"status"`
	Theme        string            `json:"theme"`
	Prompts      []Prompt          `json:"prompts"`
	MediaURL     string            `json:"mediaUrl,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Submissions  []SubmissionView  `json:"submissions"`
}

type ParticipantView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	JoinedAt       time.Time  `json:"joinedAt"`
	Cells          []CellView `json:"cells"`
	CompletedLines int        `json:"completedLines"`
	FullHouse      bool       `json:"isFullHouse"`
	Submitted      bool       `json:"submitted"`
}

type CellView struct {
	PromptID string `json:"promptId"`
	HasPhoto bool   `json:"hasPhoto"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

type SubmissionView struct {
	ID             string           `json:"id"`
	ParticipantID  string           `json:"participantId"`
	Name           string           `json:"name"`
	Status         SubmissionStatus `json:"status"`
	CompletedLines int              `json:"completedLines"`
	FullHouse      bool             `json:"isFullHouse"`
	SubmittedAt    time.Time        `json:"submittedAt"`
	Cells          []CellView       `json:"cells"`
}

func (m *Machine) FullView(eventID string) any {
	return m.view(eventID, true)
}

func (m *Machine) LightView(eventID string) any {
	return m.view(eventID, false)
}

func (m *Machine) view(eventID string, photos bool) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(eventID)
	v := View{
		Status:       s.Status,
		Theme:        s.Theme,
		Prompts:      s.Prompts,
		MediaURL:     s.MediaURL,
		Participants: make([]ParticipantView, 0, len(s.Participants)),
		Submissions:  make([]SubmissionView, 0, len(s.Submissions)),
	}

	for _, id := range s.participantOrder {
		p, ok := s.Participants[id]
		if !ok {
			continue
		}
		v.Participants = append(v.Participants, ParticipantView{
			ID:             p.ID,
			Name:           p.Name,
			JoinedAt:       p.JoinedAt,
			Cells:          cellViews(p.Card, s.Prompts, photos),
			CompletedLines: p.Card.CompletedLines,
			FullHouse:      p.Card.FullHouse,
			Submitted:      p.Card.SubmittedAt != nil,
		})
	}

	for _, id := range s.submissionOrder {
		sub, ok := s.Submissions[id]
		if !ok {
			continue
		}
		v.Submissions = append(v.Submissions, SubmissionView{
			ID:             sub.ID,
			ParticipantID:  sub.ParticipantID,
			Name:           sub.Name,
			Status:         sub.Status,
			CompletedLines: sub.Card.CompletedLines,
			FullHouse:      sub.Card.FullHouse,
			SubmittedAt:    sub.SubmittedAt,
			Cells:          cellViews(&sub.Card, s.Prompts, photos),
		})
	}

	return v
}

func cellViews(card *Card, prompts []Prompt, photos bool) []CellView {
	views := make([]CellView, 0, len(prompts))
	for i, p := range prompts {
		if i >= 9 {
			break
		}
		cv := CellView{PromptID: p.ID}
		if cell, ok := card.Cells[p.ID]; ok {
			cv.HasPhoto = true
			if photos {
				cv.PhotoURL = cell.PhotoURL
			}
		}
		views = append(views, cv)
	}
	return views
}
