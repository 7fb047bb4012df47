package trivia

import "github.com/festivo/gamehub/game"

type View struct {
	Status        game.Status       `json:"status"`
	MediaURL      string            `json:"mediaUrl,omitempty"`
	QuestionCount int               `json:"questionCount"`
	Current       int               `json:"current"`
	Question      *QuestionView     `json:"question,omitempty"`
	Tallies       []int             `json:"tallies,omitempty"`
	Participants  []ParticipantView `json:"participants"`
}

type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	// Correct is only populated for the admin, or for everyone once the
	// question is revealed.
	Correct *int `json:"correctIndex,omitempty"`
}

type ParticipantView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Answered bool   `json:"answered"`
}

func (m *Machine) FullView(eventID string) any {
	return m.view(eventID, true)
}

func (m *Machine) LightView(eventID string) any {
	return m.view(eventID, false)
}

func (m *Machine) view(eventID string, full bool) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(eventID)
	v := View{
		Status:        s.Status,
		MediaURL:      s.MediaURL,
		QuestionCount: len(s.Questions),
		Current:       s.Current,
		Participants:  make([]ParticipantView, 0, len(s.Participants)),
	}

	if s.Current >= 0 && s.Current < len(s.Questions) {
		q := s.Questions[s.Current]
		qv := &QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
		if full || s.Status == StatusReveal || s.Status == StatusFinished {
			correct := q.CorrectIndex
			qv.Correct = &correct

			tallies := make([]int, len(q.Options))
			for _, option := range s.answers[s.Current] {
				tallies[option]++
			}
			v.Tallies = tallies
		}
		v.Question = qv
	}

	for _, id := range s.participantOrder {
		p, ok := s.Participants[id]
		if !ok {
			continue
		}
		_, answered := s.answers[s.Current][id]
		v.Participants = append(v.Participants, ParticipantView{
			ID:       p.ID,
			Name:     p.Name,
			Score:    p.Score,
			Answered: answered,
		})
	}
	return v
}
