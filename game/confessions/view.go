package confessions

import "github.com/festivo/gamehub/game"

type View struct {
	Status        game.Status `json:"status"`
	BackgroundURL string      `json:"backgroundUrl"`
	Messages      []Message   `json:"messages"`
}

// The wall is anonymous either way; the admin projection additionally
// carries the author hint collected at post time.
func (m *Machine) FullView(eventID string) any {
	return m.view(eventID, true)
}

func (m *Machine) LightView(eventID string) any {
	return m.view(eventID, false)
}

func (m *Machine) view(eventID string, withAuthors bool) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(eventID)
	messages := make([]Message, len(s.Messages))
	copy(messages, s.Messages)
	if !withAuthors {
		for i := range messages {
			messages[i].Author = ""
		}
	}
	return View{
		Status:        s.Status,
		BackgroundURL: s.BackgroundURL,
		Messages:      messages,
	}
}
