package bingo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/game"
)

const testEvent = "evt-bingo"

func newTestMachine(tier admission.Tier) *Machine {
	return NewMachine(admission.StaticPlanSource{Fixed: tier}, game.NopBroadcaster{}, nil)
}

func ninePrompts() []string {
	prompts := make([]string, 9)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("prompt %d", i)
	}
	return prompts
}

// startedGame configures nine prompts, joins one participant and starts
// play. It returns the machine, the participant and the prompt ids in
// grid index order.
func startedGame(t *testing.T) (*Machine, *Participant, []string) {
	t.Helper()

	m := newTestMachine(admission.TierPremium)
	require.NoError(t, m.Configure(testEvent, "Wedding", ninePrompts(), ""))

	p, err := m.Join(context.Background(), testEvent, "Ana", false)
	require.NoError(t, err)

	require.NoError(t, m.Start(testEvent))

	s := m.sessions[testEvent]
	ids := make([]string, len(s.Prompts))
	for i, prompt := range s.Prompts {
		ids[i] = prompt.ID
	}
	return m, p, ids
}

func fillCells(t *testing.T, m *Machine, participantID string, promptIDs []string, indexes ...int) {
	t.Helper()
	for _, i := range indexes {
		require.NoError(t, m.UploadCell(testEvent, participantID, promptIDs[i], "https://cdn/p.jpg"))
	}
}

func TestConfigureRequiresTheme(t *testing.T) {
	m := newTestMachine(admission.TierFree)
	err := m.Configure(testEvent, "  ", ninePrompts(), "")

	var validation *game.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestStartRequiresPrompts(t *testing.T) {
	m := newTestMachine(admission.TierFree)
	err := m.Start(testEvent)

	var validation *game.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestJoinEnforcesPlanCeiling(t *testing.T) {
	m := newTestMachine(admission.TierFree)
	require.NoError(t, m.Configure(testEvent, "Wedding", ninePrompts(), ""))

	for i := 0; i < 10; i++ {
		_, err := m.Join(context.Background(), testEvent, fmt.Sprintf("guest %d", i), false)
		require.NoError(t, err)
	}

	_, err := m.Join(context.Background(), testEvent, "one too many", false)
	var quota *game.QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 10, quota.Count)
	assert.Equal(t, 10, quota.Limit)

	// Administrators bypass the ceiling.
	_, err = m.Join(context.Background(), testEvent, "the host", true)
	assert.NoError(t, err)
}

func TestWinDetectionRowsColumnsDiagonals(t *testing.T) {
	cases := []struct {
		name      string
		indexes   []int
		lines     int
		fullHouse bool
	}{
		{name: "empty card", indexes: nil, lines: 0},
		{name: "partial row", indexes: []int{0, 1}, lines: 0},
		{name: "top row", indexes: []int{0, 1, 2}, lines: 1},
		{name: "left column", indexes: []int{0, 3, 6}, lines: 1},
		{name: "main diagonal", indexes: []int{0, 4, 8}, lines: 1},
		{name: "anti diagonal", indexes: []int{2, 4, 6}, lines: 1},
		{name: "two rows", indexes: []int{0, 1, 2, 3, 4, 5}, lines: 2},
		{name: "full house", indexes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, lines: 8, fullHouse: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, p, ids := startedGame(t)
			fillCells(t, m, p.ID, ids, tc.indexes...)

			card := m.sessions[testEvent].Participants[p.ID].Card
			assert.Equal(t, tc.lines, card.CompletedLines)
			assert.Equal(t, tc.fullHouse, card.FullHouse)
		})
	}
}

func TestUploadCellOverwriteIsNotDoubleCounted(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)
	require.NoError(t, m.UploadCell(testEvent, p.ID, ids[1], "https://cdn/retake.jpg"))

	card := m.sessions[testEvent].Participants[p.ID].Card
	assert.Equal(t, 1, card.CompletedLines)
	assert.Len(t, card.Cells, 3)
	assert.Equal(t, "https://cdn/retake.jpg", card.Cells[ids[1]].PhotoURL)
}

func TestUploadCellRejectedOutsidePlaying(t *testing.T) {
	m, p, ids := startedGame(t)
	require.NoError(t, m.Stop(testEvent))

	err := m.UploadCell(testEvent, p.ID, ids[0], "https://cdn/p.jpg")
	var illegal *game.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}

func TestUploadCellUnknownPrompt(t *testing.T) {
	m, p, _ := startedGame(t)

	err := m.UploadCell(testEvent, p.ID, "no-such-prompt", "https://cdn/p.jpg")
	var notFound *game.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSubmitRequiresWin(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1)

	_, err := m.Submit(testEvent, p.ID)
	var validation *game.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestSubmitFreezesCardAndBlocksResubmit(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)

	sub, err := m.Submit(testEvent, p.ID)
	require.NoError(t, err)
	assert.Equal(t, SubmissionPending, sub.Status)
	assert.Equal(t, 1, sub.Card.CompletedLines)

	// The frozen copy survives later card activity untouched.
	err = m.UploadCell(testEvent, p.ID, ids[3], "https://cdn/late.jpg")
	var illegal *game.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Len(t, sub.Card.Cells, 3)

	_, err = m.Submit(testEvent, p.ID)
	require.ErrorAs(t, err, &illegal)
	assert.Len(t, m.sessions[testEvent].Submissions, 1)
}

func TestModerateIsIdempotent(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)
	sub, err := m.Submit(testEvent, p.ID)
	require.NoError(t, err)

	require.NoError(t, m.Moderate(testEvent, sub.ID, true))
	assert.Equal(t, SubmissionApproved, sub.Status)
	require.NoError(t, m.Moderate(testEvent, sub.ID, true))
	assert.Equal(t, SubmissionApproved, sub.Status)

	// Approval never forces the round to end.
	assert.Equal(t, StatusPlaying, m.sessions[testEvent].Status)

	require.NoError(t, m.Moderate(testEvent, sub.ID, false))
	assert.Equal(t, SubmissionRejected, sub.Status)
}

func TestModerateUnknownSubmission(t *testing.T) {
	m, _, _ := startedGame(t)

	err := m.Moderate(testEvent, "no-such-submission", true)
	var notFound *game.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStopAndResumeKeepsCards(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)

	require.NoError(t, m.Stop(testEvent))
	assert.Equal(t, StatusReview, m.sessions[testEvent].Status)

	require.NoError(t, m.Start(testEvent))
	card := m.sessions[testEvent].Participants[p.ID].Card
	assert.Equal(t, 1, card.CompletedLines)
}

func TestResetKeepsConfiguration(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)
	_, err := m.Submit(testEvent, p.ID)
	require.NoError(t, err)

	m.Reset(testEvent)

	s := m.sessions[testEvent]
	assert.Equal(t, StatusWaiting, s.Status)
	assert.Equal(t, "Wedding", s.Theme)
	assert.Len(t, s.Prompts, 9)
	assert.Empty(t, s.Participants)
	assert.Empty(t, s.Submissions)
}

func TestRemoveParticipantKeepsSubmissions(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)
	sub, err := m.Submit(testEvent, p.ID)
	require.NoError(t, err)

	assert.True(t, m.RemoveParticipant(testEvent, p.ID))
	assert.False(t, m.RemoveParticipant(testEvent, p.ID))

	s := m.sessions[testEvent]
	assert.Empty(t, s.Participants)
	require.Len(t, s.Submissions, 1)
	assert.Equal(t, SubmissionPending, s.Submissions[sub.ID].Status)
}

// countingBroadcaster tallies Publish calls per event.
type countingBroadcaster struct {
	published int
}

func (b *countingBroadcaster) Publish(string, game.Type) { b.published++ }

func TestRemoveParticipantBroadcastsExactlyOnce(t *testing.T) {
	b := &countingBroadcaster{}
	m := NewMachine(admission.StaticPlanSource{Fixed: admission.TierPremium}, b, nil)
	require.NoError(t, m.Configure(testEvent, "Wedding", ninePrompts(), ""))
	p, err := m.Join(context.Background(), testEvent, "Ana", false)
	require.NoError(t, err)

	before := b.published
	assert.True(t, m.RemoveParticipant(testEvent, p.ID))
	assert.Equal(t, before+1, b.published)

	// A second removal changes nothing and stays silent.
	assert.False(t, m.RemoveParticipant(testEvent, p.ID))
	assert.Equal(t, before+1, b.published)
}

func TestMidGamePromptChangeRecomputesCards(t *testing.T) {
	m, p, ids := startedGame(t)
	fillCells(t, m, p.ID, ids, 0, 1, 2)

	require.NoError(t, m.Configure(testEvent, "Wedding", ninePrompts(), ""))

	// All prompt ids changed, so the old cells no longer map to the grid.
	card := m.sessions[testEvent].Participants[p.ID].Card
	assert.Zero(t, card.CompletedLines)
	assert.False(t, card.FullHouse)
}
