package confessions

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/media"
)

const testEvent = "evt-confessions"

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

func newTestMachine(tier admission.Tier, resolver media.Resolver) *Machine {
	return NewMachine(admission.StaticPlanSource{Fixed: tier}, game.NopBroadcaster{}, nil, resolver)
}

func TestAddMessageTrimsAndStyles(t *testing.T) {
	m := newTestMachine(admission.TierPremium, nil)

	msg, err := m.AddMessage(context.Background(), testEvent, "  hello wall  ", "Ana", false)
	require.NoError(t, err)

	assert.Equal(t, "hello wall", msg.Text)
	assert.Equal(t, "Ana", msg.Author)
	assert.Contains(t, displayColors, msg.Color)
	assert.GreaterOrEqual(t, msg.Rotation, -3)
	assert.LessOrEqual(t, msg.Rotation, 3)
}

func TestAddMessageRejectsEmpty(t *testing.T) {
	m := newTestMachine(admission.TierPremium, nil)

	_, err := m.AddMessage(context.Background(), testEvent, "   ", "", false)
	var validation *game.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestAddMessageTruncatesLongText(t *testing.T) {
	m := newTestMachine(admission.TierPremium, nil)

	msg, err := m.AddMessage(context.Background(), testEvent, strings.Repeat("ä", MaxMessageLength+50), "", false)
	require.NoError(t, err)

	assert.Equal(t, MaxMessageLength, len([]rune(msg.Text)))
}

func TestAddMessageRejectedWhileStopped(t *testing.T) {
	m := newTestMachine(admission.TierPremium, nil)
	require.NoError(t, m.Stop(testEvent))

	_, err := m.AddMessage(context.Background(), testEvent, "too late", "", false)
	var illegal *game.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)

	require.NoError(t, m.Start(testEvent))
	_, err = m.AddMessage(context.Background(), testEvent, "open again", "", false)
	assert.NoError(t, err)
}

func TestAddMessageEnforcesPlanQuota(t *testing.T) {
	m := newTestMachine(admission.TierFree, nil)

	for i := 0; i < 50; i++ {
		_, err := m.AddMessage(context.Background(), testEvent, fmt.Sprintf("message %d", i), "", false)
		require.NoError(t, err)
	}

	_, err := m.AddMessage(context.Background(), testEvent, "over quota", "", false)
	var quota *game.QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 50, quota.Limit)

	// The host keeps posting past the ceiling.
	_, err = m.AddMessage(context.Background(), testEvent, "host note", "", true)
	assert.NoError(t, err)
}

func TestWallCapDropsOldestMessages(t *testing.T) {
	m := newTestMachine(admission.TierPremium, nil)

	for i := 0; i < MaxMessages+10; i++ {
		_, err := m.AddMessage(context.Background(), testEvent, fmt.Sprintf("message %d", i), "", false)
		require.NoError(t, err)
	}

	s := m.sessions[testEvent]
	require.Len(t, s.Messages, MaxMessages)
	assert.Equal(t, "message 10", s.Messages[0].Text)
	assert.Equal(t, fmt.Sprintf("message %d", MaxMessages+9), s.Messages[MaxMessages-1].Text)
}

func TestConfigureSetsBackgroundFromAlbum(t *testing.T) {
	resolver := media.StaticResolver{Items: []string{"https://cdn/bg.jpg", "https://cdn/other.jpg"}}
	m := newTestMachine(admission.TierPremium, resolver)

	require.NoError(t, m.Configure(context.Background(), testEvent, "https://album"))
	assert.Equal(t, "https://cdn/bg.jpg", m.sessions[testEvent].BackgroundURL)
}

func TestConfigureFallsBackOnResolverFailure(t *testing.T) {
	resolver := media.StaticResolver{Err: fmt.Errorf("album service down")}
	m := newTestMachine(admission.TierPremium, resolver)

	require.NoError(t, m.Configure(context.Background(), testEvent, "https://album"))
	assert.Equal(t, media.DefaultBackground, m.sessions[testEvent].BackgroundURL)
}

func TestResetClearsWallKeepsBackground(t *testing.T) {
	resolver := media.StaticResolver{Items: []string{"https://cdn/bg.jpg"}}
	m := newTestMachine(admission.TierPremium, resolver)
	require.NoError(t, m.Configure(context.Background(), testEvent, "https://album"))
	_, err := m.AddMessage(context.Background(), testEvent, "hello", "", false)
	require.NoError(t, err)

	m.Reset(testEvent)

	s := m.sessions[testEvent]
	assert.Empty(t, s.Messages)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, "https://cdn/bg.jpg", s.BackgroundURL)
}

func TestRemoveParticipantIsNoOp(t *testing.T) {
	m := newTestMachine(admission.TierPremium, nil)
	_, err := m.AddMessage(context.Background(), testEvent, "hello", "Ana", false)
	require.NoError(t, err)

	assert.False(t, m.RemoveParticipant(testEvent, "anyone"))
	assert.Equal(t, 1, m.ParticipantCount(testEvent))
}
