package server

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivo/gamehub/broadcast"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/network"
	"github.com/festivo/gamehub/session"
)

// scriptedConn records outbound frames and serves inbound ones from a
// channel. Closing the channel looks like the peer hanging up.
type scriptedConn struct {
	mu        sync.Mutex
	sent      []network.Packet
	reads     chan *network.Packet
	deadlines int32
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{reads: make(chan *network.Packet, 8)}
}

func (c *scriptedConn) Send(msgID uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, network.Packet{MsgID: msgID, Data: data, Length: uint32(len(data))})
	return nil
}

func (c *scriptedConn) ReadPacket() (*network.Packet, error) {
	p, ok := <-c.reads
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}

func (c *scriptedConn) Close() error                  { return nil }
func (c *scriptedConn) RemoteAddr() net.Addr          { return nil }
func (c *scriptedConn) SetReadDeadline(time.Duration) { atomic.AddInt32(&c.deadlines, 1) }

func (c *scriptedConn) push(p *network.Packet) { c.reads <- p }
func (c *scriptedConn) drop()                  { close(c.reads) }

func (c *scriptedConn) sentTypes() []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]uint16, len(c.sent))
	for i, p := range c.sent {
		types[i] = p.MsgID
	}
	return types
}

// countingRemover wraps a machine so tests can observe eviction calls.
type countingRemover struct {
	inner game.ParticipantRemover
	calls int32
}

func (r *countingRemover) RemoveParticipant(eventID, participantID string) bool {
	atomic.AddInt32(&r.calls, 1)
	return r.inner.RemoveParticipant(eventID, participantID)
}

func TestStreamTeardownRemovesParticipantOnce(t *testing.T) {
	srv := newTestServer(t)
	remover := &countingRemover{inner: srv.bingo}
	srv.removers[game.TypeBingo] = remover

	p, err := srv.bingo.Join(context.Background(), "evt", "Ana", false)
	require.NoError(t, err)

	conn := newScriptedConn()
	sess := session.NewSession("s1", conn, "evt", game.TypeBingo)
	sess.ParticipantID = p.ID
	srv.attachStream(sess)

	types := conn.sentTypes()
	require.Len(t, types, 2)
	assert.Equal(t, uint16(network.MsgTypeHello), types[0])
	assert.Equal(t, uint16(network.MsgTypeSnapshot), types[1])

	conn.drop()
	require.Eventually(t, func() bool {
		return srv.sessionManager.Count() == 0
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, srv.bingo.ParticipantCount("evt"))
	assert.Equal(t, 0, srv.hub.SubscriberCount("evt", game.TypeBingo))
	assert.Equal(t, int32(1), atomic.LoadInt32(&remover.calls))
}

func TestStreamTeardownSparesParticipantWithLiveStream(t *testing.T) {
	srv := newTestServer(t)

	p, err := srv.bingo.Join(context.Background(), "evt", "Ana", false)
	require.NoError(t, err)

	ownConn := newScriptedConn()
	own := session.NewSession("s-own", ownConn, "evt", game.TypeBingo)
	own.ParticipantID = p.ID
	srv.attachStream(own)

	// A second stream claims the same participant id and hangs up.
	otherConn := newScriptedConn()
	other := session.NewSession("s-other", otherConn, "evt", game.TypeBingo)
	other.ParticipantID = p.ID
	srv.attachStream(other)

	otherConn.drop()
	require.Eventually(t, func() bool {
		return srv.sessionManager.Count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.bingo.ParticipantCount("evt"))

	// When the last stream holding the id drops, eviction happens.
	ownConn.drop()
	require.Eventually(t, func() bool {
		return srv.bingo.ParticipantCount("evt") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestReadLoopRearmsDeadlinePerFrame(t *testing.T) {
	srv := newTestServer(t)

	conn := newScriptedConn()
	sess := session.NewSession("s1", conn, "evt", game.TypeBingo)
	srv.attachStream(sess)

	for i := 0; i < 3; i++ {
		conn.push(&network.Packet{MsgID: network.MsgTypeKeepAlive})
	}
	conn.drop()

	require.Eventually(t, func() bool {
		return srv.sessionManager.Count() == 0
	}, time.Second, 10*time.Millisecond)

	// One deadline before each of the three reads plus the final one.
	assert.Equal(t, int32(4), atomic.LoadInt32(&conn.deadlines))
}

func TestStreamErrorFrameWhenSnapshotUnavailable(t *testing.T) {
	srv := newTestServer(t)
	srv.hub = broadcast.NewHub(nil) // no view sources registered

	conn := newScriptedConn()
	sess := session.NewSession("s1", conn, "evt", game.TypeBingo)
	srv.attachStream(sess)

	types := conn.sentTypes()
	require.Len(t, types, 2)
	assert.Equal(t, uint16(network.MsgTypeHello), types[0])
	assert.Equal(t, uint16(network.MsgTypeError), types[1])

	conn.drop()
}
