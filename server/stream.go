package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/network"
	"github.com/festivo/gamehub/session"
)

// handleStream upgrades the request to a websocket and subscribes it to
// the event's game topic. The connection is read-mostly: clients only
// send keepalive frames, every state change arrives as a pushed
// snapshot.
func (s *GameServer) handleStream(w http.ResponseWriter, r *http.Request) {
	gameType, ok := game.ParseType(mux.Vars(r)["game"])
	if !ok {
		writeError(w, &game.NotFoundError{Kind: "game", ID: mux.Vars(r)["game"]})
		return
	}

	admin := s.isAdmin(r)
	participantID := r.URL.Query().Get("participant")

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("Stream upgrade failed: %v", err)
		return
	}

	sess := session.NewSession(uuid.New().String(), network.NewWSConnection(wsConn), eventID(r), gameType)
	sess.ParticipantID = participantID
	sess.Admin = admin

	s.attachStream(sess)
}

// attachStream registers the session, pushes the greeting and the
// current snapshot, then hands the connection to the read loop.
func (s *GameServer) attachStream(sess *session.Session) {
	s.sessionManager.Add(sess)
	s.hub.Register(sess)
	if s.monitor != nil {
		s.monitor.IncStreamClients()
	}

	logger.Log.Infof("Stream opened: session=%s event=%s game=%s admin=%v",
		sess.ID, sess.EventID, sess.GameType, sess.Admin)

	sess.Send(network.MsgTypeHello, []byte(sess.ID))
	if err := s.hub.SendCurrent(sess); err != nil {
		logger.Log.Warnf("Initial snapshot failed for session %s: %v", sess.ID, err)
		sess.Send(network.MsgTypeError, []byte("snapshot unavailable"))
	}

	go s.readLoop(sess)
}

// readLoop drains inbound frames until the peer goes away or stays
// silent past the stream timeout, then tears the session down.
func (s *GameServer) readLoop(sess *session.Session) {
	defer func() {
		s.hub.Unregister(sess)
		s.sessionManager.Remove(sess.ID)
		if s.monitor != nil {
			s.monitor.DecStreamClients()
		}
		sess.Close()
		s.releaseParticipant(sess)

		logger.Log.Infof("Stream closed: session=%s event=%s game=%s",
			sess.ID, sess.EventID, sess.GameType)
	}()

	for {
		if s.streamTimeout > 0 {
			sess.Conn.SetReadDeadline(s.streamTimeout)
		}
		packet, err := sess.Conn.ReadPacket()
		if err != nil {
			return
		}
		if packet.MsgID == network.MsgTypeKeepAlive {
			sess.Touch()
		}
	}
}

// releaseParticipant evicts the participant a closed session was bound
// to, unless another open stream for the same {event, game} still holds
// that participant. The claimed id only takes effect at disconnect, so
// a stream claiming someone else's id cannot kick them while their own
// stream is up.
func (s *GameServer) releaseParticipant(sess *session.Session) {
	if sess.ParticipantID == "" {
		return
	}
	for _, other := range s.sessionManager.GetByParticipant(sess.ParticipantID) {
		if other.EventID == sess.EventID && other.GameType == sess.GameType {
			return
		}
	}
	if remover, ok := s.removers[sess.GameType]; ok {
		remover.RemoveParticipant(sess.EventID, sess.ParticipantID)
	}
}
