// Package broadcast fans session snapshots out to every subscriber of an
// {event, game} pair.
package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/monitor"
	"github.com/festivo/gamehub/network"
	"github.com/festivo/gamehub/session"
)

var ErrUnknownGame = errors.New("no view source registered for game type")

// snapshotEnvelope is the frame payload for MsgTypeSnapshot.
type snapshotEnvelope struct {
	EventID string    `json:"eventId"`
	Game    game.Type `json:"game"`
	State   any       `json:"state"`
}

// Hub is the per-{event, game} registry of open stream sessions. Every
// accepted mutation ends in a Publish; views are rebuilt from the
// canonical session record on each call, never cached.
type Hub struct {
	sources map[game.Type]game.ViewSource
	topics  map[string]map[string]*session.Session
	mutex   sync.RWMutex
	monitor *monitor.Monitor
}

func NewHub(mon *monitor.Monitor) *Hub {
	return &Hub{
		sources: make(map[game.Type]game.ViewSource),
		topics:  make(map[string]map[string]*session.Session),
		monitor: mon,
	}
}

func topicKey(eventID string, gameType game.Type) string {
	return eventID + "/" + string(gameType)
}

// RegisterSource binds a game machine as the view builder for its type.
// Called once per game during wiring.
func (h *Hub) RegisterSource(gameType game.Type, src game.ViewSource) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.sources[gameType] = src
}

func (h *Hub) Register(s *session.Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	key := topicKey(s.EventID, s.GameType)
	if h.topics[key] == nil {
		h.topics[key] = make(map[string]*session.Session)
	}
	h.topics[key][s.ID] = s
}

func (h *Hub) Unregister(s *session.Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	key := topicKey(s.EventID, s.GameType)
	if subs, ok := h.topics[key]; ok {
		delete(subs, s.ID)
		if len(subs) == 0 {
			delete(h.topics, key)
		}
	}
}

func (h *Hub) SubscriberCount(eventID string, gameType game.Type) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.topics[topicKey(eventID, gameType)])
}

// Publish rebuilds both view projections and pushes a snapshot frame to
// every subscriber of the pair. A failed write is contained to its own
// connection; the read loop of that connection handles the eviction.
func (h *Hub) Publish(eventID string, gameType game.Type) {
	start := time.Now()

	h.mutex.RLock()
	src, ok := h.sources[gameType]
	if !ok {
		h.mutex.RUnlock()
		logger.Log.Errorf("publish for unregistered game type %s", gameType)
		return
	}
	subs := make([]*session.Session, 0, len(h.topics[topicKey(eventID, gameType)]))
	for _, s := range h.topics[topicKey(eventID, gameType)] {
		subs = append(subs, s)
	}
	h.mutex.RUnlock()

	if len(subs) == 0 {
		return
	}

	light, err := json.Marshal(snapshotEnvelope{EventID: eventID, Game: gameType, State: src.LightView(eventID)})
	if err != nil {
		logger.Log.Errorf("marshal light view for %s/%s: %v", eventID, gameType, err)
		return
	}
	full, err := json.Marshal(snapshotEnvelope{EventID: eventID, Game: gameType, State: src.FullView(eventID)})
	if err != nil {
		logger.Log.Errorf("marshal full view for %s/%s: %v", eventID, gameType, err)
		return
	}

	for _, s := range subs {
		payload := light
		if s.Admin {
			payload = full
		}
		if err := s.Send(network.MsgTypeSnapshot, payload); err != nil {
			logger.Log.Infof("snapshot write to session %s failed: %v", s.ID, err)
			continue
		}
	}

	if h.monitor != nil {
		h.monitor.ObserveBroadcast(time.Since(start))
	}
}

// SendCurrent pushes the current snapshot to a single session, used right
// after a stream opens.
func (h *Hub) SendCurrent(s *session.Session) error {
	h.mutex.RLock()
	src, ok := h.sources[s.GameType]
	h.mutex.RUnlock()
	if !ok {
		return ErrUnknownGame
	}

	state := src.LightView(s.EventID)
	if s.Admin {
		state = src.FullView(s.EventID)
	}
	payload, err := json.Marshal(snapshotEnvelope{EventID: s.EventID, Game: s.GameType, State: state})
	if err != nil {
		return err
	}
	return s.Send(network.MsgTypeSnapshot, payload)
}

// KeepAlive pings every open session once. Dead connections fail here and
// get reaped by their read loops; one bad socket never blocks the sweep.
func (h *Hub) KeepAlive() {
	h.mutex.RLock()
	var subs []*session.Session
	for _, topic := range h.topics {
		for _, s := range topic {
			subs = append(subs, s)
		}
	}
	h.mutex.RUnlock()

	for _, s := range subs {
		if err := s.Send(network.MsgTypeKeepAlive, nil); err != nil {
			logger.Log.Debugf("keepalive to session %s failed: %v", s.ID, err)
		}
	}
}
