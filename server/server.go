package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/broadcast"
	"github.com/festivo/gamehub/config"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/game/bingo"
	"github.com/festivo/gamehub/game/confessions"
	"github.com/festivo/gamehub/game/impostor"
	"github.com/festivo/gamehub/game/raffle"
	"github.com/festivo/gamehub/game/trivia"
	"github.com/festivo/gamehub/ledger"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/media"
	"github.com/festivo/gamehub/monitor"
	gamehubrpc "github.com/festivo/gamehub/rpc"
	"github.com/festivo/gamehub/session"
	"github.com/festivo/gamehub/timer"
)

// GameServer wires the game machines, the broadcast hub and the stream
// transport behind one HTTP listener.
type GameServer struct {
	addr          string
	publicBaseURL string
	adminSecret   string
	streamTimeout time.Duration
	upgrader      websocket.Upgrader

	hub            *broadcast.Hub
	sessionManager *session.Manager
	scheduler      *timer.Manager
	monitor        *monitor.Monitor
	rpcServer      *gamehubrpc.Server

	bingo       *bingo.Machine
	raffle      *raffle.Machine
	impostor    *impostor.Machine
	confessions *confessions.Machine
	trivia      *trivia.Machine

	views    map[game.Type]game.ViewSource
	removers map[game.Type]game.ParticipantRemover

	ledgerSource ledger.Source
	shutdownChan chan struct{}
}

func NewGameServer(cfg *config.Config, ledgerSource ledger.Source, plans admission.PlanSource, resolver media.Resolver) *GameServer {
	mon := monitor.NewMonitor("gamehub")
	hub := broadcast.NewHub(mon)
	scheduler := timer.NewManager()

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		publicBaseURL:  cfg.Server.PublicBaseURL,
		adminSecret:    cfg.Auth.AdminSecret,
		hub:            hub,
		sessionManager: session.NewManager(),
		scheduler:      scheduler,
		monitor:        mon,
		ledgerSource:   ledgerSource,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // phones connect from the event's own domain or the app
			},
		},
	}

	countdown := time.Duration(cfg.Games.RaffleCountdownSeconds) * time.Second
	s.bingo = bingo.NewMachine(plans, hub, mon)
	s.raffle = raffle.NewMachine(plans, hub, mon, resolver, scheduler, countdown)
	s.impostor = impostor.NewMachine(hub, mon)
	s.confessions = confessions.NewMachine(plans, hub, mon, resolver)
	s.trivia = trivia.NewMachine(plans, hub, mon)

	s.views = map[game.Type]game.ViewSource{
		game.TypeBingo:       s.bingo,
		game.TypeRaffle:      s.raffle,
		game.TypeImpostor:    s.impostor,
		game.TypeConfessions: s.confessions,
		game.TypeTrivia:      s.trivia,
	}
	for gameType, src := range s.views {
		hub.RegisterSource(gameType, src)
	}

	s.removers = map[game.Type]game.ParticipantRemover{
		game.TypeBingo:       s.bingo,
		game.TypeRaffle:      s.raffle,
		game.TypeImpostor:    s.impostor,
		game.TypeConfessions: s.confessions,
		game.TypeTrivia:      s.trivia,
	}

	keepalive := time.Duration(cfg.Games.KeepAliveSeconds) * time.Second
	scheduler.Every(keepalive, hub.KeepAlive)
	// A stream that misses three consecutive keepalives is dead.
	s.streamTimeout = 3 * keepalive

	rpcServer, err := gamehubrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := gamehubrpc.NewAdminService(ledgerSource, map[game.Type]gamehubrpc.Counter{
		game.TypeBingo:       s.bingo,
		game.TypeRaffle:      s.raffle,
		game.TypeImpostor:    s.impostor,
		game.TypeConfessions: s.confessions,
		game.TypeTrivia:      s.trivia,
	})
	if err := rpc.RegisterName("Admin", adminService); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}

	if cfg.Server.MonitorAddress != "" {
		mon.StartServer(cfg.Server.MonitorAddress)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Router())
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.scheduler.Stop()
	s.rpcServer.Stop()
}

// Router builds the REST + stream surface. Every game shares the uniform
// state/join/config/start/reset shape plus its own action routes.
func (s *GameServer) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1/events/{event}").Subrouter()

	v1.HandleFunc("/settlement", s.handleSettlement).Methods(http.MethodGet)
	v1.HandleFunc("/qr", s.handleJoinQR).Methods(http.MethodGet)

	v1.HandleFunc("/{game}/state", s.handleState).Methods(http.MethodGet)
	v1.HandleFunc("/{game}/stream", s.handleStream).Methods(http.MethodGet)
	v1.HandleFunc("/{game}/reset", s.requireAdmin(s.handleReset)).Methods(http.MethodPost)

	v1.HandleFunc("/bingo/join", s.handleBingoJoin).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/config", s.requireAdmin(s.handleBingoConfig)).Methods(http.MethodPut)
	v1.HandleFunc("/bingo/start", s.requireAdmin(s.handleBingoStart)).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/stop", s.requireAdmin(s.handleBingoStop)).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/finish", s.requireAdmin(s.handleBingoFinish)).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/cells", s.handleBingoUploadCell).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/submit", s.handleBingoSubmit).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/submissions/{submission}/approve", s.requireAdmin(s.handleBingoApprove)).Methods(http.MethodPost)
	v1.HandleFunc("/bingo/submissions/{submission}/reject", s.requireAdmin(s.handleBingoReject)).Methods(http.MethodPost)

	v1.HandleFunc("/raffle/join", s.handleRaffleJoin).Methods(http.MethodPost)
	v1.HandleFunc("/raffle/config", s.requireAdmin(s.handleRaffleConfig)).Methods(http.MethodPut)
	v1.HandleFunc("/raffle/draw", s.requireAdmin(s.handleRaffleDraw)).Methods(http.MethodPost)

	v1.HandleFunc("/impostor/config", s.requireAdmin(s.handleImpostorConfig)).Methods(http.MethodPut)
	v1.HandleFunc("/impostor/players", s.requireAdmin(s.handleImpostorSelect)).Methods(http.MethodPost)
	v1.HandleFunc("/impostor/start", s.requireAdmin(s.handleImpostorStart)).Methods(http.MethodPost)
	v1.HandleFunc("/impostor/answers", s.handleImpostorAnswer).Methods(http.MethodPost)
	v1.HandleFunc("/impostor/votes", s.handleImpostorVote).Methods(http.MethodPost)
	v1.HandleFunc("/impostor/reveal", s.requireAdmin(s.handleImpostorReveal)).Methods(http.MethodPost)

	v1.HandleFunc("/confessions/config", s.requireAdmin(s.handleConfessionsConfig)).Methods(http.MethodPut)
	v1.HandleFunc("/confessions/messages", s.handleConfessionsMessage).Methods(http.MethodPost)
	v1.HandleFunc("/confessions/start", s.requireAdmin(s.handleConfessionsStart)).Methods(http.MethodPost)
	v1.HandleFunc("/confessions/stop", s.requireAdmin(s.handleConfessionsStop)).Methods(http.MethodPost)

	v1.HandleFunc("/trivia/join", s.handleTriviaJoin).Methods(http.MethodPost)
	v1.HandleFunc("/trivia/config", s.requireAdmin(s.handleTriviaConfig)).Methods(http.MethodPut)
	v1.HandleFunc("/trivia/start", s.requireAdmin(s.handleTriviaStart)).Methods(http.MethodPost)
	v1.HandleFunc("/trivia/answers", s.handleTriviaAnswer).Methods(http.MethodPost)
	v1.HandleFunc("/trivia/reveal", s.requireAdmin(s.handleTriviaReveal)).Methods(http.MethodPost)
	v1.HandleFunc("/trivia/next", s.requireAdmin(s.handleTriviaNext)).Methods(http.MethodPost)

	return r
}
