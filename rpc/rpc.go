// Package rpc exposes an internal net/rpc surface for the admin console
// backend: on-demand settlement computation and live session stats.
package rpc

import (
	"context"
	"net"
	"net/rpc"
	"time"

	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/ledger"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/settle"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins serving RPC connections until the listener closes.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Counter reports how many participants a game machine holds for an event.
type Counter interface {
	ParticipantCount(eventID string) int
}

// AdminService is the struct registered with net/rpc. Methods follow the
// net/rpc signature rules: exported args, reply pointer, error return.
type AdminService struct {
	ledgerSource ledger.Source
	counters     map[game.Type]Counter
}

func NewAdminService(ledgerSource ledger.Source, counters map[game.Type]Counter) *AdminService {
	return &AdminService{ledgerSource: ledgerSource, counters: counters}
}

type SettlementArgs struct {
	EventID string
}

type SettlementReply struct {
	Result settle.Result
}

func (a *AdminService) ComputeSettlement(args *SettlementArgs, reply *SettlementReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := a.ledgerSource.Snapshot(ctx, args.EventID)
	if err != nil {
		return err
	}
	reply.Result = settle.Compute(snap)
	return nil
}

type StatsArgs struct {
	EventID string
}

type StatsReply struct {
	Participants map[string]int
}

func (a *AdminService) SessionStats(args *StatsArgs, reply *StatsReply) error {
	reply.Participants = make(map[string]int, len(a.counters))
	for gameType, counter := range a.counters {
		reply.Participants[string(gameType)] = counter.ParticipantCount(args.EventID)
	}
	return nil
}
