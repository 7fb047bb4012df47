package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/game/impostor"
	"github.com/festivo/gamehub/game/raffle"
	"github.com/festivo/gamehub/game/trivia"
	"github.com/festivo/gamehub/settle"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return game.Invalidf("malformed request body: %v", err)
	}
	return nil
}

// writeError maps the domain error taxonomy onto HTTP status codes. Quota
// rejections carry the count and limit so the client can render an
// upgrade prompt.
func writeError(w http.ResponseWriter, err error) {
	var validation *game.ValidationError
	var illegal *game.IllegalTransitionError
	var notFound *game.NotFoundError
	var quota *game.QuotaExceededError
	var external *game.ExternalDependencyError

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &illegal):
		respondJSON(w, http.StatusConflict, map[string]string{"error": illegal.Error()})
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &quota):
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error": quota.Error(),
			"count": quota.Count,
			"limit": quota.Limit,
		})
	case errors.As(err, &external):
		respondJSON(w, http.StatusBadGateway, map[string]string{"error": external.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func eventID(r *http.Request) string {
	return mux.Vars(r)["event"]
}

// state returns the current session through the caller's projection.
func (s *GameServer) handleState(w http.ResponseWriter, r *http.Request) {
	gameType, ok := game.ParseType(mux.Vars(r)["game"])
	if !ok {
		writeError(w, &game.NotFoundError{Kind: "game", ID: mux.Vars(r)["game"]})
		return
	}
	src := s.views[gameType]
	if s.isAdmin(r) {
		respondJSON(w, http.StatusOK, src.FullView(eventID(r)))
		return
	}
	respondJSON(w, http.StatusOK, src.LightView(eventID(r)))
}

func (s *GameServer) handleReset(w http.ResponseWriter, r *http.Request) {
	gameType, ok := game.ParseType(mux.Vars(r)["game"])
	if !ok {
		writeError(w, &game.NotFoundError{Kind: "game", ID: mux.Vars(r)["game"]})
		return
	}
	switch gameType {
	case game.TypeBingo:
		s.bingo.Reset(eventID(r))
	case game.TypeRaffle:
		s.raffle.Reset(eventID(r))
	case game.TypeImpostor:
		s.impostor.Reset(eventID(r))
	case game.TypeConfessions:
		s.confessions.Reset(eventID(r))
	case game.TypeTrivia:
		s.trivia.Reset(eventID(r))
	}
	respondJSON(w, http.StatusOK, s.views[gameType].FullView(eventID(r)))
}

func (s *GameServer) handleSettlement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := s.ledgerSource.Snapshot(ctx, eventID(r))
	if err != nil {
		writeError(w, &game.ExternalDependencyError{Dependency: "ledger source", Err: err})
		return
	}
	respondJSON(w, http.StatusOK, settle.Compute(snap))
}

// --- bingo ---

type joinRequest struct {
	Name string `json:"name"`
}

func (s *GameServer) handleBingoJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.bingo.Join(r.Context(), eventID(r), req.Name, s.isAdmin(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *GameServer) handleBingoConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme    string   `json:"theme"`
		Prompts  []string `json:"prompts"`
		MediaURL string   `json:"mediaUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.bingo.Configure(eventID(r), req.Theme, req.Prompts, req.MediaURL); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.bingo.FullView(eventID(r)))
}

func (s *GameServer) handleBingoStart(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeBingo, s.bingo.Start)
}

func (s *GameServer) handleBingoStop(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeBingo, s.bingo.Stop)
}

func (s *GameServer) handleBingoFinish(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeBingo, s.bingo.Finish)
}

func (s *GameServer) handleBingoUploadCell(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participantId"`
		PromptID      string `json:"promptId"`
		PhotoURL      string `json:"photoUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.bingo.UploadCell(eventID(r), req.ParticipantID, req.PromptID, req.PhotoURL); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.bingo.LightView(eventID(r)))
}

func (s *GameServer) handleBingoSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sub, err := s.bingo.Submit(eventID(r), req.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (s *GameServer) handleBingoApprove(w http.ResponseWriter, r *http.Request) {
	s.moderateBingo(w, r, true)
}

func (s *GameServer) handleBingoReject(w http.ResponseWriter, r *http.Request) {
	s.moderateBingo(w, r, false)
}

func (s *GameServer) moderateBingo(w http.ResponseWriter, r *http.Request, approve bool) {
	if err := s.bingo.Moderate(eventID(r), mux.Vars(r)["submission"], approve); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.bingo.FullView(eventID(r)))
}

// --- raffle ---

func (s *GameServer) handleRaffleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.raffle.Join(r.Context(), eventID(r), req.Name, s.isAdmin(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *GameServer) handleRaffleConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode     raffle.Mode `json:"mode"`
		AlbumURL string      `json:"albumUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.raffle.Configure(r.Context(), eventID(r), req.Mode, req.AlbumURL); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.raffle.FullView(eventID(r)))
}

func (s *GameServer) handleRaffleDraw(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeRaffle, s.raffle.Draw)
}

// --- impostor ---

func (s *GameServer) handleImpostorConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublicPrompt   string `json:"publicPrompt"`
		ImpostorPrompt string `json:"impostorPrompt"`
		PlayerCount    int    `json:"playerCount"`
		ImpostorCount  int    `json:"impostorCount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.impostor.Configure(eventID(r), req.PublicPrompt, req.ImpostorPrompt, req.PlayerCount, req.ImpostorCount); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.impostor.FullView(eventID(r)))
}

func (s *GameServer) handleImpostorSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Candidates []impostor.Candidate `json:"candidates"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.impostor.SelectPlayers(eventID(r), req.Candidates); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.impostor.FullView(eventID(r)))
}

func (s *GameServer) handleImpostorStart(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeImpostor, s.impostor.Start)
}

func (s *GameServer) handleImpostorAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		Answer   string `json:"answer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	advanced, err := s.impostor.SubmitAnswer(eventID(r), req.PlayerID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"advancedToVoting": advanced})
}

func (s *GameServer) handleImpostorVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VoterID  string `json:"voterId"`
		TargetID string `json:"targetId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.impostor.CastVote(eventID(r), req.VoterID, req.TargetID); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *GameServer) handleImpostorReveal(w http.ResponseWriter, r *http.Request) {
	result, err := s.impostor.Reveal(eventID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// --- confessions ---

func (s *GameServer) handleConfessionsConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AlbumURL string `json:"albumUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.confessions.Configure(r.Context(), eventID(r), req.AlbumURL); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.confessions.FullView(eventID(r)))
}

func (s *GameServer) handleConfessionsMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Author string `json:"author"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.confessions.AddMessage(r.Context(), eventID(r), req.Text, req.Author, s.isAdmin(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *GameServer) handleConfessionsStart(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeConfessions, s.confessions.Start)
}

func (s *GameServer) handleConfessionsStop(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeConfessions, s.confessions.Stop)
}

// --- trivia ---

func (s *GameServer) handleTriviaJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.trivia.Join(r.Context(), eventID(r), req.Name, s.isAdmin(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *GameServer) handleTriviaConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Questions []trivia.Question `json:"questions"`
		MediaURL  string            `json:"mediaUrl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.trivia.Configure(eventID(r), req.Questions, req.MediaURL); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.trivia.FullView(eventID(r)))
}

func (s *GameServer) handleTriviaStart(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeTrivia, s.trivia.Start)
}

func (s *GameServer) handleTriviaAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participantId"`
		Option        int    `json:"option"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.trivia.Answer(eventID(r), req.ParticipantID, req.Option); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *GameServer) handleTriviaReveal(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeTrivia, s.trivia.Reveal)
}

func (s *GameServer) handleTriviaNext(w http.ResponseWriter, r *http.Request) {
	s.simpleOp(w, r, game.TypeTrivia, s.trivia.Next)
}

// simpleOp runs a no-argument machine operation and answers with the
// caller's projection of the resulting state.
func (s *GameServer) simpleOp(w http.ResponseWriter, r *http.Request, gameType game.Type, op func(string) error) {
	if err := op(eventID(r)); err != nil {
		writeError(w, err)
		return
	}
	src := s.views[gameType]
	if s.isAdmin(r) {
		respondJSON(w, http.StatusOK, src.FullView(eventID(r)))
		return
	}
	respondJSON(w, http.StatusOK, src.LightView(eventID(r)))
}
