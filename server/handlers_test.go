package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/broadcast"
	"github.com/festivo/gamehub/game"
	"github.com/festivo/gamehub/game/bingo"
	"github.com/festivo/gamehub/game/confessions"
	"github.com/festivo/gamehub/game/impostor"
	"github.com/festivo/gamehub/game/raffle"
	"github.com/festivo/gamehub/game/trivia"
	"github.com/festivo/gamehub/ledger"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/media"
	"github.com/festivo/gamehub/session"
	"github.com/festivo/gamehub/timer"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

type staticLedger struct {
	snapshot ledger.Snapshot
}

func (s staticLedger) Snapshot(context.Context, string) (ledger.Snapshot, error) {
	return s.snapshot, nil
}

func (staticLedger) Close() error { return nil }

// newTestServer builds a server without binding any listeners.
func newTestServer(t *testing.T) *GameServer {
	t.Helper()

	hub := broadcast.NewHub(nil)
	scheduler := timer.NewManager()
	t.Cleanup(scheduler.Stop)

	plans := admission.StaticPlanSource{Fixed: admission.TierPremium}
	resolver := media.StaticResolver{Items: []string{"https://cdn/a.jpg"}}

	s := &GameServer{
		publicBaseURL:  "https://festivo.app",
		adminSecret:    testSecret,
		streamTimeout:  90 * time.Second,
		hub:            hub,
		sessionManager: session.NewManager(),
		scheduler:      scheduler,
		ledgerSource: staticLedger{snapshot: ledger.Snapshot{
			Participants: []ledger.Participant{
				{ID: "a", Name: "Ana", Weight: 1},
				{ID: "b", Name: "Bruno", Weight: 1},
			},
			Expenses: []ledger.Expense{{ID: "e1", Title: "Dinner", Total: 100}},
			Payments: []ledger.Payment{{ExpenseID: "e1", ParticipantID: "a", Amount: 100}},
		}},
		shutdownChan: make(chan struct{}),
	}

	s.bingo = bingo.NewMachine(plans, hub, nil)
	s.raffle = raffle.NewMachine(plans, hub, nil, resolver, scheduler, time.Hour)
	s.impostor = impostor.NewMachine(hub, nil)
	s.confessions = confessions.NewMachine(plans, hub, nil, resolver)
	s.trivia = trivia.NewMachine(plans, hub, nil)

	s.views = map[game.Type]game.ViewSource{
		game.TypeBingo:       s.bingo,
		game.TypeRaffle:      s.raffle,
		game.TypeImpostor:    s.impostor,
		game.TypeConfessions: s.confessions,
		game.TypeTrivia:      s.trivia,
	}
	s.removers = map[game.Type]game.ParticipantRemover{
		game.TypeBingo:       s.bingo,
		game.TypeRaffle:      s.raffle,
		game.TypeImpostor:    s.impostor,
		game.TypeConfessions: s.confessions,
		game.TypeTrivia:      s.trivia,
	}
	for gameType, src := range s.views {
		hub.RegisterSource(gameType, src)
	}
	return s
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRejectAnonymous(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/reset", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/v1/events/evt/bingo/config", "", map[string]any{"theme": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRejectForgedToken(t *testing.T) {
	router := newTestServer(t).Router()

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{Role: "admin"})
	signed, err := forged.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/reset", signed, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBingoRoundTrip(t *testing.T) {
	router := newTestServer(t).Router()
	token := adminToken(t)

	rec := doJSON(t, router, http.MethodPut, "/v1/events/evt/bingo/config", token, map[string]any{
		"theme":   "Wedding",
		"prompts": []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/join", "", map[string]string{"name": "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var joined struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	require.NotEmpty(t, joined.ID)

	// Cell upload before start is out of place.
	rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/cells", "", map[string]string{
		"participantId": joined.ID, "promptId": "x", "photoUrl": "https://cdn/p.jpg",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/start", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Submit without a completed line maps to 400.
	rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/submit", "", map[string]string{
		"participantId": joined.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown participant maps to 404.
	rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/bingo/submit", "", map[string]string{
		"participantId": "nobody",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateProjectionsByRole(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	token := adminToken(t)

	rec := doJSON(t, router, http.MethodPut, "/v1/events/evt/impostor/config", token, map[string]any{
		"publicPrompt":   "Favorite song?",
		"impostorPrompt": "Favorite movie?",
		"playerCount":    3,
		"impostorCount":  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/events/evt/impostor/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Favorite movie?")

	rec = doJSON(t, router, http.MethodGet, "/v1/events/evt/impostor/state", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Favorite movie?")
}

func TestStateUnknownGame(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/events/evt/poker/state", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuotaMapsToForbidden(t *testing.T) {
	srv := newTestServer(t)
	// Free plan for this server instance.
	srv.trivia = trivia.NewMachine(admission.StaticPlanSource{Fixed: admission.TierFree}, srv.hub, nil)
	srv.views[game.TypeTrivia] = srv.trivia
	router := srv.Router()
	token := adminToken(t)

	rec := doJSON(t, router, http.MethodPut, "/v1/events/evt/trivia/config", token, map[string]any{
		"questions": []map[string]any{
			{"text": "q", "options": []string{"a", "b"}, "correctIndex": 0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 10; i++ {
		rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/trivia/join", "", map[string]string{"name": "Guest"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/events/evt/trivia/join", "", map[string]string{"name": "Over"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var payload struct {
		Count int `json:"count"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 10, payload.Count)
	assert.Equal(t, 10, payload.Limit)
}

func TestMalformedBody(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/events/evt/raffle/join", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettlement(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/events/evt/settlement", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		TotalExpenses float64 `json:"totalExpenses"`
		Transactions  []struct {
			FromID string  `json:"fromId"`
			ToID   string  `json:"toId"`
			Amount float64 `json:"amount"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 100, result.TotalExpenses, 0.01)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "b", result.Transactions[0].FromID)
	assert.Equal(t, "a", result.Transactions[0].ToID)
}

func TestJoinQR(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/events/evt/qr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestResetRequiresKnownGame(t *testing.T) {
	router := newTestServer(t).Router()
	token := adminToken(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/events/evt/poker/reset", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
