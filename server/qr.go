package server

import (
	"fmt"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/festivo/gamehub/game"
)

// handleJoinQR renders a QR code pointing at the public join page for
// the event, for printing on table cards.
func (s *GameServer) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	joinURL := fmt.Sprintf("%s/join/%s", s.publicBaseURL, eventID(r))
	if g := r.URL.Query().Get("game"); g != "" {
		if _, ok := game.ParseType(g); !ok {
			writeError(w, &game.NotFoundError{Kind: "game", ID: g})
			return
		}
		joinURL += "?game=" + g
	}

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 512)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
