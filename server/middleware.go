package server

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// adminClaims is the token shape issued by the main product backend for
// admin console sessions. This server only validates.
type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *GameServer) parseToken(r *http.Request) (*adminClaims, bool) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if raw == "" {
		return nil, false
	}

	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.adminSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}

// isAdmin reports whether the request carries a valid admin token. Used
// for admission bypass and for choosing the full view projection.
func (s *GameServer) isAdmin(r *http.Request) bool {
	claims, ok := s.parseToken(r)
	return ok && claims.Role == "admin"
}

// requireAdmin guards control-plane routes (configure, start, draw,
// moderation, reset).
func (s *GameServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin token required"})
			return
		}
		next(w, r)
	}
}
