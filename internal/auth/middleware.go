package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Middleware attaches the session for requests carrying a valid token.
// Anonymous requests pass through; a present but invalid token is a 401.
func Middleware(v *Verifier, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := v.Verify(token)
			if err != nil {
				if logger != nil {
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected access token")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
				return
			}

			ctx := WithToken(WithSession(r.Context(), session), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
