// Package auth manages the cached session token and classifies server
// errors that indicate the token is no longer valid.
package auth

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/tradterm/tradterm/internal/settings"
)

const tokenKey = "auth_token"

// Store caches the bearer token in the settings file so a restarted
// terminal can resume its session without logging in again.
type Store struct {
	settings *settings.Store
	log      zerolog.Logger
}

func NewStore(store *settings.Store, logger zerolog.Logger) *Store {
	return &Store{
		settings: store,
		log:      logger.With().Str("component", "auth").Logger(),
	}
}

// Token returns the cached token, or "" when none is stored. Satisfies
// api.TokenSource.
func (s *Store) Token() string {
	return s.settings.GetString(tokenKey, "")
}

func (s *Store) SetToken(token string) error {
	return s.settings.Set(tokenKey, token)
}

// Purge drops the cached token. Called when the server rejects it so
// the next start falls back to an interactive login.
func (s *Store) Purge() error {
	s.log.Info().Msg("purging cached auth token")
	return s.settings.Delete(tokenKey)
}

// authMarkers are substrings of server error strings that indicate an
// authentication or authorization failure rather than a bad request.
var authMarkers = []string{
	"unauthorized",
	"token",
	"auth",
	"does not belong to user",
}

// IsAuthError reports whether a recoverable server error should be
// treated as an authentication failure.
func IsAuthError(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
