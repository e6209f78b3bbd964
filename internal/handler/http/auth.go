package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
)

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type callerKey struct{}

// Authenticator resolves the X-User-ID header to a stored user.
type Authenticator struct {
	users UserLookup
}

func NewAuthenticator(users UserLookup) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate rejects requests without a known caller with 401.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.FromString(r.Header.Get(UserIDHeader))
		if err != nil || id == uuid.Nil {
			respondWithError(w, http.StatusUnauthorized, errMissingUser.Error())
			return
		}

		caller, err := a.users.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				log.Warn().Stringer("user_id", id).Msg("Request from unknown user rejected")
				respondWithError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			log.Error().Err(err).Stringer("user_id", id).Msg("Failed to load caller")
			respondWithError(w, http.StatusInternalServerError, "Failed to authenticate request")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, errMissingUser.Error())
			return
		}
		if !caller.IsAdmin() {
			log.Warn().Stringer("user_id", caller.ID).Str("path", r.URL.Path).Msg("Admin route requested by non-admin")
			respondWithError(w, http.StatusForbidden, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(ctx context.Context) (*user.User, bool) {
	caller, ok := ctx.Value(callerKey{}).(*user.User)
	return caller, ok && caller != nil
}
