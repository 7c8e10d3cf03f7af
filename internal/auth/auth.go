// Package auth ties a browser session to the wallet a player connected.
package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/apperr"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/wallet"
)

const playerKey = "player"

type ctxKey struct{}

// WithPlayer returns a context carrying the connected player's id.
func WithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, playerID)
}

func PlayerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

type Authenticator struct {
	store    *sessions.CookieStore
	name     string
	validate *validator.Validate
	log      *logger.Log

	// OnConnect runs after the address is validated and before the session
	// is saved. Returning an error aborts the connection.
	OnConnect func(ctx context.Context, playerID string) error
}

func New(cfg config.AuthConfig) *Authenticator {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	name := cfg.SessionName
	if name == "" {
		name = "meechain-session"
	}

	return &Authenticator{
		store:    store,
		name:     name,
		validate: validator.New(),
		log:      logger.New().With("component", "auth"),
	}
}

type connectRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

// POST /api/v1/connect
func (a *Authenticator) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.BadRequest("Invalid request body"))
		return
	}
	if err := a.validate.Struct(req); err != nil {
		apperr.Write(w, apperr.BadRequest("address must be a 0x-prefixed 20 byte hex string"))
		return
	}

	playerID, err := wallet.Normalize(req.Address)
	if err != nil {
		apperr.Write(w, apperr.BadRequest(err.Error()))
		return
	}

	if a.OnConnect != nil {
		if err := a.OnConnect(r.Context(), playerID); err != nil {
			a.log.WithError(err).With("player", playerID).Error("failed to load player on connect")
			apperr.Write(w, err)
			return
		}
	}

	session, _ := a.store.Get(r, a.name)
	session.Values[playerKey] = playerID
	if err := session.Save(r, w); err != nil {
		a.log.WithError(err).Error("failed to save session")
		apperr.Write(w, err)
		return
	}

	a.log.With("player", wallet.Short(playerID)).Info("wallet connected")
	apperr.WriteJSON(w, http.StatusOK, map[string]string{
		"player_id": playerID,
		"display":   wallet.Short(playerID),
	})
}

// POST /api/v1/disconnect
func (a *Authenticator) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := a.store.Get(r, a.name)
	delete(session.Values, playerKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlayerFromRequest reads the connected player from the session cookie.
func (a *Authenticator) PlayerFromRequest(r *http.Request) (string, bool) {
	session, err := a.store.Get(r, a.name)
	if err != nil {
		return "", false
	}
	id, ok := session.Values[playerKey].(string)
	return id, ok && id != ""
}

// Middleware rejects requests without a connected wallet and stores the
// player id on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := a.PlayerFromRequest(r)
		if !ok {
			apperr.Write(w, apperr.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), playerID)))
	})
}
