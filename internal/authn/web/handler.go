// Package web implements the browser login flow: provider redirect,
// OAuth2 callback and logout, backed by a cookie session.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
)

type UserProvider interface {
	Authenticate(ctx context.Context, accessToken string) (*authn.AuthenticatedUser, error)
}

type Handler struct {
	mux          *http.ServeMux
	provider     authn.Provider
	users        UserProvider
	sessionStore sessions.Store

	sessionName        string
	baseURL            string
	prefix             string
	postLoginRedirect  string
	postLogoutRedirect string
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func NewHandler(provider authn.Provider, users UserProvider, sessionStore sessions.Store, funcs ...OptionFunc) *Handler {
	opts := NewOptions(funcs...)
	h := &Handler{
		mux:                http.NewServeMux(),
		provider:           provider,
		users:              users,
		sessionStore:       sessionStore,
		sessionName:        opts.SessionName,
		baseURL:            opts.BaseURL,
		prefix:             opts.Prefix,
		postLoginRedirect:  opts.PostLoginRedirect,
		postLogoutRedirect: opts.PostLogoutRedirect,
	}

	h.mux.HandleFunc(fmt.Sprintf("GET %s/login", h.prefix), h.handleLogin)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/callback", h.prefix), h.handleCallback)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/logout", h.prefix), h.handleLogout)

	return h
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := generateState()
	if err != nil {
		slog.ErrorContext(ctx, "could not generate state token", log.Error(errors.WithStack(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.storeSessionState(w, r, state); err != nil {
		slog.ErrorContext(ctx, "could not store session state", log.Error(errors.WithStack(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.provider.AuthorizationURL(h.callbackURL(), state), http.StatusTemporaryRedirect)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expectedState, err := h.retrieveSessionState(r)
	if err != nil || expectedState == "" || r.URL.Query().Get("state") != expectedState {
		slog.WarnContext(ctx, "state token mismatch")
		http.Redirect(w, r, fmt.Sprintf("%s/login", h.prefix), http.StatusTemporaryRedirect)
		return
	}

	accessToken := h.provider.ExchangeCode(ctx, h.callbackURL(), r.URL.Query().Get("code"))
	if accessToken == "" {
		http.Redirect(w, r, fmt.Sprintf("%s/login", h.prefix), http.StatusTemporaryRedirect)
		return
	}

	user, err := h.users.Authenticate(ctx, accessToken)
	if err != nil {
		slog.ErrorContext(ctx, "could not authenticate user", log.Error(errors.WithStack(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Redirect(w, r, fmt.Sprintf("%s/login", h.prefix), http.StatusTemporaryRedirect)
		return
	}

	if err := h.storeSessionUser(w, r, user); err != nil {
		slog.ErrorContext(ctx, "could not store session user", log.Error(errors.WithStack(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.postLoginRedirect, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.clearSession(w, r); err != nil {
		slog.ErrorContext(ctx, "could not clear session", log.Error(errors.WithStack(err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.postLogoutRedirect, http.StatusTemporaryRedirect)
}

// Authenticator exposes the session as an authn chain member. When
// authoritative, unauthenticated requests are redirected to the login
// flow instead of falling through.
func (h *Handler) Authenticator(authoritative bool) authn.Authenticator {
	return authn.AuthenticateFunc(func(w http.ResponseWriter, r *http.Request) (*authn.AuthenticatedUser, error) {
		user, err := h.retrieveSessionUser(r)
		if err != nil {
			if authoritative {
				http.Redirect(w, r, fmt.Sprintf("%s/login", h.prefix), http.StatusTemporaryRedirect)
				return nil, errors.WithStack(authn.ErrCancel)
			}

			return nil, nil
		}

		return user, nil
	})
}

func (h *Handler) callbackURL() string {
	return fmt.Sprintf("%s%s/callback", h.baseURL, h.prefix)
}

var _ http.Handler = &Handler{}
