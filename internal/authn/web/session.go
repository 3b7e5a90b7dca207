package web

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/pkg/errors"
)

const (
	sessionKeyState     = "state"
	sessionKeyUserID    = "userID"
	sessionKeyUserEmail = "userEmail"
)

var errSessionNotFound = errors.New("session not found")

func (h *Handler) storeSessionState(w http.ResponseWriter, r *http.Request, state string) error {
	session, err := h.sessionStore.Get(r, h.sessionName)
	if err != nil {
		return errors.WithStack(err)
	}

	session.Values[sessionKeyState] = state

	if err := session.Save(r, w); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (h *Handler) retrieveSessionState(r *http.Request) (string, error) {
	session, err := h.sessionStore.Get(r, h.sessionName)
	if err != nil {
		return "", errors.WithStack(err)
	}

	state, ok := session.Values[sessionKeyState].(string)
	if !ok {
		return "", errors.WithStack(errSessionNotFound)
	}

	return state, nil
}

func (h *Handler) storeSessionUser(w http.ResponseWriter, r *http.Request, user *authn.AuthenticatedUser) error {
	session, err := h.sessionStore.Get(r, h.sessionName)
	if err != nil {
		return errors.WithStack(err)
	}

	delete(session.Values, sessionKeyState)
	session.Values[sessionKeyUserID] = user.ID
	session.Values[sessionKeyUserEmail] = user.Email

	if err := session.Save(r, w); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (h *Handler) retrieveSessionUser(r *http.Request) (*authn.AuthenticatedUser, error) {
	session, err := h.sessionStore.Get(r, h.sessionName)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	userID, ok := session.Values[sessionKeyUserID].(string)
	if !ok || userID == "" {
		return nil, errors.WithStack(errSessionNotFound)
	}

	email, _ := session.Values[sessionKeyUserEmail].(string)

	return &authn.AuthenticatedUser{ID: userID, Email: email}, nil
}

func (h *Handler) clearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := h.sessionStore.Get(r, h.sessionName)
	if err != nil {
		return errors.WithStack(err)
	}

	session.Options.MaxAge = -1
	clear(session.Values)

	if err := session.Save(r, w); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func generateState() (string, error) {
	data := make([]byte, 16)
	if _, err := rand.Read(data); err != nil {
		return "", errors.WithStack(err)
	}

	return hex.EncodeToString(data), nil
}
