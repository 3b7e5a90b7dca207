package api

import (
	"log/slog"
	"net/http"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/pkg/errors"
)

const publishTokenSecretLength = 32

type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *Handler) serveAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := authn.WithAuthenticatedUser(ctx, func(user *authn.AuthenticatedUser) error {
		email, err := h.cache.Get(ctx, user.ID)
		if err != nil {
			return errors.WithStack(err)
		}

		sendJSON(w, r, http.StatusOK, accountResponse{
			ID:    user.ID,
			Email: email,
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, authn.ErrAuthenticationRequired) {
			sendError(w, r, http.StatusUnauthorized)
			return
		}

		slog.ErrorContext(ctx, "could not serve account", log.Error(errors.WithStack(err)))
		sendError(w, r, http.StatusInternalServerError)
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) serveRegenerateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := authn.WithAuthenticatedUser(ctx, func(user *authn.AuthenticatedUser) error {
		token, err := h.store.RegeneratePublishToken(ctx, user.ID, publishTokenSecretLength)
		if err != nil {
			return errors.WithStack(err)
		}

		sendJSON(w, r, http.StatusOK, tokenResponse{Token: token})

		return nil
	})
	if err != nil {
		if errors.Is(err, authn.ErrAuthenticationRequired) {
			sendError(w, r, http.StatusUnauthorized)
			return
		}

		slog.ErrorContext(ctx, "could not regenerate publish token", log.Error(errors.WithStack(err)))
		sendError(w, r, http.StatusInternalServerError)
	}
}
