package api

import (
	"log/slog"
	"net/http"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

type adminAccount struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Migrated bool   `json:"migrated"`
	Created  string `json:"created"`
}

type adminAccountsResponse struct {
	Total    int64          `json:"total"`
	Accounts []adminAccount `json:"accounts"`
}

func (h *Handler) serveAdminAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := authn.WithAuthenticatedUser(ctx, func(user *authn.AuthenticatedUser) error {
		if !h.isAdmin(user.Email) {
			sendError(w, r, http.StatusForbidden)
			return nil
		}

		users, err := h.store.ListUsers(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		total, err := h.store.CountUsers(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}

		emails, err := h.cache.GetMany(ctx, ids)
		if err != nil {
			return errors.WithStack(err)
		}

		accounts := make([]adminAccount, 0, len(users))
		for i, u := range users {
			accounts = append(accounts, adminAccount{
				ID:       u.ID,
				Email:    emails[i],
				Migrated: u.OAuthUserID != "",
				Created:  humanize.Time(u.CreatedAt),
			})
		}

		sendJSON(w, r, http.StatusOK, adminAccountsResponse{
			Total:    total,
			Accounts: accounts,
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, authn.ErrAuthenticationRequired) {
			sendError(w, r, http.StatusUnauthorized)
			return
		}

		slog.ErrorContext(ctx, "could not serve accounts listing", log.Error(errors.WithStack(err)))
		sendError(w, r, http.StatusInternalServerError)
	}
}
