// Package api exposes the account JSON API consumed by the registry
// web frontend and publishing clients.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/bornholm/parcel/internal/account"
	"github.com/bornholm/parcel/internal/store"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/pkg/errors"
)

type Handler struct {
	mux         *http.ServeMux
	resolver    *account.Resolver
	store       *store.Store
	cache       *account.EmailCache
	adminEmails []string
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func NewHandler(resolver *account.Resolver, st *store.Store, cache *account.EmailCache, adminEmails []string) *Handler {
	h := &Handler{
		mux:         http.NewServeMux(),
		resolver:    resolver,
		store:       st,
		cache:       cache,
		adminEmails: adminEmails,
	}

	h.mux.HandleFunc("GET /api/account", h.serveAccount)
	h.mux.HandleFunc("POST /api/account/token", h.serveRegenerateToken)
	h.mux.HandleFunc("GET /api/admin/accounts", h.serveAdminAccounts)

	return h
}

func (h *Handler) isAdmin(email string) bool {
	return slices.Contains(h.adminEmails, store.NormalizeEmail(email))
}

func sendJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "could not encode response", log.Error(errors.WithStack(err)))
	}
}

func sendError(w http.ResponseWriter, r *http.Request, status int) {
	sendJSON(w, r, status, map[string]string{"error": http.StatusText(status)})
}

var _ http.Handler = &Handler{}
