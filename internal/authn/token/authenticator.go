package token

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/pkg/errors"
)

// Header carries the publish token issued to upload clients,
// formatted as "<user-id>.<secret>".
const Header = "X-Parcel-Token"

type Verifier interface {
	Verify(ctx context.Context, userID string, secret string) (*authn.AuthenticatedUser, error)
}

type VerifierFunc func(ctx context.Context, userID string, secret string) (*authn.AuthenticatedUser, error)

func (fn VerifierFunc) Verify(ctx context.Context, userID string, secret string) (*authn.AuthenticatedUser, error) {
	return fn(ctx, userID, secret)
}

// NewAuthenticator authenticates publishing clients by their publish
// token. Requests without the header fall through to the next
// authenticator.
func NewAuthenticator(verifier Verifier) authn.Authenticator {
	return authn.AuthenticateFunc(func(w http.ResponseWriter, r *http.Request) (*authn.AuthenticatedUser, error) {
		ctx := r.Context()

		header := r.Header.Get(Header)
		if header == "" {
			return nil, nil
		}

		userID, secret, found := strings.Cut(header, ".")
		if !found {
			return nil, nil
		}

		user, err := verifier.Verify(ctx, userID, secret)
		if err != nil {
			slog.ErrorContext(ctx, "could not verify publish token", log.Error(errors.WithStack(err)))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return nil, errors.WithStack(authn.ErrCancel)
		}

		return user, nil
	})
}
