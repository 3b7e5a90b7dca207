package bearer

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/pkg/errors"
)

type UserProvider interface {
	Authenticate(ctx context.Context, accessToken string) (*authn.AuthenticatedUser, error)
}

// NewAuthenticator authenticates requests carrying an OAuth2 access
// token in the Authorization header. Requests without a bearer token
// are passed on to the next authenticator in the chain.
func NewAuthenticator(userProvider UserProvider) authn.Authenticator {
	return authn.AuthenticateFunc(func(w http.ResponseWriter, r *http.Request) (*authn.AuthenticatedUser, error) {
		ctx := r.Context()

		accessToken, ok := bearerToken(r)
		if !ok {
			return nil, nil
		}

		user, err := userProvider.Authenticate(ctx, accessToken)
		if err != nil {
			slog.ErrorContext(ctx, "could not authenticate user", log.Error(errors.WithStack(err)))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return nil, errors.WithStack(authn.ErrCancel)
		}

		return user, nil
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}
