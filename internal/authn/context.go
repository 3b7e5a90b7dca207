package authn

import (
	"context"

	"github.com/pkg/errors"
)

type contextKey string

const contextKeyUser contextKey = "authnUser"

var ErrAuthenticationRequired = errors.New("authentication required")

func ContextUser(ctx context.Context) (*AuthenticatedUser, error) {
	user, ok := ctx.Value(contextKeyUser).(*AuthenticatedUser)
	if !ok {
		return nil, errors.WithStack(ErrAuthenticationRequired)
	}

	return user, nil
}

func WithContextUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// WithAuthenticatedUser is the single gate privileged operations go
// through. It fails with ErrAuthenticationRequired when no user is
// bound to the current scope.
func WithAuthenticatedUser(ctx context.Context, fn func(user *AuthenticatedUser) error) error {
	user, err := ContextUser(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := fn(user); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
