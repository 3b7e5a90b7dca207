package setup

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bornholm/parcel/internal/api"
	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/internal/authn/bearer"
	"github.com/bornholm/parcel/internal/authn/token"
	"github.com/bornholm/parcel/internal/config"
	"github.com/bornholm/parcel/internal/ratelimit"
	"github.com/bornholm/parcel/internal/store"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	sloghttp "github.com/samber/slog-http"
)

func NewHandlerFromConfig(ctx context.Context, conf *config.Config) (http.Handler, error) {
	mux := &http.ServeMux{}

	slogMiddleware := sloghttp.New(slog.Default())

	webHandler, err := NewWebHandlerFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	mux.Handle("/auth/", slogMiddleware(webHandler))

	st, err := NewStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	resolver, err := NewResolverFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cache, err := NewEmailCacheFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	apiAuth := authn.Chain(
		authn.WithAuthenticators(
			webHandler.Authenticator(false),
			bearer.NewAuthenticator(resolver),
			token.NewAuthenticator(newPublishTokenVerifier(st)),
		),
	)

	rateLimiter := ratelimit.New(
		rate.Limit(conf.HTTP.RateLimit.RequestsPerSecond),
		int(conf.HTTP.RateLimit.Burst),
	)
	rateLimiterMiddleware := rateLimiter.Middleware(func(r *http.Request) (string, error) {
		user, err := authn.ContextUser(r.Context())
		if err != nil {
			return "", errors.WithStack(err)
		}

		return user.ID, nil
	})

	admins := make([]string, 0, len(conf.Auth.Admins))
	for _, email := range conf.Auth.Admins {
		admins = append(admins, store.NormalizeEmail(email))
	}

	apiHandler := api.NewHandler(resolver, st, cache, admins)

	mux.Handle("/api/", apiAuth(slogMiddleware(rateLimiterMiddleware(apiHandler))))

	mux.Handle("/metrics", NewMetricsHandler())

	return mux, nil
}

func newPublishTokenVerifier(st *store.Store) token.Verifier {
	return token.VerifierFunc(func(ctx context.Context, userID string, secret string) (*authn.AuthenticatedUser, error) {
		user, err := st.AuthenticatePublishToken(ctx, userID, secret)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if user == nil {
			return nil, nil
		}

		return &authn.AuthenticatedUser{ID: user.ID, Email: user.Email}, nil
	})
}
