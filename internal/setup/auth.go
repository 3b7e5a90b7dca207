package setup

import (
	"context"
	"time"

	"github.com/bornholm/parcel/internal/account"
	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/internal/authn/google"
	"github.com/bornholm/parcel/internal/config"
	"github.com/pkg/errors"
)

var NewProviderFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (authn.Provider, error) {
	if conf.Auth.Google.ClientID == "" {
		return nil, errors.New("missing google oauth2 client id")
	}

	secrets, err := NewSecretStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	provider := google.NewProvider(
		string(conf.Auth.Google.ClientID),
		conf.Auth.Google.Audiences,
		secrets,
	)

	return provider, nil
})

var NewResolverFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*account.Resolver, error) {
	provider, err := NewProviderFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	store, err := NewStoreFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	collector, err := NewMetricsCollectorFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	resolver := account.NewResolver(provider, store,
		account.WithPolicy(account.NewPolicy(conf.Auth.Policy...)),
		account.WithMetrics(collector),
	)

	return resolver, nil
})

var NewEmailCacheFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (*account.EmailCache, error) {
	resolver, err := NewResolverFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	collector, err := NewMetricsCollectorFromConfig(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var ttl time.Duration
	if conf.Cache.TTL != nil {
		ttl = time.Duration(*conf.Cache.TTL)
	}

	return account.NewEmailCache(resolver, int(conf.Cache.Size), ttl, collector), nil
})
