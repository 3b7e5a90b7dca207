package setup

import (
	"context"

	"github.com/bornholm/parcel/internal/config"
	"github.com/bornholm/parcel/internal/secret"
	"github.com/pkg/errors"
)

var NewSecretStoreFromConfig = createFromConfigOnce(func(ctx context.Context, conf *config.Config) (secret.Store, error) {
	var options map[string]any
	if conf.Secrets.Options != nil {
		options = conf.Secrets.Options.Data
	}

	store, err := secret.New(secret.Type(conf.Secrets.Type), options)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return store, nil
})
