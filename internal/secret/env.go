package secret

import (
	"context"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

const TypeEnv Type = "env"

type EnvOptions struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// EnvStore reads secrets from environment variables. The lookup key is
// uppercased with separators mapped to underscores, e.g.
// "oauth2-client-secret-pub.example.org" becomes
// "OAUTH2_CLIENT_SECRET_PUB_EXAMPLE_ORG".
type EnvStore struct {
	prefix string
}

func (s *EnvStore) Get(ctx context.Context, key string) (string, error) {
	name := s.prefix + envName(key)

	value, exists := os.LookupEnv(name)
	if !exists {
		return "", errors.Errorf("secret '%s' not found in environment variable '%s'", key, name)
	}

	return value, nil
}

func envName(key string) string {
	replacer := strings.NewReplacer("-", "_", ".", "_", "/", "_")
	return strings.ToUpper(replacer.Replace(key))
}

var _ Store = &EnvStore{}

func init() {
	Register(TypeEnv, func(rawOptions map[string]any) (Store, error) {
		options := EnvOptions{}
		if err := mapstructure.Decode(rawOptions, &options); err != nil {
			return nil, errors.WithStack(err)
		}

		return &EnvStore{prefix: options.Prefix}, nil
	})
}
