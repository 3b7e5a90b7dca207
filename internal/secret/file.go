package secret

import (
	"context"
	"os"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

const TypeFile Type = "file"

type FileOptions struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// FileStore reads secrets from a flat YAML file of key: value pairs,
// loaded once per process.
type FileStore struct {
	path string

	loadOnce sync.Once
	loadErr  error
	values   map[string]string
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	values, err := s.load()
	if err != nil {
		return "", errors.WithStack(err)
	}

	value, exists := values[key]
	if !exists {
		return "", errors.Errorf("secret '%s' not found in '%s'", key, s.path)
	}

	return value, nil
}

func (s *FileStore) load() (map[string]string, error) {
	s.loadOnce.Do(func() {
		data, err := os.ReadFile(s.path)
		if err != nil {
			s.loadErr = errors.WithStack(err)
			return
		}

		values := map[string]string{}
		if err := yaml.Unmarshal(data, &values); err != nil {
			s.loadErr = errors.WithStack(err)
			return
		}

		s.values = values
	})
	if s.loadErr != nil {
		return nil, errors.WithStack(s.loadErr)
	}

	return s.values, nil
}

var _ Store = &FileStore{}

func init() {
	Register(TypeFile, func(rawOptions map[string]any) (Store, error) {
		options := FileOptions{}
		if err := mapstructure.Decode(rawOptions, &options); err != nil {
			return nil, errors.WithStack(err)
		}

		if options.Path == "" {
			return nil, errors.New("missing 'path' option")
		}

		return &FileStore{path: options.Path}, nil
	})
}
