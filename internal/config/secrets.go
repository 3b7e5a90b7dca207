package config

import (
	"fmt"

	"github.com/bornholm/parcel/internal/secret"
	"github.com/goccy/go-yaml"
)

type Secrets struct {
	Type    InterpolatedString `yaml:"type"`
	Options *InterpolatedMap   `yaml:"options"`
}

func NewDefaultSecretsConfig() Secrets {
	return Secrets{
		Type: InterpolatedString(fmt.Sprintf("${PARCEL_SECRETS_TYPE:-%s}", secret.TypeEnv)),
		Options: &InterpolatedMap{
			Data: map[string]any{
				"prefix": "${PARCEL_SECRETS_PREFIX:-PARCEL_}",
			},
		},
	}
}

func NewSecretsConfigCommentMap() yaml.CommentMap {
	return yaml.CommentMap{
		"":         []*yaml.Comment{yaml.HeadComment(" Secret store configuration")},
		".type":    []*yaml.Comment{yaml.HeadComment(" Secret store type", fmt.Sprintf(" Available: %v", secret.Registered()))},
		".options": []*yaml.Comment{yaml.HeadComment(" Secret store options ('prefix' for env, 'path' for file)")},
	}
}
