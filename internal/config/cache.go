package config

import (
	"time"

	"github.com/goccy/go-yaml"
)

type Cache struct {
	Size InterpolatedInt       `yaml:"size"`
	TTL  *InterpolatedDuration `yaml:"ttl"`
}

func NewDefaultCacheConfig() Cache {
	return Cache{
		Size: 1000,
		TTL:  NewInterpolatedDuration(10 * time.Minute),
	}
}

func NewCacheConfigCommentMap() yaml.CommentMap {
	return yaml.CommentMap{
		"":      []*yaml.Comment{yaml.HeadComment(" Email cache configuration")},
		".size": []*yaml.Comment{yaml.HeadComment(" Maximum number of cached entries")},
		".ttl":  []*yaml.Comment{yaml.HeadComment(" Entry time-to-live")},
	}
}
