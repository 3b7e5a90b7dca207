package config

import (
	"time"

	"github.com/goccy/go-yaml"
)

type HTTP struct {
	Address   InterpolatedString `yaml:"address"`
	BaseURL   InterpolatedString `yaml:"baseUrl"`
	Session   Session            `yaml:"session"`
	RateLimit RateLimit          `yaml:"rateLimit"`
}

type Session struct {
	Keys   InterpolatedStringSlice `yaml:"keys"`
	Cookie Cookie                  `yaml:"cookie"`
}

type Cookie struct {
	Path     InterpolatedString    `yaml:"path"`
	MaxAge   *InterpolatedDuration `yaml:"maxAge"`
	HTTPOnly InterpolatedBool      `yaml:"httpOnly"`
	Secure   InterpolatedBool      `yaml:"secure"`
}

type RateLimit struct {
	RequestsPerSecond InterpolatedInt `yaml:"requestsPerSecond"`
	Burst             InterpolatedInt `yaml:"burst"`
}

func NewDefaultHTTPConfig() HTTP {
	return HTTP{
		Address: "${PARCEL_HTTP_ADDRESS:-:8080}",
		BaseURL: "${PARCEL_HTTP_BASE_URL:-http://localhost:8080}",
		Session: Session{
			Keys: InterpolatedStringSlice{},
			Cookie: Cookie{
				Path:     "/",
				MaxAge:   NewInterpolatedDuration(12 * time.Hour),
				HTTPOnly: true,
				Secure:   false,
			},
		},
		RateLimit: RateLimit{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}

func NewHTTPConfigCommentMap() yaml.CommentMap {
	return yaml.CommentMap{
		"":              []*yaml.Comment{yaml.HeadComment(" Webserver configuration")},
		".address":      []*yaml.Comment{yaml.HeadComment(" Webserver's listening address")},
		".baseUrl":      []*yaml.Comment{yaml.HeadComment(" Public base URL, used to build OAuth2 redirect URLs")},
		".session.keys": []*yaml.Comment{yaml.HeadComment(" Cookie signing keys (randomly generated when empty)")},
		".rateLimit":    []*yaml.Comment{yaml.HeadComment(" Per-user API rate limiting")},
	}
}
