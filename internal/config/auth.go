package config

import "github.com/goccy/go-yaml"

type Auth struct {
	Google GoogleProvider          `yaml:"google"`
	Policy InterpolatedStringSlice `yaml:"policy"`
	Admins InterpolatedStringSlice `yaml:"admins"`
}

type GoogleProvider struct {
	ClientID  InterpolatedString      `yaml:"clientId"`
	Audiences InterpolatedStringSlice `yaml:"audiences"`
}

func NewDefaultAuthConfig() Auth {
	return Auth{
		Google: GoogleProvider{
			ClientID:  "${PARCEL_GOOGLE_CLIENT_ID:-}",
			Audiences: InterpolatedStringSlice{},
		},
		Policy: InterpolatedStringSlice{},
		Admins: InterpolatedStringSlice{},
	}
}

func NewAuthConfigCommentMap() yaml.CommentMap {
	return yaml.CommentMap{
		"":                  []*yaml.Comment{yaml.HeadComment(" Auth configuration")},
		".google.clientId":  []*yaml.Comment{yaml.HeadComment(" Google OAuth2 client id (the client secret comes from the secret store)")},
		".google.audiences": []*yaml.Comment{yaml.HeadComment(" Additional trusted token audiences, e.g. the publishing client's id")},
		".policy":           []*yaml.Comment{yaml.HeadComment(" Account sign-up rules over {email, domain, subject}; empty allows everyone", " See https://expr-lang.org/docs/language-definition")},
		".admins":           []*yaml.Comment{yaml.HeadComment(" Emails granted access to the admin API")},
	}
}
