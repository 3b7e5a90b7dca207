// Package google implements the OAuth2 identity provider client for
// Google accounts: authorization URL construction, code exchange and
// access-token introspection.
package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/internal/secret"
	"github.com/bornholm/parcel/pkg/log"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	googleoauth2 "golang.org/x/oauth2/google"
)

const defaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"

const secretKeyPrefix = "google-client-secret-"

type Provider struct {
	clientID  string
	audiences []string
	secrets   secret.Store

	endpoint     oauth2.Endpoint
	tokenInfoURL string
	client       *http.Client

	secretOnce sync.Once
	secret     string
	secretErr  error
}

type Options struct {
	Endpoint     oauth2.Endpoint
	TokenInfoURL string
	Client       *http.Client
}

type OptionFunc func(opts *Options)

func NewOptions(funcs ...OptionFunc) *Options {
	opts := &Options{
		Endpoint:     googleoauth2.Endpoint,
		TokenInfoURL: defaultTokenInfoURL,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, fn := range funcs {
		fn(opts)
	}

	return opts
}

// WithEndpoint overrides the provider's OAuth2 endpoints. Used by
// tests to point the exchange at a local server.
func WithEndpoint(endpoint oauth2.Endpoint) OptionFunc {
	return func(opts *Options) {
		opts.Endpoint = endpoint
	}
}

func WithTokenInfoURL(url string) OptionFunc {
	return func(opts *Options) {
		opts.TokenInfoURL = url
	}
}

func WithHTTPClient(client *http.Client) OptionFunc {
	return func(opts *Options) {
		opts.Client = client
	}
}

// NewProvider builds a provider trusting tokens whose audience is the
// given client id or one of the extra audiences.
func NewProvider(clientID string, extraAudiences []string, secrets secret.Store, funcs ...OptionFunc) *Provider {
	opts := NewOptions(funcs...)

	audiences := make([]string, 0, len(extraAudiences)+1)
	audiences = append(audiences, clientID)
	audiences = append(audiences, extraAudiences...)

	return &Provider{
		clientID:     clientID,
		audiences:    audiences,
		secrets:      secrets,
		endpoint:     opts.Endpoint,
		tokenInfoURL: opts.TokenInfoURL,
		client:       opts.Client,
	}
}

// AuthorizationURL implements authn.Provider. No network call.
func (p *Provider) AuthorizationURL(redirectURL string, state string) string {
	conf := &oauth2.Config{
		ClientID:    p.clientID,
		Endpoint:    p.endpoint,
		RedirectURL: redirectURL,
		Scopes:      []string{"openid", "email"},
	}

	return conf.AuthCodeURL(state)
}

// ExchangeCode implements authn.Provider. Provider or network failures
// yield an empty token with a logged warning, never an error:
// authentication failures are not fatal to the caller.
func (p *Provider) ExchangeCode(ctx context.Context, redirectURL string, code string) string {
	clientSecret, err := p.clientSecret(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not load oauth2 client secret", log.Error(errors.WithStack(err)))
		return ""
	}

	conf := &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: clientSecret,
		Endpoint:     p.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email"},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.WarnContext(ctx, "could not exchange authorization code", log.Error(errors.WithStack(err)))
		return ""
	}

	return token.AccessToken
}

type tokenInfo struct {
	Audience      string `json:"audience"`
	UserID        string `json:"user_id"`
	ExpiresIn     int    `json:"expires_in"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
}

// VerifyToken implements authn.Provider. It returns nil unless the
// token introspects cleanly, targets a trusted audience, has time left
// and carries a verified, structurally valid email plus a subject id.
func (p *Provider) VerifyToken(ctx context.Context, accessToken string) *authn.AuthResult {
	if accessToken == "" {
		return nil
	}

	info, err := p.introspect(ctx, accessToken)
	if err != nil {
		slog.WarnContext(ctx, "could not introspect access token", log.Error(errors.WithStack(err)))
		return nil
	}

	if !slices.Contains(p.audiences, info.Audience) {
		slog.WarnContext(ctx, "token targets untrusted audience", slog.String("audience", info.Audience))
		return nil
	}

	if info.ExpiresIn <= 0 {
		slog.WarnContext(ctx, "token is expired")
		return nil
	}

	if info.UserID == "" {
		slog.WarnContext(ctx, "token carries no subject id")
		return nil
	}

	if info.Email == "" || !info.VerifiedEmail || !isValidEmail(info.Email) {
		slog.WarnContext(ctx, "token carries no usable email")
		return nil
	}

	return &authn.AuthResult{
		SubjectID: info.UserID,
		Email:     strings.ToLower(info.Email),
	}
}

func (p *Provider) introspect(ctx context.Context, accessToken string) (*tokenInfo, error) {
	query := url.Values{}
	query.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tokenInfoURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("token introspection failed with status %d: %s", res.StatusCode, string(body))
	}

	info := &tokenInfo{}
	if err := json.Unmarshal(body, info); err != nil {
		return nil, errors.WithStack(err)
	}

	return info, nil
}

// clientSecret loads the confidential client secret once per process
// lifetime.
func (p *Provider) clientSecret(ctx context.Context) (string, error) {
	p.secretOnce.Do(func() {
		value, err := p.secrets.Get(ctx, secretKeyPrefix+p.clientID)
		if err != nil {
			p.secretErr = errors.WithStack(err)
			return
		}

		p.secret = value
	})
	if p.secretErr != nil {
		return "", errors.WithStack(p.secretErr)
	}

	return p.secret, nil
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}

	return addr.Address == email
}

var _ authn.Provider = &Provider{}
