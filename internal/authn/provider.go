package authn

import "context"

// Provider abstracts an OAuth2 identity provider. Implementations
// return facts only: a nil AuthResult means "not authenticated", it is
// never an error.
type Provider interface {
	// AuthorizationURL builds the provider's authorization redirect URL
	// embedding the given CSRF state token. No network call.
	AuthorizationURL(redirectURL string, state string) string

	// ExchangeCode trades an authorization code for an access token.
	// Provider or network failures yield an empty token, not an error.
	ExchangeCode(ctx context.Context, redirectURL string, code string) string

	// VerifyToken introspects an access token and returns the verified
	// (subject, email) pair, or nil if the token is not trustworthy.
	VerifyToken(ctx context.Context, accessToken string) *AuthResult
}
