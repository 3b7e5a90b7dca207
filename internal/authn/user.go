package authn

// AuthenticatedUser is the identity attached to a request once an
// authenticator has resolved it to a canonical user record.
type AuthenticatedUser struct {
	ID    string
	Email string
}

// AuthResult is a verified identity claim from an OAuth2 provider,
// before it has been resolved to a user record.
type AuthResult struct {
	SubjectID string
	Email     string
}
