package bearer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/pkg/errors"
)

type staticUserProvider map[string]*authn.AuthenticatedUser

func (p staticUserProvider) Authenticate(ctx context.Context, accessToken string) (*authn.AuthenticatedUser, error) {
	return p[accessToken], nil
}

func TestAuthenticator(t *testing.T) {
	provider := staticUserProvider{
		"valid-token": {ID: "user-1", Email: "alice@example.com"},
	}

	authenticator := NewAuthenticator(provider)

	testCases := []struct {
		Name       string
		Header     string
		ExpectUser string
	}{
		{Name: "valid-token", Header: "Bearer valid-token", ExpectUser: "user-1"},
		{Name: "unknown-token", Header: "Bearer unknown-token"},
		{Name: "not-bearer", Header: "Basic dXNlcjpwYXNz"},
		{Name: "empty-token", Header: "Bearer "},
		{Name: "no-header"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
			if tc.Header != "" {
				req.Header.Set("Authorization", tc.Header)
			}

			user, err := authenticator.Authenticate(httptest.NewRecorder(), req)
			if err != nil {
				t.Fatalf("%+v", errors.WithStack(err))
			}

			if tc.ExpectUser == "" {
				if user != nil {
					t.Errorf("user: expected nil, got '%v'", user)
				}

				return
			}

			if user == nil {
				t.Fatal("user should not be nil")
			}

			if e, g := tc.ExpectUser, user.ID; e != g {
				t.Errorf("user.ID: expected '%s', got '%s'", e, g)
			}
		})
	}
}

type failingUserProvider struct{}

func (failingUserProvider) Authenticate(ctx context.Context, accessToken string) (*authn.AuthenticatedUser, error) {
	return nil, errors.New("provider unavailable")
}

func TestAuthenticatorProviderError(t *testing.T) {
	authenticator := NewAuthenticator(failingUserProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	req.Header.Set("Authorization", "Bearer some-token")

	res := httptest.NewRecorder()

	_, err := authenticator.Authenticate(res, req)
	if !errors.Is(err, authn.ErrCancel) {
		t.Errorf("err: expected ErrCancel, got '%+v'", err)
	}

	if e, g := http.StatusInternalServerError, res.Code; e != g {
		t.Errorf("res.Code: expected '%d', got '%d'", e, g)
	}
}
