package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/pkg/errors"
)

func TestAuthenticator(t *testing.T) {
	verifier := VerifierFunc(func(ctx context.Context, userID string, secret string) (*authn.AuthenticatedUser, error) {
		if userID == "user-1" && secret == "good-secret" {
			return &authn.AuthenticatedUser{ID: userID, Email: "alice@example.com"}, nil
		}

		return nil, nil
	})

	authenticator := NewAuthenticator(verifier)

	testCases := []struct {
		Name       string
		Header     string
		ExpectUser string
	}{
		{Name: "valid-token", Header: "user-1.good-secret", ExpectUser: "user-1"},
		{Name: "wrong-secret", Header: "user-1.bad-secret"},
		{Name: "malformed-token", Header: "no-separator"},
		{Name: "no-header"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/publish", nil)
			if tc.Header != "" {
				req.Header.Set(Header, tc.Header)
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

func TestAuthenticatorVerifierError(t *testing.T) {
	verifier := VerifierFunc(func(ctx context.Context, userID string, secret string) (*authn.AuthenticatedUser, error) {
		return nil, errors.New("store unavailable")
	})

	authenticator := NewAuthenticator(verifier)

	req := httptest.NewRequest(http.MethodPost, "/api/publish", nil)
	req.Header.Set(Header, "user-1.secret")

	res := httptest.NewRecorder()

	_, err := authenticator.Authenticate(res, req)
	if !errors.Is(err, authn.ErrCancel) {
		t.Errorf("err: expected ErrCancel, got '%+v'", err)
	}

	if e, g := http.StatusInternalServerError, res.Code; e != g {
		t.Errorf("res.Code: expected '%d', got '%d'", e, g)
	}
}
