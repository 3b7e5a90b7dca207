package store

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestPublishTokenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "publisher@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	token, err := store.RegeneratePublishToken(ctx, user.ID, 32)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	userID, secret, found := strings.Cut(token, ".")
	if !found {
		t.Fatalf("token '%s' should contain a '.' separator", token)
	}

	if e, g := user.ID, userID; e != g {
		t.Errorf("userID: expected '%s', got '%s'", e, g)
	}

	if e, g := 32, len(secret); e != g {
		t.Errorf("len(secret): expected '%d', got '%d'", e, g)
	}

	if _, err := hex.DecodeString(secret); err != nil {
		t.Errorf("secret '%s' should be hex-encoded random bytes", secret)
	}

	authenticated, err := store.AuthenticatePublishToken(ctx, userID, secret)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if authenticated == nil {
		t.Fatal("authenticated should not be nil")
	}

	if e, g := user.ID, authenticated.ID; e != g {
		t.Errorf("authenticated.ID: expected '%s', got '%s'", e, g)
	}
}

func TestPublishTokenRegenerateInvalidatesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "publisher@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	first, err := store.RegeneratePublishToken(ctx, user.ID, 32)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := store.RegeneratePublishToken(ctx, user.ID, 32); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	_, oldSecret, _ := strings.Cut(first, ".")

	authenticated, err := store.AuthenticatePublishToken(ctx, user.ID, oldSecret)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if authenticated != nil {
		t.Errorf("authenticated: expected nil, got '%v'", authenticated)
	}
}

func TestPublishTokenSecretsAreUnique(t *testing.T) {
	first, err := generateSecret(32)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	second, err := generateSecret(32)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if first == second {
		t.Errorf("two generated secrets should differ, both were '%s'", first)
	}
}

func TestPublishTokenNoTokenSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "publisher@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	authenticated, err := store.AuthenticatePublishToken(ctx, user.ID, "anything")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if authenticated != nil {
		t.Errorf("authenticated: expected nil, got '%v'", authenticated)
	}
}
