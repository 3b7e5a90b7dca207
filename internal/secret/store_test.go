package secret

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestEnvStore(t *testing.T) {
	t.Setenv("MYAPP_GOOGLE_CLIENT_SECRET_MY_CLIENT_ID", "s3cret")

	store, err := New(TypeEnv, map[string]any{"prefix": "MYAPP_"})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	value, err := store.Get(context.Background(), "google-client-secret-my.client.id")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := "s3cret", value; e != g {
		t.Errorf("value: expected '%s', got '%s'", e, g)
	}

	if _, err := store.Get(context.Background(), "missing-key"); err == nil {
		t.Error("err should not be nil")
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.yml")

	data := []byte("google-client-secret-my-client: s3cret\nother: value\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	store, err := New(TypeFile, map[string]any{"path": path})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	value, err := store.Get(context.Background(), "google-client-secret-my-client")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := "s3cret", value; e != g {
		t.Errorf("value: expected '%s', got '%s'", e, g)
	}

	if _, err := store.Get(context.Background(), "missing-key"); err == nil {
		t.Error("err should not be nil")
	}
}

func TestFileStoreMissingPath(t *testing.T) {
	if _, err := New(TypeFile, map[string]any{}); err == nil {
		t.Error("err should not be nil")
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(Type("unknown"), nil); err == nil {
		t.Error("err should not be nil")
	}
}
