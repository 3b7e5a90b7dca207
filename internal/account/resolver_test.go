package account

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/internal/store"
	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

type staticProvider struct {
	results map[string]*authn.AuthResult
}

func (p *staticProvider) AuthorizationURL(redirectURL string, state string) string {
	return "http://provider.local/authorize?state=" + state
}

func (p *staticProvider) ExchangeCode(ctx context.Context, redirectURL string, code string) string {
	return code
}

func (p *staticProvider) VerifyToken(ctx context.Context, accessToken string) *authn.AuthResult {
	return p.results[accessToken]
}

var _ authn.Provider = &staticProvider{}

func newTestResolver(t *testing.T, results map[string]*authn.AuthResult, funcs ...ResolverOptionFunc) (*Resolver, *store.Store) {
	t.Helper()

	st := store.NewStore(filepath.Join(t.TempDir(), "store.db"))
	provider := &staticProvider{results: results}

	return NewResolver(provider, st, funcs...), st
}

func TestAuthenticateCreatesUserOnce(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token-alice": {SubjectID: "subject-alice", Email: "alice@example.com"},
	})
	ctx := context.Background()

	first, err := resolver.Authenticate(ctx, "token-alice")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if first == nil {
		t.Fatal("first should not be nil")
	}

	if e, g := "alice@example.com", first.Email; e != g {
		t.Errorf("first.Email: expected '%s', got '%s'", e, g)
	}

	second, err := resolver.Authenticate(ctx, "token-alice")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := first.ID, second.ID; e != g {
		t.Errorf("second.ID: expected '%s', got '%s'", e, g)
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("count: expected '%d', got '%d'", e, g)
	}
}

func TestAuthenticateConcurrentFirstLogins(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token-race": {SubjectID: "subject-race", Email: "race@example.com"},
	})
	ctx := context.Background()

	const workers = 8

	users := make([]*authn.AuthenticatedUser, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = resolver.Authenticate(ctx, "token-race")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("%+v", errors.WithStack(errs[i]))
		}

		if users[i] == nil {
			t.Fatalf("users[%d] should not be nil", i)
		}

		if e, g := users[0].ID, users[i].ID; e != g {
			t.Errorf("users[%d].ID: expected '%s', got '%s'", i, e, g)
		}
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("count: expected '%d', got '%d'", e, g)
	}
}

func TestAuthenticateMigratesLegacyUser(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token-legacy": {SubjectID: "subject-legacy", Email: "legacy@example.com"},
	})
	ctx := context.Background()

	legacy, err := st.CreateUser(ctx, "legacy@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	authenticated, err := resolver.Authenticate(ctx, "token-legacy")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if authenticated == nil {
		t.Fatal("authenticated should not be nil")
	}

	if e, g := legacy.ID, authenticated.ID; e != g {
		t.Errorf("authenticated.ID: expected '%s', got '%s'", e, g)
	}

	migrated, err := st.GetUser(ctx, legacy.ID)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := "subject-legacy", migrated.OAuthUserID; e != g {
		t.Errorf("migrated.OAuthUserID: expected '%s', got '%s'", e, g)
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("count: expected '%d', got '%d'", e, g)
	}
}

func TestAuthenticateReusesMigratedUser(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token": {SubjectID: "subject-legacy", Email: "legacy@example.com"},
	})
	ctx := context.Background()

	legacy, err := st.CreateUser(ctx, "legacy@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	first, err := resolver.Authenticate(ctx, "token")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := legacy.ID, first.ID; e != g {
		t.Errorf("first.ID: expected '%s', got '%s'", e, g)
	}

	// The second call must take the mapping path: re-running the
	// migration would trip the mapping's primary key.
	second, err := resolver.Authenticate(ctx, "token")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := legacy.ID, second.ID; e != g {
		t.Errorf("second.ID: expected '%s', got '%s'", e, g)
	}

	mapping, err := st.GetSubjectMapping(ctx, "subject-legacy")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if mapping == nil {
		t.Fatal("mapping should not be nil")
	}

	if e, g := legacy.ID, mapping.UserID; e != g {
		t.Errorf("mapping.UserID: expected '%s', got '%s'", e, g)
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("count: expected '%d', got '%d'", e, g)
	}
}

func TestAuthenticateMissingSubjectID(t *testing.T) {
	resolver, _ := newTestResolver(t, map[string]*authn.AuthResult{
		"token": {SubjectID: "", Email: "ghost@example.com"},
	})

	_, err := resolver.Authenticate(context.Background(), "token")
	if !errors.Is(err, ErrDataInconsistency) {
		t.Errorf("err: expected ErrDataInconsistency, got '%+v'", err)
	}
}

func TestAuthenticateMappingWithoutOwner(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token": {SubjectID: "subject-orphan", Email: "orphan@example.com"},
	})
	ctx := context.Background()

	if _, err := resolver.Authenticate(ctx, "token"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	// Corrupt the store by hand: drop the user row while its subject
	// mapping survives.
	err := st.Do(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = off", nil); err != nil {
			return errors.WithStack(err)
		}

		return errors.WithStack(sqlitex.ExecuteTransient(conn, "DELETE FROM users", nil))
	})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	_, err = resolver.Authenticate(ctx, "token")
	if !errors.Is(err, ErrDataInconsistency) {
		t.Errorf("err: expected ErrDataInconsistency, got '%+v'", err)
	}
}

func TestAuthenticateSyncsEmailFromProvider(t *testing.T) {
	results := map[string]*authn.AuthResult{
		"token": {SubjectID: "subject-sync", Email: "old@example.com"},
	}

	resolver, st := newTestResolver(t, results)
	ctx := context.Background()

	first, err := resolver.Authenticate(ctx, "token")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	// The provider now reports a different email for the same subject.
	results["token"] = &authn.AuthResult{SubjectID: "subject-sync", Email: "new@example.com"}

	second, err := resolver.Authenticate(ctx, "token")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := first.ID, second.ID; e != g {
		t.Errorf("second.ID: expected '%s', got '%s'", e, g)
	}

	if e, g := "new@example.com", second.Email; e != g {
		t.Errorf("second.Email: expected '%s', got '%s'", e, g)
	}

	stored, err := st.GetUser(ctx, first.ID)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := "new@example.com", stored.Email; e != g {
		t.Errorf("stored.Email: expected '%s', got '%s'", e, g)
	}
}

func TestAuthenticateRejectedToken(t *testing.T) {
	resolver, _ := newTestResolver(t, map[string]*authn.AuthResult{})

	user, err := resolver.Authenticate(context.Background(), "unknown-token")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if user != nil {
		t.Errorf("user: expected nil, got '%v'", user)
	}
}

func TestAuthenticateDuplicateEmailsCreateFreshAccount(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token": {SubjectID: "subject-dup", Email: "dup@example.com"},
	})
	ctx := context.Background()

	// Two legacy records share the email; neither can be migrated safely.
	if _, err := st.CreateUser(ctx, "dup@example.com"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := st.CreateUser(ctx, "dup@example.com"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	authenticated, err := resolver.Authenticate(ctx, "token")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if authenticated == nil {
		t.Fatal("authenticated should not be nil")
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(3), count; e != g {
		t.Errorf("count: expected '%d', got '%d'", e, g)
	}
}

func TestAuthenticateDeniedByPolicy(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{
		"token-ok":     {SubjectID: "subject-ok", Email: "alice@allowed.example.com"},
		"token-denied": {SubjectID: "subject-denied", Email: "mallory@denied.example.com"},
	}, WithPolicy(NewPolicy(`domain == "allowed.example.com"`)))
	ctx := context.Background()

	allowed, err := resolver.Authenticate(ctx, "token-ok")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if allowed == nil {
		t.Fatal("allowed should not be nil")
	}

	denied, err := resolver.Authenticate(ctx, "token-denied")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if denied != nil {
		t.Errorf("denied: expected nil, got '%v'", denied)
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("count: expected '%d', got '%d'", e, g)
	}
}

func TestLookupByEmailDuplicates(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{})
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "dup@example.com"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := st.CreateUser(ctx, "dup@example.com"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	_, err := resolver.LookupByEmail(ctx, "dup@example.com")
	if !errors.Is(err, ErrDataInconsistency) {
		t.Errorf("err: expected ErrDataInconsistency, got '%+v'", err)
	}
}

func TestLookupOrCreateByEmail(t *testing.T) {
	resolver, _ := newTestResolver(t, map[string]*authn.AuthResult{})
	ctx := context.Background()

	created, err := resolver.LookupOrCreateByEmail(ctx, "Invitee@Example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := "invitee@example.com", created.Email; e != g {
		t.Errorf("created.Email: expected '%s', got '%s'", e, g)
	}

	if e, g := "", created.OAuthUserID; e != g {
		t.Errorf("created.OAuthUserID: expected '%s', got '%s'", e, g)
	}

	again, err := resolver.LookupOrCreateByEmail(ctx, "invitee@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := created.ID, again.ID; e != g {
		t.Errorf("again.ID: expected '%s', got '%s'", e, g)
	}
}

func TestLookupManyByID(t *testing.T) {
	resolver, st := newTestResolver(t, map[string]*authn.AuthResult{})
	ctx := context.Background()

	user, err := st.CreateUser(ctx, "one@example.com")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	users, err := resolver.LookupManyByID(ctx, []string{"missing", user.ID})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := 2, len(users); e != g {
		t.Fatalf("len(users): expected '%d', got '%d'", e, g)
	}

	if users[0] != nil {
		t.Errorf("users[0]: expected nil, got '%v'", users[0])
	}

	if e, g := user.ID, users[1].ID; e != g {
		t.Errorf("users[1].ID: expected '%s', got '%s'", e, g)
	}
}
