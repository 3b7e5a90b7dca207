package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/bornholm/parcel/internal/authn"
	"github.com/bornholm/parcel/internal/metrics"
	"github.com/bornholm/parcel/internal/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// ErrDataInconsistency marks corrupted account data that requires
// manual remediation. It is never repaired silently.
var ErrDataInconsistency = errors.New("data inconsistency")

const createOrMigrateMaxRetries = 4

// Resolver maps verified OAuth identities to canonical user records.
// It is the only place where identity-to-user mapping logic lives.
type Resolver struct {
	provider authn.Provider
	store    *store.Store
	policy   *Policy
	metrics  *metrics.Collector
}

type ResolverOptionFunc func(r *Resolver)

func WithPolicy(policy *Policy) ResolverOptionFunc {
	return func(r *Resolver) {
		r.policy = policy
	}
}

func WithMetrics(collector *metrics.Collector) ResolverOptionFunc {
	return func(r *Resolver) {
		r.metrics = collector
	}
}

func NewResolver(provider authn.Provider, store *store.Store, funcs ...ResolverOptionFunc) *Resolver {
	r := &Resolver{
		provider: provider,
		store:    store,
		policy:   NewPolicy(),
	}

	for _, fn := range funcs {
		fn(r)
	}

	return r
}

// Authenticate verifies an access token against the identity provider
// and finds or creates the matching user. A nil result means "not
// authenticated" and is a normal outcome, not an error.
func (r *Resolver) Authenticate(ctx context.Context, accessToken string) (*authn.AuthenticatedUser, error) {
	result := r.provider.VerifyToken(ctx, accessToken)
	if result == nil {
		r.metrics.RecordAuthOutcome("rejected")
		return nil, nil
	}

	user, err := r.resolveUser(ctx, result)
	if err != nil {
		r.metrics.RecordAuthOutcome("error")
		return nil, errors.WithStack(err)
	}

	if user == nil {
		r.metrics.RecordAuthOutcome("denied")
		return nil, nil
	}

	r.metrics.RecordAuthOutcome("ok")

	return &authn.AuthenticatedUser{ID: user.ID, Email: user.Email}, nil
}

func (r *Resolver) LookupByID(ctx context.Context, userID string) (*store.User, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

// LookupManyByID preserves request order and leaves nil holes for
// missing users.
func (r *Resolver) LookupManyByID(ctx context.Context, userIDs []string) ([]*store.User, error) {
	users, err := r.store.GetUsers(ctx, userIDs...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return users, nil
}

// LookupByEmail finds the single user owning an email address. Two
// users sharing an email is a surfaced defect, not silently resolved.
func (r *Resolver) LookupByEmail(ctx context.Context, email string) (*store.User, error) {
	users, err := r.store.FindUsersByEmail(ctx, email)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	switch len(users) {
	case 0:
		return nil, nil
	case 1:
		return users[0], nil
	default:
		return nil, errors.Wrapf(ErrDataInconsistency, "%d users share email '%s'", len(users), store.NormalizeEmail(email))
	}
}

// LookupOrCreateByEmail serves invitation flows that have no OAuth
// identity yet. The created user carries no subject id.
func (r *Resolver) LookupOrCreateByEmail(ctx context.Context, email string) (*store.User, error) {
	user, err := r.LookupByEmail(ctx, email)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if user != nil {
		return user, nil
	}

	user, err = r.store.FindOrCreateUserByEmail(ctx, email)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

func (r *Resolver) resolveUser(ctx context.Context, result *authn.AuthResult) (*store.User, error) {
	if result.SubjectID == "" {
		return nil, errors.Wrap(ErrDataInconsistency, "verified auth result carries no subject id")
	}

	email := store.NormalizeEmail(result.Email)

	mapping, err := r.store.GetSubjectMapping(ctx, result.SubjectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var user *store.User

	if mapping != nil {
		user, err = r.store.GetUser(ctx, mapping.UserID)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if user == nil {
			return nil, errors.Wrapf(ErrDataInconsistency, "subject mapping '%s' references missing user '%s'", mapping.OAuthUserID, mapping.UserID)
		}
	} else {
		user, err = r.createOrMigrate(ctx, result.SubjectID, email)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if user == nil {
			slog.WarnContext(ctx, "account creation denied by policy", slog.String("email", email))
			return nil, nil
		}
	}

	// Keep the stored email synced with the provider's current view.
	if user.Email != email {
		user, err = r.store.UpdateUserEmail(ctx, user.ID, email)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return user, nil
}

// createOrMigrate runs the sole creation path for a never-before-seen
// subject id, retrying on transient store contention.
func (r *Resolver) createOrMigrate(ctx context.Context, subjectID string, email string) (*store.User, error) {
	var user *store.User
	var denied bool

	operation := func() error {
		users, err := r.store.FindUsersByEmail(ctx, email)
		if err != nil {
			return backoff.Permanent(errors.WithStack(err))
		}

		// A single email match with no subject bound is a pre-OAuth
		// legacy record: attach the subject in place. Zero matches, an
		// already-bound match or ambiguous duplicates all fall through
		// to a fresh account.
		// Store errors here are retried: under contention the losing
		// transaction can surface a busy or constraint error, and the
		// next attempt converges on the winner's record.
		if len(users) == 1 && users[0].OAuthUserID == "" {
			migrated, err := r.store.MigrateLegacyUser(ctx, users[0].ID, subjectID)
			if err != nil {
				return errors.WithStack(err)
			}

			slog.InfoContext(ctx, "migrated legacy account", slog.String("user", migrated.ID))
			r.metrics.RecordAccountMigrated()

			user = migrated
			return nil
		}

		allowed, err := r.policy.Allow(&authn.AuthResult{SubjectID: subjectID, Email: email})
		if err != nil {
			return backoff.Permanent(errors.WithStack(err))
		}

		if !allowed {
			denied = true
			return nil
		}

		created, err := r.store.CreateUserWithSubject(ctx, email, subjectID)
		if err != nil {
			return errors.WithStack(err)
		}

		r.metrics.RecordAccountCreated()
		slog.InfoContext(ctx, "resolved account", slog.String("user", created.ID))

		user = created
		return nil
	}

	boff := backoff.WithContext(newCreateOrMigrateBackoff(), ctx)
	if err := backoff.Retry(operation, boff); err != nil {
		return nil, errors.WithStack(err)
	}

	if denied {
		return nil, nil
	}

	return user, nil
}

func newCreateOrMigrateBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	return backoff.WithMaxRetries(b, createOrMigrateMaxRetries)
}
