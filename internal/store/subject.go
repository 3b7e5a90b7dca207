package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

var subjectMigrations = []string{
	`CREATE TABLE IF NOT EXISTS oauth_subjects (
		oauth_user_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id),

		created_at INTEGER NOT NULL
	);`,
}

// SubjectMapping is the secondary index from an OAuth subject id to the
// owning user. Created exactly once, never mutated or deleted here.
type SubjectMapping struct {
	OAuthUserID string
	UserID      string
	CreatedAt   time.Time
}

// ErrConcurrentUpdate signals that a record changed under a
// transactional re-read. Callers are expected to retry.
var ErrConcurrentUpdate = errors.New("concurrent update")

func (s *Store) GetSubjectMapping(ctx context.Context, oauthUserID string) (*SubjectMapping, error) {
	var mapping *SubjectMapping

	err := s.Do(ctx, func(conn *sqlite.Conn) error {
		found, err := s.getSubjectMapping(conn, oauthUserID)
		if err != nil {
			return errors.WithStack(err)
		}

		mapping = found
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return mapping, nil
}

// CreateUserWithSubject inserts a new user and its subject mapping in
// one transaction. If the mapping already exists by the time the
// transaction runs, the existing owner is returned instead, so two
// concurrent first logins for one subject converge on a single user.
func (s *Store) CreateUserWithSubject(ctx context.Context, email string, oauthUserID string) (*User, error) {
	var user *User

	err := s.Tx(ctx, func(conn *sqlite.Conn) error {
		existing, err := s.getSubjectMapping(conn, oauthUserID)
		if err != nil {
			return errors.WithStack(err)
		}

		if existing != nil {
			owner, err := s.getUser(conn, existing.UserID)
			if err != nil {
				return errors.WithStack(err)
			}

			if owner == nil {
				return errors.Errorf("subject mapping '%s' references missing user '%s'", oauthUserID, existing.UserID)
			}

			user = owner
			return nil
		}

		created, err := s.insertUser(conn, email, oauthUserID)
		if err != nil {
			return errors.WithStack(err)
		}

		if err := s.insertSubjectMapping(conn, oauthUserID, created.ID); err != nil {
			return errors.WithStack(err)
		}

		user = created
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

// MigrateLegacyUser attaches a subject id to a pre-OAuth user. The
// user is re-read inside the transaction and must still have no
// subject bound; otherwise ErrConcurrentUpdate is returned and nothing
// is written.
func (s *Store) MigrateLegacyUser(ctx context.Context, userID string, oauthUserID string) (*User, error) {
	var user *User

	err := s.Tx(ctx, func(conn *sqlite.Conn) error {
		current, err := s.getUser(conn, userID)
		if err != nil {
			return errors.WithStack(err)
		}

		if current == nil {
			return errors.Errorf("user '%s' not found", userID)
		}

		if current.OAuthUserID != "" {
			return errors.WithStack(ErrConcurrentUpdate)
		}

		err = sqlitex.Execute(conn, `UPDATE users SET oauth_user_id = ?, updated_at = ? WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{oauthUserID, time.Now().UTC().Unix(), userID},
		})
		if err != nil {
			return errors.WithStack(err)
		}

		if err := s.insertSubjectMapping(conn, oauthUserID, userID); err != nil {
			return errors.WithStack(err)
		}

		migrated, err := s.getUser(conn, userID)
		if err != nil {
			return errors.WithStack(err)
		}

		user = migrated
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

func (s *Store) getSubjectMapping(conn *sqlite.Conn, oauthUserID string) (*SubjectMapping, error) {
	var mapping *SubjectMapping

	query := `SELECT oauth_user_id, user_id, created_at FROM oauth_subjects WHERE oauth_user_id = ? LIMIT 1`
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{oauthUserID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			mapping = &SubjectMapping{
				OAuthUserID: stmt.ColumnText(0),
				UserID:      stmt.ColumnText(1),
				CreatedAt:   time.Unix(stmt.ColumnInt64(2), 0),
			}
			return nil
		},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return mapping, nil
}

func (s *Store) insertSubjectMapping(conn *sqlite.Conn, oauthUserID string, userID string) error {
	err := sqlitex.Execute(conn, `INSERT INTO oauth_subjects (oauth_user_id, user_id, created_at) VALUES (?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{oauthUserID, userID, time.Now().UTC().Unix()},
	})

	return errors.WithStack(err)
}
