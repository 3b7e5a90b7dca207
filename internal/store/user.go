package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

var userMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,

		email TEXT NOT NULL,
		oauth_user_id TEXT,

		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,

		publish_token BLOB,

		UNIQUE (oauth_user_id)
	);`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email);`,
}

type User struct {
	ID string

	Email string

	// OAuthUserID is the provider's subject id. Empty for legacy
	// accounts created before subject tracking existed.
	OAuthUserID string

	CreatedAt time.Time
	UpdatedAt time.Time

	PublishToken []byte
}

// NormalizeEmail lowercases an email address the way every write path
// stores it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	var user *User

	err := s.Do(ctx, func(conn *sqlite.Conn) error {
		found, err := s.getUser(conn, userID)
		if err != nil {
			return errors.WithStack(err)
		}

		user = found
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

// getUsersBatchSize keeps the IN-list bounded regardless of how many
// ids a caller asks for.
const getUsersBatchSize = 100

// GetUsers returns one entry per requested id, in request order, with
// nil holes for ids that do not exist.
func (s *Store) GetUsers(ctx context.Context, userIDs ...string) ([]*User, error) {
	users := make([]*User, len(userIDs))

	if len(userIDs) == 0 {
		return users, nil
	}

	err := s.Do(ctx, func(conn *sqlite.Conn) error {
		byID := make(map[string]*User, len(userIDs))

		for start := 0; start < len(userIDs); start += getUsersBatchSize {
			batch := userIDs[start:min(start+getUsersBatchSize, len(userIDs))]

			placeholders := make([]string, len(batch))
			args := make([]any, len(batch))

			for i, id := range batch {
				placeholders[i] = "?"
				args[i] = id
			}

			query := fmt.Sprintf("SELECT %s FROM users WHERE id IN (%s)",
				userAttributes, strings.Join(placeholders, ", "))

			err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
				Args: args,
				ResultFunc: func(stmt *sqlite.Stmt) error {
					user := &User{}
					if err := s.bindUser(stmt, user); err != nil {
						return errors.WithStack(err)
					}

					byID[user.ID] = user
					return nil
				},
			})
			if err != nil {
				return errors.WithStack(err)
			}
		}

		for i, id := range userIDs {
			users[i] = byID[id]
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return users, nil
}

// FindUsersByEmail returns every user sharing the given email,
// case-insensitively. Legacy data may hold duplicates; callers decide
// whether that is an error.
func (s *Store) FindUsersByEmail(ctx context.Context, email string) ([]*User, error) {
	var users []*User

	err := s.Do(ctx, func(conn *sqlite.Conn) error {
		found, err := s.findUsersByEmail(conn, email)
		if err != nil {
			return errors.WithStack(err)
		}

		users = found
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return users, nil
}

// CreateUser inserts a user with no attached subject id. Used by
// invitation flows that only know an email address.
func (s *Store) CreateUser(ctx context.Context, email string) (*User, error) {
	var user *User

	err := s.Tx(ctx, func(conn *sqlite.Conn) error {
		created, err := s.insertUser(conn, email, "")
		if err != nil {
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

// FindOrCreateUserByEmail re-checks for the email inside the creating
// transaction, so concurrent invitation flows for one address converge
// on a single record instead of inserting duplicates.
func (s *Store) FindOrCreateUserByEmail(ctx context.Context, email string) (*User, error) {
	var user *User

	err := s.Tx(ctx, func(conn *sqlite.Conn) error {
		existing, err := s.findUsersByEmail(conn, email)
		if err != nil {
			return errors.WithStack(err)
		}

		if len(existing) > 0 {
			user = existing[0]
			return nil
		}

		created, err := s.insertUser(conn, email, "")
		if err != nil {
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

// UpdateUserEmail re-reads the user inside a fresh transaction and
// rewrites its email, keeping id and subject binding untouched.
func (s *Store) UpdateUserEmail(ctx context.Context, userID string, email string) (*User, error) {
	var user *User

	err := s.Tx(ctx, func(conn *sqlite.Conn) error {
		current, err := s.getUser(conn, userID)
		if err != nil {
			return errors.WithStack(err)
		}

		if current == nil {
			return errors.Errorf("user '%s' not found", userID)
		}

		email := NormalizeEmail(email)
		if current.Email == email {
			user = current
			return nil
		}

		err = sqlitex.Execute(conn, `UPDATE users SET email = ?, updated_at = ? WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{email, time.Now().UTC().Unix(), userID},
		})
		if err != nil {
			return errors.WithStack(err)
		}

		updated, err := s.getUser(conn, userID)
		if err != nil {
			return errors.WithStack(err)
		}

		user = updated
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64

	err := s.Do(ctx, func(conn *sqlite.Conn) error {
		return errors.WithStack(sqlitex.Execute(conn, "SELECT COUNT(*) FROM users", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt64(0)
				return nil
			},
		}))
	})

	return count, errors.WithStack(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	users := make([]*User, 0)

	err := s.Do(ctx, func(conn *sqlite.Conn) error {
		query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at, id", userAttributes)
		return errors.WithStack(sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user := &User{}
				if err := s.bindUser(stmt, user); err != nil {
					return errors.WithStack(err)
				}

				users = append(users, user)
				return nil
			},
		}))
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return users, nil
}

func (s *Store) findUsersByEmail(conn *sqlite.Conn, email string) ([]*User, error) {
	users := make([]*User, 0)

	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = ? ORDER BY created_at, id`, userAttributes)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{NormalizeEmail(email)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			user := &User{}
			if err := s.bindUser(stmt, user); err != nil {
				return errors.WithStack(err)
			}

			users = append(users, user)
			return nil
		},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return users, nil
}

func (s *Store) getUser(conn *sqlite.Conn, userID string) (*User, error) {
	var user *User

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ? LIMIT 1`, userAttributes)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{userID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			user = &User{}
			return errors.WithStack(s.bindUser(stmt, user))
		},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

func (s *Store) insertUser(conn *sqlite.Conn, email string, oauthUserID string) (*User, error) {
	var user *User

	query := fmt.Sprintf(`
		INSERT INTO users
			(id, email, oauth_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING %s;`,
		userAttributes,
	)

	now := time.Now().UTC().Unix()

	var subject any
	if oauthUserID != "" {
		subject = oauthUserID
	}

	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{xid.New().String(), NormalizeEmail(email), subject, now, now},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			user = &User{}
			return errors.WithStack(s.bindUser(stmt, user))
		},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}

var userAttributes = `id, email, oauth_user_id, created_at, updated_at, publish_token`

func (s *Store) bindUser(stmt *sqlite.Stmt, user *User) error {
	user.ID = stmt.ColumnText(0)
	user.Email = stmt.ColumnText(1)
	user.OAuthUserID = stmt.ColumnText(2)
	user.CreatedAt = time.Unix(stmt.ColumnInt64(3), 0)
	user.UpdatedAt = time.Unix(stmt.ColumnInt64(4), 0)

	if stmt.ColumnLen(5) > 0 {
		user.PublishToken = make([]byte, stmt.ColumnLen(5))
		stmt.ColumnBytes(5, user.PublishToken)
	}

	return nil
}
