package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// RegeneratePublishToken replaces the user's publish token and returns
// the new cleartext, formatted as "<user-id>.<secret>". Only the
// bcrypt hash of the secret is persisted.
func (s *Store) RegeneratePublishToken(ctx context.Context, userID string, secretLength int) (string, error) {
	secret, err := generateSecret(secretLength)
	if err != nil {
		return "", errors.WithStack(err)
	}

	hash, err := hashSecret(secret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	err = s.Tx(ctx, func(conn *sqlite.Conn) error {
		query := "UPDATE users SET publish_token = ? WHERE id = ?"
		err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{hash, userID},
		})
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return "", errors.WithStack(err)
	}

	return fmt.Sprintf("%s.%s", userID, secret), nil
}

// AuthenticatePublishToken resolves a "<user-id>.<secret>" publish
// token to its owner, or nil when the token does not verify.
func (s *Store) AuthenticatePublishToken(ctx context.Context, userID string, secret string) (*User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if user == nil || len(user.PublishToken) == 0 {
		return nil, nil
	}

	if !verifySecret([]byte(secret), user.PublishToken) {
		return nil, nil
	}

	return user, nil
}

func hashSecret(secret string) ([]byte, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return bytes, nil
}

func verifySecret(secret, hash []byte) bool {
	err := bcrypt.CompareHashAndPassword(hash, secret)
	return err == nil
}

func generateSecret(length int) (string, error) {
	data := make([]byte, (length+1)/2)
	if _, err := rand.Read(data); err != nil {
		return "", errors.WithStack(err)
	}

	return hex.EncodeToString(data)[:length], nil
}
