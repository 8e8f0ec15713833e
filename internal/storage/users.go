package storage

import (
	"walkie/internal/auth"
	"walkie/internal/models"

	"go.etcd.io/bbolt"
)

// UpsertCredentials stores new or updated user credentials.
func (s *BboltStorage) UpsertCredentials(credentials auth.UserCredentials) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser := &DBUser{
			Username:     credentials.Username,
			PasswordHash: credentials.PasswordHash,
			RegisteredAt: credentials.RegisteredAt,
		}

		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

// GetCredentials returns the stored credentials for the username, or
// models.ErrNotFound.
func (s *BboltStorage) GetCredentials(username string) (auth.UserCredentials, error) {
	var creds auth.UserCredentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(username))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		creds = auth.UserCredentials{
			Username:     dbUser.Username,
			PasswordHash: dbUser.PasswordHash,
			RegisteredAt: dbUser.RegisteredAt,
		}
		return nil
	})
	return creds, err
}
