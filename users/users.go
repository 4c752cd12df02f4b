package users

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	errors "github.com/go-errors/errors"
)

type UserRecord struct {
	Name         string
	PasswordHash []byte
	PasswordSalt []byte
}

func NewUserRecord(name string) (*UserRecord, error) {
	if name == "" {
		return nil, errors.New("Username must be set")
	}

	return &UserRecord{Name: name}, nil
}

func SetPassword(user_record *UserRecord, password string) {
	salt := make([]byte, 32)
	_, _ = rand.Read(salt)

	hash := sha256.Sum256(append(salt, []byte(password)...))
	user_record.PasswordSalt = salt
	user_record.PasswordHash = hash[:]
}

func VerifyPassword(user_record *UserRecord, password string) bool {
	hash := sha256.Sum256(append(
		user_record.PasswordSalt, []byte(password)...))
	return subtle.ConstantTimeCompare(
		hash[:], user_record.PasswordHash) == 1
}
