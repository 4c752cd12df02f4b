package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordVerification(t *testing.T) {
	user_record, err := NewUserRecord("admin")
	require.NoError(t, err)

	SetPassword(user_record, "correct horse battery staple")

	assert.True(t, VerifyPassword(user_record,
		"correct horse battery staple"))
	assert.False(t, VerifyPassword(user_record, "hunter2"))
	assert.False(t, VerifyPassword(user_record, ""))
}

func TestSaltIsFresh(t *testing.T) {
	first, err := NewUserRecord("admin")
	require.NoError(t, err)
	second, err := NewUserRecord("admin")
	require.NoError(t, err)

	SetPassword(first, "same password")
	SetPassword(second, "same password")

	// Equal passwords must not produce equal hashes.
	assert.NotEqual(t, first.PasswordSalt, second.PasswordSalt)
	assert.NotEqual(t, first.PasswordHash, second.PasswordHash)
}

func TestEmptyUsernameRejected(t *testing.T) {
	_, err := NewUserRecord("")
	assert.Error(t, err)
}
