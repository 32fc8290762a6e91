package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"BUYER", "SELLER", "ADMIN"} {
		role, err := ParseRole(valid)
		assert.NoError(t, err)
		assert.Equal(t, Role(valid), role)
	}
	_, err := ParseRole("buyer")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestUser_Password(t *testing.T) {
	u := User{Email: "ana@example.com"}
	assert.NoError(t, u.SetPassword("correct horse"))
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, u.CheckPassword("correct horse"))
	assert.False(t, u.CheckPassword("wrong horse"))
	assert.False(t, (&User{}).CheckPassword(""))
}
