package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeUser(t *testing.T) {
	tests := []struct {
		name   string
		userID string
	}{
		{name: "simple id", userID: "default"},
		{name: "email-shaped id", userID: "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeUser(tt.userID)

			assert.True(t, strings.HasPrefix(got, "user:"))
			assert.NotContains(t, got, tt.userID)
			// Stable: same input must hash to the same value for correlation.
			assert.Equal(t, got, AnonymizeUser(tt.userID))
		})
	}
}

func TestAnonymizeUser_Empty(t *testing.T) {
	assert.Equal(t, "", AnonymizeUser(""))
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))

	got := SanitizeToken("ya29.secret-access-token")
	assert.NotContains(t, got, "secret")
	assert.Equal(t, "[token:24 chars]", got)
}

func TestErr_Nil(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, "", attr.Key)
}

func TestUser(t *testing.T) {
	attr := User("default")
	assert.Equal(t, KeyUser, attr.Key)
	assert.NotContains(t, attr.Value.String(), "default")
}
