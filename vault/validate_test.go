package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"simple", "user-1", true},
		{"email", "alice@example.com", true},
		{"unicode", "ユーザー", true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", MaxUserIDLength+1), false},
		{"max length", strings.Repeat("a", MaxUserIDLength), true},
		{"invalid utf8", "user\xff", false},
		{"control", "user\x00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUserID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidUserID)
			}
		})
	}
}
