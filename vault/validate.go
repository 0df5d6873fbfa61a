package vault

import (
	"unicode"
	"unicode/utf8"
)

// MaxUserIDLength bounds user IDs accepted by the manager.
const MaxUserIDLength = 256

func validateUserID(id string) error {
	if id == "" {
		return userIDErrorf("must not be empty")
	}
	if len(id) > MaxUserIDLength {
		return userIDErrorf("exceeds maximum length of %d", MaxUserIDLength)
	}
	if !utf8.ValidString(id) {
		return userIDErrorf("contains invalid UTF-8")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return userIDErrorf("contains control character")
		}
	}
	return nil
}
