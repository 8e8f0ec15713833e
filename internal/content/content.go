package content

import (
	"errors"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	messagePolicy = bluemonday.UGCPolicy()
	strictPolicy  = bluemonday.StrictPolicy()

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Sanitize removes unsafe HTML from message text. Formatting tags survive,
// scripts and event handlers do not.
func Sanitize(input string) string {
	return messagePolicy.Sanitize(input)
}

// Strip removes all HTML from the input. Used for fields that are rendered
// as plain text: usernames, room codes, color accents, file names.
func Strip(input string) string {
	return strictPolicy.Sanitize(input)
}

// ValidateUsername checks if the username contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
