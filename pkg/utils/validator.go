package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars     = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeFilenameCh = regexp.MustCompile(`[^a-zA-Z0-9._\-]+`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeFilename reduces a client-supplied filename to a safe base name.
// It returns "" when nothing usable is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(SanitizeString(name))
	if name == "." || name == "/" {
		return ""
	}
	name = unsafeFilenameCh.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}
