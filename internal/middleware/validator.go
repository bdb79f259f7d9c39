package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxUploadBytes bounds a photo upload.
	MaxUploadBytes = 10 << 20
	maxIdentityLen = 64
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// ValidateIdentity checks a display name. Any printable text up to 64
// characters is accepted; the name is not an account.
func ValidateIdentity(identity string) error {
	if !utf8.ValidString(identity) {
		return fmt.Errorf("username must be valid UTF-8")
	}
	if utf8.RuneCountInString(identity) > maxIdentityLen {
		return fmt.Errorf("username too long (max %d characters)", maxIdentityLen)
	}
	if SanitizeString(identity) != strings.TrimSpace(identity) {
		return fmt.Errorf("username contains control characters")
	}
	return nil
}

// ValidateImageUpload checks the declared size and sniffs the first bytes of an upload.
func ValidateImageUpload(size int64, head []byte) error {
	if size <= 0 || len(head) == 0 {
		return fmt.Errorf("image is empty")
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("image too large (max %d MiB)", MaxUploadBytes>>20)
	}
	ct := http.DetectContentType(head)
	if !allowedImageTypes[ct] {
		return fmt.Errorf("unsupported image type: %s", ct)
	}
	return nil
}

// ValidateSessionID requires a UUID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 50 // default
	}
	if limit > 500 {
		return 500
	}
	return limit
}
