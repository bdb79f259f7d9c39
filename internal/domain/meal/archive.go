package meal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// PhotoKey names an archived photo: "<identity>/<yyyy>/<mm>/<yyyymmdd-hhmmss>-<id>.jpg".
// The identity is reduced to characters that are safe in object keys.
func PhotoKey(identity string, at time.Time, id string) string {
	prefix := strings.Trim(unsafeKeyChars.ReplaceAllString(strings.TrimSpace(identity), "_"), "._")
	if prefix == "" {
		prefix = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%s-%s.jpg", prefix, at.Format("2006/01"), at.Format("20060102-150405"), id)
}
