package post

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxPermlinkLength is the longest permlink the ledger accepts.
const MaxPermlinkLength = 255

var (
	// \s is ASCII-only in RE2; \p{Z} and BOM cover the other spaces
	slugStrip      = regexp.MustCompile(`[^a-z0-9\s\p{Z}\x{FEFF}-]`)
	slugWhitespace = regexp.MustCompile(`[\s\p{Z}\x{FEFF}]+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

// MakeSlug turns a title into a permlink: lower-case, URL-safe, and suffixed
// with the epoch milliseconds of now. The suffix is never truncated; the body
// is cut so that the whole permlink fits in MaxPermlinkLength.
func MakeSlug(title string, now time.Time) string {
	slug := strings.ToLower(title)
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	suffix := "-" + strconv.FormatInt(now.UnixMilli(), 10)
	if limit := MaxPermlinkLength - len(suffix); len(slug) > limit {
		slug = strings.TrimRight(slug[:limit], "-")
	}

	return slug + suffix
}
