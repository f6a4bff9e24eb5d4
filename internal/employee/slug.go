package employee

import (
	"regexp"
	"strings"
)

const maxIDPartLength = 32

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateID derives a directory id of the form "first.last" from a name.
// Each part is lowercased, non-alphanumeric runs collapse to "-", and empty
// parts are dropped.
func GenerateID(first, last string) string {
	var parts []string
	for _, p := range []string{first, last} {
		if s := slugPart(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

func slugPart(s string) string {
	slug := strings.ToLower(s)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxIDPartLength {
		slug = strings.TrimRight(slug[:maxIDPartLength], "-")
	}
	return slug
}
