package publish

import (
	"fmt"
	"strings"
	"unicode"
)

// Slugify derives a filesystem-safe slug from a title: lowercase, runs of
// non-alphanumeric characters collapsed to a single '-', leading and trailing
// separators trimmed. Returns "" when nothing survives; callers fall back to
// a positional placeholder.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// assignSlugs produces one slug per title, scoped to a single publish run.
// Empty results fall back to document-<position>; collisions within the run
// are disambiguated with a numeric suffix so no page silently overwrites
// another in the bundle.
func assignSlugs(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	slugs := make([]string, len(titles))
	for i, title := range titles {
		slug := Slugify(title)
		if slug == "" {
			slug = fmt.Sprintf("document-%d", i+1)
		}
		if seen[slug] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s-%d", slug, n)
				if !seen[candidate] {
					slug = candidate
					break
				}
			}
		}
		seen[slug] = true
		slugs[i] = slug
	}
	return slugs
}
