package domain

// =============================================================================
// Slug Generation
// =============================================================================

// Slugify converts a project name to a provider-safe slug.
//
// The transformation rules are:
//   - Uppercase letters (A-Z) are converted to lowercase
//   - Lowercase letters (a-z), digits (0-9) and hyphens (-) are kept as-is
//   - Every other character is replaced with a hyphen
//
// This is a pure function with no side effects.
//
// Example:
//
//	Slugify("My Awesome Site")  // returns "my-awesome-site"
//	Slugify("demo_site v2")     // returns "demo-site-v2"
func Slugify(name string) string {
	slug := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			slug = append(slug, r)
		case r >= 'A' && r <= 'Z':
			slug = append(slug, r+32)
		default:
			slug = append(slug, '-')
		}
	}
	return string(slug)
}
