package resolve

import (
	"strings"
	"unicode"
)

// NormalizeName collapses runs of whitespace to single spaces and lowercases
// the result. Lookups compare normalized names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Capitalize uppercases the first rune and lowercases the rest, which is how
// company names are stored when created by the resolver.
func Capitalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	runes := []rune(name)
	return string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
}

// NormalizeWebsite prepends a scheme when the scraped value lacks one.
func NormalizeWebsite(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "http://" + website
}
