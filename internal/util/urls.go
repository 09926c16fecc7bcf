package util

import (
	"net/url"
	"strings"
)

// SourceURL turns a cited source into a probeable URL. Sources are often written
// without a scheme ("ico.org.uk/for-organisations/"), so https is assumed.
// Sources that are not web addresses ("GDPR Art. 33") report false.
func SourceURL(source string) (string, bool) {
	s := strings.TrimSpace(source)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	return u.String(), true
}

// Host returns the lowercased host of a source without port, or "" when it has none
func Host(source string) string {
	raw, ok := SourceURL(source)
	if !ok {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
